package main

import (
	"flag"
	"fmt"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/pipelined/synth/midi"
)

type portsCommand struct{}

func (cmd *portsCommand) Name() string {
	return "ports"
}

func (cmd *portsCommand) Help() string {
	return "Show the list of MIDI input ports"
}

func (cmd *portsCommand) Register(fs *flag.FlagSet) {}

func (cmd *portsCommand) Run() error {
	drv, err := rtmididrv.New()
	if err != nil {
		return err
	}
	defer drv.Close()
	ports, err := midi.Ports(drv)
	if err != nil {
		return err
	}
	fmt.Println("MIDI inputs:")
	for i, name := range ports {
		fmt.Printf("\t%d\t%s\n", i, name)
	}
	return nil
}
