package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/config"
	"github.com/pipelined/synth/midi"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/wav"
)

type renderCommand struct {
	config   string
	in       string
	out      string
	tail     time.Duration
	bitDepth int
}

func (cmd *renderCommand) Name() string {
	return "render"
}

func (cmd *renderCommand) Help() string {
	return "Render MIDI file into wav file"
}

func (cmd *renderCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "YAML config")
	fs.StringVar(&cmd.in, "midi", "", "MIDI file to render (required)")
	fs.StringVar(&cmd.out, "out", "", "wav file to save rendered audio (required)")
	fs.DurationVar(&cmd.tail, "tail", 2*time.Second, "time rendered after the last event")
	fs.IntVar(&cmd.bitDepth, "bits", 16, "bit depth of the wav file: 16 or 32")
}

func (cmd *renderCommand) Validate() error {
	var message string
	if cmd.in == "" {
		message += "Missing -midi required flag\n"
	}
	if cmd.out == "" {
		message += "Missing -out required flag\n"
	}
	if message != "" {
		return fmt.Errorf("%s", message)
	}
	return nil
}

func (cmd *renderCommand) Run() error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	cfg, err := config.Load(cmd.config)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}
	seq, err := midi.Load(cmd.in, e.SampleRate())
	if err != nil {
		return err
	}
	player := midi.NewPlayer(e, seq, false)
	player.Start(0)
	r, err := newRig(e, cfg, player.Output())
	if err != nil {
		return err
	}
	rec, err := wav.NewRecorder(e, cmd.out, 2, signal.BitDepth(cmd.bitDepth))
	if err != nil {
		return err
	}
	left, right := r.outputs()
	if err := connect(rec.Connect, left, right); err != nil {
		rec.Close()
		return err
	}
	e.Timing().AddAudioConsumer(rec)

	total := seq.Length + 1 + uint64(signal.SamplesOf(e.SampleRate(), cmd.tail))
	if err := steps(e, total); err != nil {
		rec.Close()
		return err
	}
	if err := rec.Close(); err != nil {
		return err
	}
	logger.Infof("rendered %v of %v into %v", signal.DurationOf(e.SampleRate(), rec.Frames()), cmd.in, cmd.out)
	return nil
}

func steps(e *synth.Engine, n uint64) error {
	for i := uint64(0); i < n; i++ {
		if _, err := e.Step(); err != nil {
			return err
		}
	}
	return nil
}
