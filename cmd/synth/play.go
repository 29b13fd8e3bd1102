package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"

	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/sync/errgroup"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/config"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/log"
	"github.com/pipelined/synth/midi"
	"github.com/pipelined/synth/oto"
	"github.com/pipelined/synth/portaudio"
)

type playCommand struct {
	config string
	port   string
	file   string
	loop   bool
	record string
}

func (cmd *playCommand) Name() string {
	return "play"
}

func (cmd *playCommand) Help() string {
	return "Play MIDI input or a MIDI file in realtime"
}

func (cmd *playCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.config, "config", "", "YAML config, reloaded on change")
	fs.StringVar(&cmd.port, "port", "", "MIDI input port name, overrides config")
	fs.StringVar(&cmd.file, "midi", "", "MIDI file to play instead of the input port")
	fs.BoolVar(&cmd.loop, "loop", false, "loop the MIDI file")
	fs.StringVar(&cmd.record, "record", "", "save played events into MIDI file on exit")
}

func (cmd *playCommand) Run() error {
	cfg, err := config.Load(cmd.config)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}

	source, stop, err := cmd.source(e, cfg)
	if err != nil {
		return err
	}
	defer stop()

	r, err := newRig(e, cfg, source)
	if err != nil {
		return err
	}
	if cmd.record != "" {
		rec := midi.NewRecorder(e)
		if err := rec.Connect(source, 0); err != nil {
			return err
		}
		defer func() {
			if err := rec.Save(cmd.record, float64(e.Rhythm().Tempo())); err != nil {
				logger.Errorf("recording is not saved: %v", err)
			}
		}()
	}

	if cfg.Input {
		mic, err := portaudio.NewMicrophone(e, 1)
		if err != nil {
			return err
		}
		defer mic.Close()
		if err := r.monitor(mic.MustOutput(0)); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	if cmd.config != "" {
		g.Go(func() error {
			return config.Watch(ctx, cmd.config, log.Component(logger, "config"), r.apply)
		})
	}
	left, right := r.outputs()
	switch cfg.Output {
	case "oto":
		out, err := oto.NewOutput(e, 2)
		if err != nil {
			return err
		}
		if err := connect(out.Connect, left, right); err != nil {
			return err
		}
		out.Play()
		g.Go(func() error {
			<-ctx.Done()
			return out.Close()
		})
	default:
		speaker, err := portaudio.NewSpeaker(e, 2)
		if err != nil {
			return err
		}
		if err := connect(speaker.Connect, left, right); err != nil {
			return err
		}
		g.Go(func() error {
			defer speaker.Close()
			return e.Run(ctx)
		})
	}
	logger.Infof("%v is playing, interrupt to stop", e)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// source returns the event channel of the MIDI file player or the
// input port.
func (cmd *playCommand) source(e *synth.Engine, cfg config.Config) (*graph.EventChannel, func(), error) {
	if cmd.file != "" {
		seq, err := midi.Load(cmd.file, e.SampleRate())
		if err != nil {
			return nil, nil, err
		}
		p := midi.NewPlayer(e, seq, cmd.loop)
		p.Start(0)
		return p.Output(), func() {}, nil
	}
	port := cfg.MIDI.Port
	if cmd.port != "" {
		port = cmd.port
	}
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, nil, err
	}
	in, err := midi.Find(drv, port)
	if err != nil {
		drv.Close()
		return nil, nil, err
	}
	l := midi.NewListener(e)
	stop, err := midi.Open(in, l)
	if err != nil {
		drv.Close()
		return nil, nil, err
	}
	return l.Output(), func() {
		stop()
		drv.Close()
	}, nil
}

func connect(fn func(*graph.AudioChannel, int) error, channels ...*graph.AudioChannel) error {
	for i, ch := range channels {
		if err := fn(ch, i); err != nil {
			return err
		}
	}
	return nil
}
