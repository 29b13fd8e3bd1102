package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/config"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/log"
	"github.com/pipelined/synth/midi"
	"github.com/pipelined/synth/timing"
)

var logger = log.GetLogger()

// rig is the chain from an event source to a stereo output:
// transpose, optional arpeggiator, instrument and metronome. The third
// input of the output adders monitors an audio input.
type rig struct {
	e           *synth.Engine
	log         *logrus.Entry
	cfg         config.Config
	transpose   *midi.Transpose
	arpeggiator *midi.Arpeggiator
	subtractive *instrument.Subtractive
	fm          *instrument.FM
	soundfont   *instrument.SoundFont
	drums       *instrument.Drums
	metronome   *instrument.Metronome
	left, right *dsp.Adder
}

func newEngine(cfg config.Config) (*synth.Engine, error) {
	return synth.New(
		synth.WithSampleRate(cfg.SampleRate),
		synth.WithBlockSize(cfg.BlockSize),
		synth.WithLogger(logger),
	)
}

func newRig(e *synth.Engine, cfg config.Config, source *graph.EventChannel) (*rig, error) {
	r := &rig{
		e:         e,
		log:       log.Component(logger, "rig"),
		cfg:       cfg,
		transpose: midi.NewTranspose(e, cfg.Transpose),
		left:      dsp.NewAdder(e, 3),
		right:     dsp.NewAdder(e, 3),
	}
	if err := r.rhythm(cfg); err != nil {
		return nil, err
	}
	m, err := instrument.NewMetronome(e, instrument.DefaultClicks(e.SampleRate()))
	if err != nil {
		return nil, err
	}
	r.metronome = m
	r.metronome.SetEnabled(cfg.Metronome)
	if err := r.transpose.Connect(source, 0); err != nil {
		return nil, err
	}
	events := r.transpose.Output()
	if cfg.Arpeggiator.Enabled {
		p, err := midi.ParsePattern(cfg.Arpeggiator.Pattern)
		if err != nil {
			return nil, err
		}
		r.arpeggiator = midi.NewArpeggiator(e, cfg.Arpeggiator.Numerator, cfg.Arpeggiator.Denominator, p)
		if err := r.arpeggiator.Connect(events, 0); err != nil {
			return nil, err
		}
		events = r.arpeggiator.Output()
	}

	left, right, err := r.instrument(cfg, events)
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		adder *dsp.Adder
		ch    *graph.AudioChannel
	}{
		{r.left, left},
		{r.right, right},
	} {
		if err := c.adder.Connect(c.ch, 0); err != nil {
			return nil, err
		}
		if err := c.adder.Connect(r.metronome.Output(), 1); err != nil {
			return nil, err
		}
	}
	r.log.WithFields(logrus.Fields{
		"engine":      e,
		"sample_rate": e.SampleRate(),
		"block_size":  e.BlockSize(),
		"instrument":  cfg.Instrument,
		"arpeggiator": cfg.Arpeggiator.Enabled,
	}).Info("rig is ready")
	return r, nil
}

// instrument builds the configured instrument and connects its events.
func (r *rig) instrument(cfg config.Config, events *graph.EventChannel) (*graph.AudioChannel, *graph.AudioChannel, error) {
	switch cfg.Instrument {
	case "soundfont":
		sf, err := instrument.LoadSoundFont(r.e, cfg.SoundFont)
		if err != nil {
			return nil, nil, err
		}
		if err := sf.Connect(events); err != nil {
			return nil, nil, err
		}
		r.soundfont = sf
		return sf.MustOutput(0), sf.MustOutput(1), nil
	case "drums":
		d, err := instrument.NewDrums(r.e, cfg.Drums)
		if err != nil {
			return nil, nil, err
		}
		if err := d.Connect(events, 0); err != nil {
			return nil, nil, err
		}
		r.drums = d
		return d.Output(), d.Output(), nil
	case "fm":
		s, err := fmSettings(cfg)
		if err != nil {
			return nil, nil, err
		}
		fm, err := instrument.NewFM(r.e, s)
		if err != nil {
			return nil, nil, err
		}
		if err := fm.Connect(events, 0); err != nil {
			return nil, nil, err
		}
		r.fm = fm
		return fm.Output(), fm.Output(), nil
	}
	s, err := subtractiveSettings(cfg)
	if err != nil {
		return nil, nil, err
	}
	sub, err := instrument.NewSubtractive(r.e, s)
	if err != nil {
		return nil, nil, err
	}
	if err := sub.Connect(events, 0); err != nil {
		return nil, nil, err
	}
	r.subtractive = sub
	return sub.Output(), sub.Output(), nil
}

// monitor mixes the audio input into both outputs.
func (r *rig) monitor(ch *graph.AudioChannel) error {
	if err := r.left.Connect(ch, 2); err != nil {
		return err
	}
	return r.right.Connect(ch, 2)
}

func fmSettings(cfg config.Config) (instrument.FMSettings, error) {
	s := instrument.DefaultFMSettings()
	s.Voices = cfg.Voices
	s.Gain = cfg.Gain
	s.Intensity = cfg.FM.Intensity
	s.ModulatorTranspose = cfg.FM.Transpose
	s.Attack = cfg.Envelope.Attack
	s.Decay = cfg.Envelope.Decay
	s.Sustain = cfg.Envelope.Sustain
	s.Release = cfg.Envelope.Release
	modes, err := parseModes(cfg)
	if err != nil {
		return s, err
	}
	s.Carrier, s.Modulator = modes[0], modes[1]
	return s, nil
}

func parseModes(cfg config.Config) ([2]dsp.Mode, error) {
	var modes [2]dsp.Mode
	for i, name := range cfg.Oscillators {
		mode, err := dsp.ParseMode(name)
		if err != nil {
			return modes, fmt.Errorf("oscillator %d: %w", i, err)
		}
		modes[i] = mode
	}
	return modes, nil
}

func subtractiveSettings(cfg config.Config) (instrument.Settings, error) {
	s := instrument.DefaultSettings()
	s.Voices = cfg.Voices
	s.Detune = cfg.Detune
	s.Gain = cfg.Gain
	s.Attack = cfg.Envelope.Attack
	s.Decay = cfg.Envelope.Decay
	s.Sustain = cfg.Envelope.Sustain
	s.Release = cfg.Envelope.Release
	modes, err := parseModes(cfg)
	if err != nil {
		return s, err
	}
	s.Modes = modes
	return s, nil
}

func (r *rig) rhythm(cfg config.Config) error {
	if err := r.e.Rhythm().SetTempo(cfg.Tempo); err != nil {
		return err
	}
	meter, err := timing.ParseMeter(cfg.Meter)
	if err != nil {
		return err
	}
	return r.e.Rhythm().SetMeter(meter)
}

// outputs returns the stereo output.
func (r *rig) outputs() (*graph.AudioChannel, *graph.AudioChannel) {
	return r.left.MustOutput(0), r.right.MustOutput(0)
}

// apply hot applies the control surface values of reloaded config. The
// graph layout and the audio format stay as they are.
func (r *rig) apply(cfg config.Config) {
	old := r.cfg
	r.cfg = cfg
	if cfg.Tempo != old.Tempo || cfg.Meter != old.Meter {
		if err := r.rhythm(cfg); err != nil {
			r.log.WithError(err).Warn("rhythm is not changed")
		}
	}
	r.transpose.SetShift(cfg.Transpose)
	r.metronome.SetEnabled(cfg.Metronome)
	if r.arpeggiator != nil {
		if p, err := midi.ParsePattern(cfg.Arpeggiator.Pattern); err == nil {
			r.arpeggiator.SetPattern(p)
		} else {
			r.log.WithError(err).Warn("pattern is not changed")
		}
	}
	if r.subtractive != nil {
		s, err := subtractiveSettings(cfg)
		if err != nil {
			r.log.WithError(err).Warn("instrument is not changed")
			return
		}
		r.subtractive.SetGain(s.Gain)
		r.subtractive.SetDetune(s.Detune)
		r.subtractive.SetEnvelope(s.Attack, s.Decay, s.Sustain, s.Release)
		for i, mode := range s.Modes {
			r.subtractive.SetMode(i, mode)
		}
	}
	if r.fm != nil {
		s, err := fmSettings(cfg)
		if err != nil {
			r.log.WithError(err).Warn("instrument is not changed")
			return
		}
		r.fm.SetGain(s.Gain)
		r.fm.SetIntensity(s.Intensity)
		r.fm.SetTransposition(s.CarrierTranspose, s.ModulatorTranspose)
		r.fm.SetEnvelope(s.Attack, s.Decay, s.Sustain, s.Release)
		r.fm.SetModes(s.Carrier, s.Modulator)
	}
	if r.drums != nil {
		r.drums.SetGain(cfg.Gain)
	}
	if cfg.SampleRate != old.SampleRate || cfg.BlockSize != old.BlockSize || cfg.Voices != old.Voices ||
		cfg.Instrument != old.Instrument || cfg.SoundFont != old.SoundFont || cfg.Drums != old.Drums || cfg.Input != old.Input {
		r.log.Warn("audio format, voices, instrument and input changes need a restart")
	}
	r.log.Info("config applied")
}
