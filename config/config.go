// Package config loads the synthesizer configuration from YAML files and
// the environment, and watches files for changes.
package config

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/timing"
)

// Environment variables that override file values.
const (
	SampleRateEnv = "SYNTH_SAMPLE_RATE"
	BlockSizeEnv  = "SYNTH_BLOCK_SIZE"
)

// ErrInvalid is returned when configuration values are out of range.
var ErrInvalid = errors.New("invalid config")

type (
	// Config of the synthesizer.
	Config struct {
		SampleRate  int         `yaml:"sample_rate"`
		BlockSize   int         `yaml:"block_size"`
		Voices      int         `yaml:"voices"`
		Tempo       int         `yaml:"tempo"`
		Meter       string      `yaml:"meter"`
		Gain        float64     `yaml:"gain"`
		Transpose   int         `yaml:"transpose"`
		Metronome   bool        `yaml:"metronome"`
		Oscillators [2]string   `yaml:"oscillators"`
		Detune      float64     `yaml:"detune"`
		Envelope    Envelope    `yaml:"envelope"`
		Arpeggiator Arpeggiator `yaml:"arpeggiator"`
		MIDI        MIDI        `yaml:"midi"`
		// Instrument is one of "subtractive", "fm", "soundfont" or "drums".
		Instrument string `yaml:"instrument"`
		FM         FM     `yaml:"fm"`
		SoundFont  string `yaml:"soundfont,omitempty"`
		// Drums is the directory of a drum kit with keymap.txt.
		Drums string `yaml:"drums,omitempty"`
		// Output is either "portaudio" or "oto".
		Output string `yaml:"output"`
		// Input mixes the default input device into the output.
		Input bool `yaml:"input"`
	}

	// FM instrument settings. Oscillators are the carrier and the
	// modulator waveforms.
	FM struct {
		Intensity float64 `yaml:"intensity"`
		Transpose float64 `yaml:"transpose"`
	}

	// Envelope of subtractive voices.
	Envelope struct {
		Attack  time.Duration `yaml:"attack"`
		Decay   time.Duration `yaml:"decay"`
		Sustain float64       `yaml:"sustain"`
		Release time.Duration `yaml:"release"`
	}

	// Arpeggiator settings.
	Arpeggiator struct {
		Enabled     bool   `yaml:"enabled"`
		Numerator   int    `yaml:"numerator"`
		Denominator int    `yaml:"denominator"`
		Pattern     string `yaml:"pattern"`
	}

	// MIDI input settings.
	MIDI struct {
		Port string `yaml:"port,omitempty"`
	}
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		SampleRate:  synth.DefaultSampleRate,
		BlockSize:   synth.DefaultBlockSize,
		Voices:      8,
		Tempo:       timing.DefaultTempo,
		Meter:       "4/4",
		Gain:        -12,
		Oscillators: [2]string{"saw", "saw"},
		Detune:      0.1,
		Envelope: Envelope{
			Attack:  10 * time.Millisecond,
			Decay:   100 * time.Millisecond,
			Sustain: 0.7,
			Release: 200 * time.Millisecond,
		},
		Arpeggiator: Arpeggiator{
			Numerator:   2,
			Denominator: 1,
			Pattern:     "up",
		},
		Instrument: "subtractive",
		FM: FM{
			Intensity: 0.5,
			Transpose: 12,
		},
		Output: "portaudio",
	}
}

// Load reads the file on top of defaults and applies environment
// overrides. Empty path means defaults only.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrapf(err, "load config %v", path)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return Config{}, errors.Wrapf(err, "parse config %v", path)
		}
	}
	if err := c.env(); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) env() error {
	for name, v := range map[string]*int{
		SampleRateEnv: &c.SampleRate,
		BlockSizeEnv:  &c.BlockSize,
	} {
		s, ok := os.LookupEnv(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.Wrapf(ErrInvalid, "%s=%q", name, s)
		}
		*v = n
	}
	return nil
}

// Validate checks the ranges of values.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return errors.Wrapf(ErrInvalid, "sample rate %d", c.SampleRate)
	case c.BlockSize <= 0:
		return errors.Wrapf(ErrInvalid, "block size %d", c.BlockSize)
	case c.Voices <= 0:
		return errors.Wrapf(ErrInvalid, "voices %d", c.Voices)
	case c.Tempo <= 0:
		return errors.Wrapf(ErrInvalid, "tempo %d", c.Tempo)
	case c.Envelope.Sustain < 0 || c.Envelope.Sustain > 1:
		return errors.Wrapf(ErrInvalid, "sustain %v", c.Envelope.Sustain)
	case c.Arpeggiator.Numerator <= 0 || c.Arpeggiator.Denominator <= 0:
		return errors.Wrapf(ErrInvalid, "arpeggiator rate %d/%d", c.Arpeggiator.Numerator, c.Arpeggiator.Denominator)
	case c.Output != "portaudio" && c.Output != "oto":
		return errors.Wrapf(ErrInvalid, "output %q", c.Output)
	}
	switch c.Instrument {
	case "subtractive", "fm":
	case "soundfont":
		if c.SoundFont == "" {
			return errors.Wrap(ErrInvalid, "soundfont instrument without soundfont file")
		}
	case "drums":
		if c.Drums == "" {
			return errors.Wrap(ErrInvalid, "drums instrument without kit directory")
		}
	default:
		return errors.Wrapf(ErrInvalid, "instrument %q", c.Instrument)
	}
	if _, err := timing.ParseMeter(c.Meter); err != nil {
		return errors.Wrapf(ErrInvalid, "meter %q", c.Meter)
	}
	return nil
}

// Watch reloads the file every time it's written and passes valid
// configurations to fn. Invalid ones are logged and skipped. It blocks
// until the context is done.
func Watch(ctx context.Context, path string, log logrus.FieldLogger, fn func(Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "create watcher")
	}
	defer w.Close()
	// editors often replace files, so the directory is watched.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return errors.Wrapf(err, "watch %v", path)
	}
	log = log.WithField("config", path)
	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			c, err := Load(path)
			if err != nil {
				log.WithError(err).Warn("config is not reloaded")
				continue
			}
			log.Info("config reloaded")
			fn(c)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "watch config")
		}
	}
}
