// Package instrument provides concrete instruments built on the graph:
// subtractive and FM polyphonic synthesizers, a drum machine, a SoundFont
// player and a metronome.
package instrument

import (
	"time"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/poly"
)

// Settings of the subtractive instrument.
type Settings struct {
	Voices  int
	Modes   [2]dsp.Mode
	Detune  float64 // semitones of the second oscillator
	Attack  time.Duration
	Decay   time.Duration
	Sustain float64
	Release time.Duration
	Gain    float64 // dB
	// Vibrato is the rate of the modulation wheel LFO in Hz.
	Vibrato float64
	// VibratoDepth is the LFO depth in semitones at full modulation wheel.
	VibratoDepth float64
}

// DefaultSettings returns settings of a plain two saw instrument.
func DefaultSettings() Settings {
	return Settings{
		Voices:       8,
		Modes:        [2]dsp.Mode{dsp.Saw{Blep: true}, dsp.Saw{Blep: true}},
		Detune:       0.1,
		Attack:       10 * time.Millisecond,
		Decay:        100 * time.Millisecond,
		Sustain:      0.7,
		Release:      200 * time.Millisecond,
		Gain:         -12,
		Vibrato:      5,
		VibratoDepth: 0.5,
	}
}

// Subtractive is a polyphonic instrument. Every voice mixes two
// oscillators and shapes them with an ADSR envelope.
type Subtractive struct {
	*poly.Instrument
	voices []*voice
	lfo    *dsp.Oscillator
	gain   *dsp.Gain
	depth  float64
}

type voice struct {
	osc [2]*dsp.Oscillator
	mix *dsp.Adder
	env *dsp.Envelope
	lfo *graph.AudioChannel
	s   *Subtractive
}

// NewSubtractive returns an instrument with provided settings.
func NewSubtractive(e *synth.Engine, s Settings) (*Subtractive, error) {
	sub := &Subtractive{
		lfo:   dsp.NewOscillator(e, dsp.Sine{}, s.Vibrato),
		gain:  dsp.NewGain(e, 1, s.Gain),
		depth: s.VibratoDepth,
	}
	var err error
	sub.Instrument, err = poly.NewInstrument(e, s.Voices, func(int) (poly.Handler, *graph.AudioChannel, error) {
		v := &voice{
			mix: dsp.NewAdder(e, 2),
			env: dsp.NewEnvelope(e, s.Attack, s.Decay, s.Sustain, s.Release),
			lfo: sub.lfo.Output(),
			s:   sub,
		}
		for i := range v.osc {
			v.osc[i] = dsp.NewOscillator(e, s.Modes[i], 0)
			if err := v.mix.Connect(v.osc[i].Output(), i); err != nil {
				return nil, nil, err
			}
		}
		v.osc[1].SetTransposition(s.Detune)
		if err := v.env.Connect(v.mix.MustOutput(0), 0); err != nil {
			return nil, nil, err
		}
		sub.voices = append(sub.voices, v)
		return v, v.env.MustOutput(0), nil
	})
	if err != nil {
		return nil, err
	}
	if err := sub.gain.Connect(sub.Instrument.Output(), 0); err != nil {
		return nil, err
	}
	return sub, nil
}

// Output returns the instrument output after gain.
func (s *Subtractive) Output() *graph.AudioChannel {
	return s.gain.MustOutput(0)
}

// SetMode changes the waveform of oscillator i of every voice.
func (s *Subtractive) SetMode(i int, mode dsp.Mode) {
	for _, v := range s.voices {
		v.osc[i].SetMode(mode)
	}
}

// SetDetune transposes the second oscillator of every voice.
func (s *Subtractive) SetDetune(steps float64) {
	for _, v := range s.voices {
		v.osc[1].SetTransposition(steps)
	}
}

// SetEnvelope changes the envelope of every voice.
func (s *Subtractive) SetEnvelope(a, d time.Duration, sustain float64, r time.Duration) {
	for _, v := range s.voices {
		v.env.SetAttack(a)
		v.env.SetDecay(d)
		v.env.SetSustain(sustain)
		v.env.SetRelease(r)
	}
}

// SetGain sets the output gain in dB.
func (s *Subtractive) SetGain(db float64) {
	s.gain.SetGain(db)
}

func (v *voice) NoteDown(t uint64, freq, velocity float64) {
	for _, o := range v.osc {
		o.SetFreq(t, freq)
	}
	v.env.NoteDown(t, velocity)
}

func (v *voice) NoteUp(t uint64) {
	v.env.NoteUp(t)
}

func (v *voice) PitchWheel(t uint64, freq float64) {
	for _, o := range v.osc {
		o.SetFreq(t, freq)
	}
}

func (v *voice) ModulationWheel(t uint64, value float64) {
	var lfo *graph.AudioChannel
	if value > 0 {
		lfo = v.lfo
	}
	for _, o := range v.osc {
		o.SetLFO(lfo, value*v.s.depth)
	}
}

func (v *voice) Releasing() bool {
	return v.env.Active()
}
