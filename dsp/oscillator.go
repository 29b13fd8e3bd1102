// Package dsp provides leaf signal processing nodes.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
)

// Mode is the waveform of an oscillator: Sine, Saw, Square, Triangle or
// Noise. The set is closed, a new waveform is added by implementing the
// unexported method in this package.
type Mode interface {
	value(phase, inc float64, s *modeState) float64
}

// modeState is the memory some waveforms need between samples.
type modeState struct {
	last float64
	rand *rand.Rand
}

type (
	// Sine is a pure sine wave.
	Sine struct{}
	// Saw is a rising sawtooth. Blep enables PolyBLEP anti-aliasing.
	Saw struct{ Blep bool }
	// Square is a square wave with 50% duty cycle.
	Square struct{ Blep bool }
	// Triangle is an integrated square wave.
	Triangle struct{ Blep bool }
	// Noise is uniform white noise.
	Noise struct{}
)

func (Sine) value(phase, _ float64, _ *modeState) float64 {
	return math.Sin(2 * math.Pi * phase)
}

func (m Saw) value(phase, inc float64, _ *modeState) float64 {
	v := 2*phase - 1
	if m.Blep {
		v -= polyBlep(phase, inc)
	}
	return v
}

func (m Square) value(phase, inc float64, _ *modeState) float64 {
	return square(phase, inc, m.Blep)
}

func (m Triangle) value(phase, inc float64, s *modeState) float64 {
	if !m.Blep {
		return 1 - 4*math.Abs(phase-0.5)
	}
	s.last += 4 * inc * square(phase, inc, true)
	s.last = math.Max(-1, math.Min(1, s.last))
	return s.last
}

func (Noise) value(_, _ float64, s *modeState) float64 {
	return s.rand.Float64()*2 - 1
}

func square(phase, inc float64, blep bool) float64 {
	v := -1.0
	if phase < 0.5 {
		v = 1
	}
	if blep {
		v += polyBlep(phase, inc)
		v -= polyBlep(math.Mod(phase+0.5, 1), inc)
	}
	return v
}

// polyBlep returns the correction for a discontinuity at phase 0 for a
// phase increment dt.
func polyBlep(t, dt float64) float64 {
	switch {
	case dt <= 0:
		return 0
	case t < dt:
		t /= dt
		return t + t - t*t - 1
	case t > 1-dt:
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

// Oscillator generates a periodic waveform. Frequency changes are pinned to
// a time step with the embedded scheduler.
type Oscillator struct {
	*graph.Generator[float64]
	sampleRate float64
	mode       Mode
	state      modeState
	freq       float64
	transpose  float64
	phase      float64
	lfo        *graph.Consumer[float64]
	lfoDepth   float64
	mod        *graph.Consumer[float64]
	modDepth   float64
}

// NewOscillator returns an oscillator with provided mode and frequency.
func NewOscillator(e *synth.Engine, mode Mode, freq float64) *Oscillator {
	o := &Oscillator{
		sampleRate: float64(e.SampleRate()),
		mode:       mode,
		state: modeState{
			last: -1,
			rand: rand.New(rand.NewSource(rand.Int63())),
		},
		freq:      freq,
		transpose: 1,
		lfo:       graph.NewConsumer[float64](e, 1, nil),
		mod:       graph.NewConsumer[float64](e, 1, nil),
	}
	o.Generator = graph.NewGenerator(e, 1, o.generate)
	return o
}

func (o *Oscillator) generate(t uint64, out []float64) {
	mod := 1.0
	if o.lfoDepth != 0 {
		mod = math.Pow(2, o.lfo.Frame(t)[0]*o.lfoDepth)
	}
	inc := o.freq * o.transpose * mod / o.sampleRate
	phase := o.phase
	if o.modDepth != 0 {
		phase += o.mod.Frame(t)[0] * o.modDepth
		phase -= math.Floor(phase)
	}
	out[0] = o.mode.value(phase, inc, &o.state)
	o.phase += inc
	o.phase -= math.Floor(o.phase)
}

// Output returns the audio output.
func (o *Oscillator) Output() *graph.AudioChannel {
	return o.MustOutput(0)
}

// SetFreq changes frequency at time step at.
func (o *Oscillator) SetFreq(at uint64, freq float64) {
	o.Schedule(at, func(uint64) {
		o.freq = freq
	})
}

// SetMode changes the waveform as soon as possible.
func (o *Oscillator) SetMode(mode Mode) {
	o.Schedule(0, func(uint64) {
		o.mode = mode
		o.state.last = -1
	})
}

// SetTransposition transposes the frequency by provided number of
// semitones as soon as possible.
func (o *Oscillator) SetTransposition(steps float64) {
	o.Schedule(0, func(uint64) {
		o.transpose = math.Pow(2, steps/12)
	})
}

// SetLFO modulates the frequency with the channel. Depth is in semitones
// per unit of the modulating signal. Nil channel disables modulation.
func (o *Oscillator) SetLFO(ch *graph.AudioChannel, steps float64) {
	o.Schedule(0, func(uint64) {
		o.lfo.Connect(ch, 0)
		if ch == nil {
			steps = 0
		}
		o.lfoDepth = steps / 12
	})
}

// SetModulator modulates the phase with the channel. Intensity is the
// phase deviation in cycles per unit of the modulating signal. Nil channel
// disables modulation.
func (o *Oscillator) SetModulator(ch *graph.AudioChannel, intensity float64) {
	o.Schedule(0, func(uint64) {
		o.mod.Connect(ch, 0)
		if ch == nil {
			intensity = 0
		}
		o.modDepth = intensity
	})
}

// SetModulatorIntensity changes the phase deviation as soon as possible.
// It has no effect without a modulator.
func (o *Oscillator) SetModulatorIntensity(intensity float64) {
	o.Schedule(0, func(uint64) {
		o.modDepth = intensity
	})
}

// ErrUnknownMode is returned when the waveform name is not known.
var ErrUnknownMode = errors.New("unknown waveform")

// ParseMode returns the anti-aliased waveform by its name: sine, saw,
// square, triangle or noise.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(name) {
	case "sine":
		return Sine{}, nil
	case "saw":
		return Saw{Blep: true}, nil
	case "square":
		return Square{Blep: true}, nil
	case "triangle":
		return Triangle{Blep: true}, nil
	case "noise":
		return Noise{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}
