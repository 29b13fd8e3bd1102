package instrument

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/timing"
	"github.com/pipelined/synth/wav"
)

// Metronome plays a click on every beat of the engine rhythm. The click
// depends on the beat type.
type Metronome struct {
	rhythm  *timing.Rhythm
	clicks  map[timing.BeatType]*wav.Sample
	mix     *dsp.Adder
	enabled atomic.Bool
}

// Clicks are the sounds of the metronome per beat type.
type Clicks map[timing.BeatType]wav.Data

// LoadClicks loads click samples from wav files.
func LoadClicks(downbeat, accented, unaccented string) (Clicks, error) {
	c := make(Clicks, 3)
	for bt, path := range map[timing.BeatType]string{
		timing.Downbeat:   downbeat,
		timing.Accented:   accented,
		timing.Unaccented: unaccented,
	} {
		d, err := wav.Load(path)
		if err != nil {
			return nil, err
		}
		c[bt] = d
	}
	return c, nil
}

// DefaultClicks returns short sine blips: a high one for the downbeat and
// lower ones for the other beats.
func DefaultClicks(sampleRate int) Clicks {
	return Clicks{
		timing.Downbeat:   blip(sampleRate, 1760, 1),
		timing.Accented:   blip(sampleRate, 1320, 0.8),
		timing.Unaccented: blip(sampleRate, 880, 0.6),
	}
}

func blip(sampleRate int, freq, level float64) wav.Data {
	n := sampleRate / 50
	data := make([]float64, n)
	for i := range data {
		decay := 1 - float64(i)/float64(n)
		data[i] = level * decay * decay * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return wav.Data{Float64: signal.Float64{data}, SampleRate: sampleRate}
}

// NewMetronome returns an enabled metronome. It's registered with the
// timing manager as an event consumer, its output must be pulled by an
// audio consumer every step.
func NewMetronome(e *synth.Engine, clicks Clicks) (*Metronome, error) {
	m := &Metronome{
		rhythm: e.Rhythm(),
		clicks: make(map[timing.BeatType]*wav.Sample, len(clicks)),
		mix:    dsp.NewAdder(e, len(clicks)),
	}
	i := 0
	for bt, d := range clicks {
		s := wav.NewSampleFrom(e, d, false)
		m.clicks[bt] = s
		if s.NumOutputs() == 0 {
			return nil, fmt.Errorf("%v click: %w", bt, wav.ErrInvalidFile)
		}
		if err := m.mix.Connect(s.MustOutput(0), i); err != nil {
			return nil, err
		}
		i++
	}
	m.enabled.Store(true)
	e.Timing().AddEventConsumer(m)
	return m, nil
}

// Tick triggers the click of the current beat.
func (m *Metronome) Tick(t uint64) {
	if !m.enabled.Load() || !m.rhythm.IsOnBeat() {
		return
	}
	if s, ok := m.clicks[m.rhythm.CurrentBeatType()]; ok {
		s.Trigger(t)
	}
}

// Output returns the clicks.
func (m *Metronome) Output() *graph.AudioChannel {
	return m.mix.MustOutput(0)
}

// SetEnabled turns the metronome on and off.
func (m *Metronome) SetEnabled(on bool) {
	m.enabled.Store(on)
}
