package dsp

import (
	"math"
	"sync/atomic"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
)

// Adder sums its inputs.
type Adder struct {
	*graph.Filter[float64, float64]
}

// NewAdder returns an adder with numInputs inputs.
func NewAdder(e *synth.Engine, numInputs int) *Adder {
	return &Adder{
		Filter: graph.NewFilter(e, numInputs, 1, func(t uint64, in, out []float64) {
			for _, v := range in {
				out[0] += v
			}
		}),
	}
}

// Gain multiplies its inputs by a factor set in decibels. Gain can be set
// from any goroutine.
type Gain struct {
	*graph.Filter[float64, float64]
	factor atomic.Uint64
}

// NewGain returns a gain with numChannels inputs and outputs.
func NewGain(e *synth.Engine, numChannels int, db float64) *Gain {
	g := &Gain{}
	g.SetGain(db)
	g.Filter = graph.NewFilter(e, numChannels, numChannels, func(t uint64, in, out []float64) {
		f := math.Float64frombits(g.factor.Load())
		for i := range in {
			out[i] = in[i] * f
		}
	})
	return g
}

// SetGain sets gain in decibels.
func (g *Gain) SetGain(db float64) {
	g.factor.Store(math.Float64bits(math.Pow(10, db/20)))
}

// Factor returns the linear gain.
func (g *Gain) Factor() float64 {
	return math.Float64frombits(g.factor.Load())
}
