package graph

import (
	"github.com/pipelined/synth"
	"github.com/pipelined/synth/schedule"
)

// FilterFunc computes outputs for time step t from the inputs of the same
// step.
type FilterFunc[In, Out any] func(t uint64, in []In, out []Out)

// Filter reads its inputs and writes its outputs for the same time step, so
// filters can be chained without extra latency. It's driven either by reads
// of its outputs or by Tick.
type Filter[In, Out any] struct {
	*schedule.Scheduler
	in  *Consumer[In]
	out *Generator[Out]
}

// NewFilter returns a filter with numInputs unconnected inputs and
// numOutputs output channels.
func NewFilter[In, Out any](e *synth.Engine, numInputs, numOutputs int, fn FilterFunc[In, Out]) *Filter[In, Out] {
	f := &Filter[In, Out]{
		in: NewConsumer[In](e, numInputs, nil),
	}
	f.out = NewGenerator[Out](e, numOutputs, func(t uint64, out []Out) {
		fn(t, f.in.Frame(t), out)
	})
	f.Scheduler = f.out.Scheduler
	return f
}

// Tick makes sure the outputs are produced through time step t.
func (f *Filter[In, Out]) Tick(t uint64) {
	for f.out.cursor <= t {
		f.out.produce()
	}
}

// Connect attaches channel to input i.
func (f *Filter[In, Out]) Connect(ch *Channel[In], i int) error {
	return f.in.Connect(ch, i)
}

// Disconnect detaches input i.
func (f *Filter[In, Out]) Disconnect(i int) error {
	return f.in.Disconnect(i)
}

// Index returns the input index of the connected channel.
func (f *Filter[In, Out]) Index(ch *Channel[In]) (int, error) {
	return f.in.Index(ch)
}

// NumInputs returns the number of inputs.
func (f *Filter[In, Out]) NumInputs() int {
	return f.in.NumInputs()
}

// Output returns the output channel with index i.
func (f *Filter[In, Out]) Output(i int) (*Channel[Out], error) {
	return f.out.Output(i)
}

// MustOutput is like Output, but panics if index is out of range.
func (f *Filter[In, Out]) MustOutput(i int) *Channel[Out] {
	return f.out.MustOutput(i)
}

// NumOutputs returns the number of output channels.
func (f *Filter[In, Out]) NumOutputs() int {
	return f.out.NumOutputs()
}
