package graph

import (
	"fmt"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/schedule"
)

// GenerateFunc computes the output values for time step t. Out has one
// element per output channel and is zeroed before the call.
type GenerateFunc[T any] func(t uint64, out []T)

// Generator produces one time step per pass. Scheduled callbacks for step t
// are executed right before the step is computed.
type Generator[T any] struct {
	*schedule.Scheduler
	fn      GenerateFunc[T]
	outputs []*Channel[T]
	frame   []T
	cursor  uint64
}

// NewGenerator returns a generator with numOutputs channels. The first
// produced time step is the current step of the engine.
func NewGenerator[T any](e *synth.Engine, numOutputs int, fn GenerateFunc[T]) *Generator[T] {
	start := e.Timing().Now()
	g := &Generator[T]{
		Scheduler: schedule.New(),
		fn:        fn,
		outputs:   make([]*Channel[T], numOutputs),
		frame:     make([]T, numOutputs),
		cursor:    start,
	}
	for i := range g.outputs {
		g.outputs[i] = newChannel[T](e, g, e.Retention(), start)
	}
	return g
}

func (g *Generator[T]) produce() {
	t := g.cursor
	g.Scheduler.Run(t)
	var zero T
	for i := range g.frame {
		g.frame[i] = zero
	}
	g.fn(t, g.frame)
	for i, c := range g.outputs {
		c.push(g.frame[i])
	}
	g.cursor++
}

// Output returns the output channel with index i.
func (g *Generator[T]) Output(i int) (*Channel[T], error) {
	return output(g.outputs, i)
}

// MustOutput is like Output, but panics if index is out of range. It's
// meant for graph construction code where the index is a constant.
func (g *Generator[T]) MustOutput(i int) *Channel[T] {
	return mustOutput(g.outputs, i)
}

// NumOutputs returns the number of output channels.
func (g *Generator[T]) NumOutputs() int {
	return len(g.outputs)
}

// Cursor returns the next time step to be produced.
func (g *Generator[T]) Cursor() uint64 {
	return g.cursor
}

func output[T any](outputs []*Channel[T], i int) (*Channel[T], error) {
	if i < 0 || i >= len(outputs) {
		return nil, fmt.Errorf("%w: output %d of %d", ErrChannelOutOfRange, i, len(outputs))
	}
	return outputs[i], nil
}

func mustOutput[T any](outputs []*Channel[T], i int) *Channel[T] {
	c, err := output(outputs, i)
	if err != nil {
		panic(err)
	}
	return c
}
