package graph

import (
	"github.com/pipelined/synth"
	"github.com/pipelined/synth/metric"
	"github.com/pipelined/synth/schedule"
)

// BlockFunc computes a run of consecutive time steps starting at t. Out has
// one slice per output channel, all of the same length.
type BlockFunc[T any] func(t uint64, out [][]T)

// BlockGenerator produces a block of time steps per pass. A pass is split
// at the trigger times of pending scheduled callbacks, so a callback for
// step t is executed before step t is computed, exactly as with Generator.
type BlockGenerator[T any] struct {
	*schedule.Scheduler
	fn        BlockFunc[T]
	blockSize int
	outputs   []*Channel[T]
	block     [][]T
	segment   [][]T
	cursor    uint64
	measure   metric.MeasureFunc
}

// NewBlockGenerator returns a generator that renders blockSize steps per
// pass. Its channels retain at least one block.
func NewBlockGenerator[T any](e *synth.Engine, numOutputs, blockSize int, fn BlockFunc[T]) *BlockGenerator[T] {
	if blockSize < 1 {
		blockSize = 1
	}
	start := e.Timing().Now()
	g := &BlockGenerator[T]{
		Scheduler: schedule.New(),
		fn:        fn,
		blockSize: blockSize,
		outputs:   make([]*Channel[T], numOutputs),
		block:     make([][]T, numOutputs),
		segment:   make([][]T, numOutputs),
		cursor:    start,
	}
	g.measure = metric.Meter(g, e.SampleRate())
	capacity := e.Retention()
	if capacity < blockSize {
		capacity = blockSize
	}
	for i := range g.outputs {
		g.outputs[i] = newChannel[T](e, g, capacity, start)
		g.block[i] = make([]T, blockSize)
	}
	return g
}

func (g *BlockGenerator[T]) produce() {
	start := g.cursor
	end := start + uint64(g.blockSize)
	var zero T
	for i := range g.block {
		for j := range g.block[i] {
			g.block[i][j] = zero
		}
	}
	for t := start; t < end; {
		g.Scheduler.Run(t)
		n := end - t
		if next, ok := g.Scheduler.Next(); ok && next < end {
			if next > t {
				n = next - t
			} else {
				n = 1
			}
		}
		for i := range g.block {
			g.segment[i] = g.block[i][t-start : t-start+n]
		}
		g.fn(t, g.segment)
		t += n
	}
	for i, c := range g.outputs {
		for _, v := range g.block[i] {
			c.push(v)
		}
	}
	g.cursor = end
	g.measure(int64(g.blockSize))
}

// Output returns the output channel with index i.
func (g *BlockGenerator[T]) Output(i int) (*Channel[T], error) {
	return output(g.outputs, i)
}

// MustOutput is like Output, but panics if index is out of range.
func (g *BlockGenerator[T]) MustOutput(i int) *Channel[T] {
	return mustOutput(g.outputs, i)
}

// NumOutputs returns the number of output channels.
func (g *BlockGenerator[T]) NumOutputs() int {
	return len(g.outputs)
}

// BlockSize returns the number of steps rendered per pass.
func (g *BlockGenerator[T]) BlockSize() int {
	return g.blockSize
}

// Cursor returns the next time step to be produced.
func (g *BlockGenerator[T]) Cursor() uint64 {
	return g.cursor
}
