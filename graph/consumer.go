package graph

import (
	"fmt"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/schedule"
)

// ProcessFunc consumes the input values for time step t. In has one element
// per input; unconnected inputs hold the zero value.
type ProcessFunc[T any] func(t uint64, in []T)

// Consumer reads its inputs once per Tick. Consumers are registered with
// the timing manager or driven by a terminal output node.
type Consumer[T any] struct {
	*schedule.Scheduler
	fn     ProcessFunc[T]
	inputs []*Channel[T]
	frame  []T
}

// NewConsumer returns a consumer with numInputs unconnected inputs. Process
// function can be nil if the consumer reads inputs with Frame only.
func NewConsumer[T any](e *synth.Engine, numInputs int, fn ProcessFunc[T]) *Consumer[T] {
	return &Consumer[T]{
		Scheduler: schedule.New(),
		fn:        fn,
		inputs:    make([]*Channel[T], numInputs),
		frame:     make([]T, numInputs),
	}
}

// Connect attaches channel to input i. Previously connected channel is
// replaced.
func (c *Consumer[T]) Connect(ch *Channel[T], i int) error {
	if i < 0 || i >= len(c.inputs) {
		return fmt.Errorf("%w: input %d of %d", ErrChannelOutOfRange, i, len(c.inputs))
	}
	c.inputs[i] = ch
	return nil
}

// Disconnect detaches input i. Disconnected input reads the zero value.
func (c *Consumer[T]) Disconnect(i int) error {
	return c.Connect(nil, i)
}

// Index returns the input index of the connected channel.
func (c *Consumer[T]) Index(ch *Channel[T]) (int, error) {
	for i := range c.inputs {
		if ch != nil && c.inputs[i] == ch {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrChannelNotFound, ch)
}

// NumInputs returns the number of inputs.
func (c *Consumer[T]) NumInputs() int {
	return len(c.inputs)
}

// Frame reads all inputs for time step t. Returned slice is reused by the
// next call.
func (c *Consumer[T]) Frame(t uint64) []T {
	var zero T
	for i, ch := range c.inputs {
		if ch == nil {
			c.frame[i] = zero
			continue
		}
		c.frame[i] = ch.Read(t)
	}
	return c.frame
}

// Tick executes scheduled callbacks for t, reads the inputs and calls the
// process function.
func (c *Consumer[T]) Tick(t uint64) {
	c.Scheduler.Run(t)
	in := c.Frame(t)
	if c.fn != nil {
		c.fn(t, in)
	}
}
