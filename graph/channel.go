// Package graph provides the pull based signal graph: channels and the three
// node roles over them.
//
// A Channel is written by exactly one generator and read by any number of
// consumers. Reading a time step that was not produced yet makes the owning
// generator produce up to it. Reading a time step that was already evicted
// returns the zero value of the channel type: silence for audio and an empty
// batch for events.
//
// The graph must be acyclic. Connecting a node's output back to its own
// input, directly or not, is not detected and leads to infinite recursion.
package graph

import (
	"errors"
	"fmt"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/internal/ring"
	"github.com/pipelined/synth/metric"
)

var (
	// ErrChannelOutOfRange is returned when channel index is not valid for
	// the node.
	ErrChannelOutOfRange = errors.New("channel index out of range")
	// ErrChannelNotFound is returned when channel is not connected to the
	// node.
	ErrChannelNotFound = errors.New("channel not found")
)

type (
	// AudioChannel carries one sample per time step.
	AudioChannel = Channel[float64]
	// EventChannel carries one batch of events per time step.
	EventChannel = Channel[event.Batch]
)

// producer is implemented by the generator that owns a channel. Every call
// produces at least one next time step for all its outputs.
type producer interface {
	produce()
}

// Channel is a time indexed edge between a generator and its consumers.
// It's not safe for concurrent use: channels are read by the realtime
// goroutine only.
type Channel[T any] struct {
	id    string
	buf   *ring.Buffer[T]
	owner producer
	log   synth.Logger
}

func newChannel[T any](e *synth.Engine, owner producer, capacity int, start uint64) *Channel[T] {
	return &Channel[T]{
		id:    synth.NewUID(),
		buf:   ring.New[T](capacity, start),
		owner: owner,
		log:   e.Logger(),
	}
}

// Read returns the value for time step t.
func (c *Channel[T]) Read(t uint64) T {
	if t < c.buf.Low() {
		c.log.Warn(fmt.Sprintf("channel %v: stale read at %d, oldest retained is %d", c, t, c.buf.Low()))
		metric.StaleRead(c)
		var zero T
		return zero
	}
	for c.buf.High() <= t {
		c.owner.produce()
	}
	v, _ := c.buf.Get(t)
	return v
}

// ID returns the unique id of the channel.
func (c *Channel[T]) ID() string {
	return c.id
}

// Low returns the oldest retained time step.
func (c *Channel[T]) Low() uint64 {
	return c.buf.Low()
}

// High returns the next time step to be produced.
func (c *Channel[T]) High() uint64 {
	return c.buf.High()
}

// Cap returns how many time steps the channel retains.
func (c *Channel[T]) Cap() int {
	return c.buf.Cap()
}

func (c *Channel[T]) String() string {
	return c.id
}

func (c *Channel[T]) push(v T) {
	c.buf.Push(v)
}
