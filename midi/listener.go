// Package midi connects MIDI sources to the graph: live input ports, event
// filters and Standard MIDI File sessions.
package midi

import (
	"errors"
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
)

// ErrPortNotFound is returned when there is no input port with provided
// name.
var ErrPortNotFound = errors.New("midi port not found")

// Listener is an event-rate generator fed with raw MIDI messages from any
// goroutine. Each message is projected from the wall clock into sample time
// and delivered in the batch of that step. Messages that arrive too late
// for their step are delivered at the next step produced.
type Listener struct {
	*graph.Generator[event.Batch]
	e       *synth.Engine
	log     synth.Logger
	pending event.Batch
}

// NewListener returns a listener with one event output.
func NewListener(e *synth.Engine) *Listener {
	l := &Listener{
		e:   e,
		log: e.Logger(),
	}
	l.Generator = graph.NewGenerator(e, 1, func(t uint64, out []event.Batch) {
		out[0] = l.pending
		l.pending = nil
	})
	return l
}

// Output returns the event channel.
func (l *Listener) Output() *graph.EventChannel {
	return l.MustOutput(0)
}

// Receive parses the raw message and schedules it at the projected step.
// Malformed messages are dropped with a warning.
func (l *Listener) Receive(raw []byte) {
	ev, err := event.Parse(raw)
	if err != nil {
		l.log.Warn(fmt.Sprintf("midi: dropped % X: %v", raw, err))
		return
	}
	l.Schedule(l.e.Timing().ProjectNow(), func(uint64) {
		l.pending = append(l.pending, ev)
	})
}

// Open starts listening to the input port. Opened port feeds the listener
// until stop is called.
func Open(in drivers.In, l *Listener) (stop func(), err error) {
	if !in.IsOpen() {
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("open %v: %w", in, err)
		}
	}
	stop, err = gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		l.Receive(msg.Bytes())
	}, gomidi.HandleError(func(err error) {
		l.log.Error(fmt.Sprintf("midi: %v: %v", in, err))
	}))
	if err != nil {
		return nil, fmt.Errorf("listen %v: %w", in, err)
	}
	l.log.Info(fmt.Sprintf("midi: listening %v", in))
	return stop, nil
}

// Ports returns names of available input ports.
func Ports(drv drivers.Driver) ([]string, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

// Find returns the input port with provided name.
func Find(drv drivers.Driver, name string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	for _, in := range ins {
		if in.String() == name {
			return in, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}
