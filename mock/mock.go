// Package mock provides counting graph nodes and voice handlers for tests.
package mock

import (
	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/poly"
)

// Source generates a constant value and counts produced steps.
type Source struct {
	*graph.Generator[float64]
	counter
	Value float64
}

// NewSource returns a source with numOutputs channels.
func NewSource(e *synth.Engine, numOutputs int, value float64) *Source {
	s := &Source{Value: value}
	s.Generator = graph.NewGenerator(e, numOutputs, func(t uint64, out []float64) {
		for i := range out {
			out[i] = s.Value
		}
		s.advance(t)
	})
	return s
}

// Sink records every frame it consumes.
type Sink struct {
	*graph.Consumer[float64]
	counter
	Frames [][]float64
	// Discard disables recording of frames.
	Discard bool
}

// NewSink returns a sink with numInputs inputs.
func NewSink(e *synth.Engine, numInputs int) *Sink {
	s := &Sink{}
	s.Consumer = graph.NewConsumer(e, numInputs, func(t uint64, in []float64) {
		if !s.Discard {
			s.Frames = append(s.Frames, append([]float64(nil), in...))
		}
		s.advance(t)
	})
	return s
}

// Events emits the batches put into it at requested steps.
type Events struct {
	*graph.Generator[event.Batch]
	counter
	batches map[uint64]event.Batch
}

// NewEvents returns a generator of predefined event batches.
func NewEvents(e *synth.Engine) *Events {
	s := &Events{
		batches: make(map[uint64]event.Batch),
	}
	s.Generator = graph.NewGenerator(e, 1, func(t uint64, out []event.Batch) {
		out[0] = s.batches[t]
		s.advance(t)
	})
	return s
}

// Put adds events to the batch of step t. It must be called before the
// step is produced.
func (s *Events) Put(t uint64, events ...event.Event) {
	s.batches[t] = append(s.batches[t], events...)
}

// Output returns the event channel.
func (s *Events) Output() *graph.EventChannel {
	return s.MustOutput(0)
}

// EventSink records non-empty batches by step.
type EventSink struct {
	*graph.Consumer[event.Batch]
	counter
	Batches map[uint64]event.Batch
}

// NewEventSink returns an event consumer registered with the timing
// manager.
func NewEventSink(e *synth.Engine) *EventSink {
	s := &EventSink{
		Batches: make(map[uint64]event.Batch),
	}
	s.Consumer = graph.NewConsumer(e, 1, func(t uint64, in []event.Batch) {
		if len(in[0]) > 0 {
			s.Batches[t] = in[0]
		}
		s.advance(t)
	})
	e.Timing().AddEventConsumer(s)
	return s
}

// Call is a recorded handler call.
type Call struct {
	Method string
	T      uint64
	Freq   float64
	Value  float64
}

// Handler records voice handler calls. Its output is a constant channel
// that is 1 while the note is down.
type Handler struct {
	*graph.Generator[float64]
	Calls []Call
	// Tail makes the handler report a release tail after note up.
	Tail     bool
	sounding bool
	tail     bool
}

// NewHandler returns a handler with its own output channel.
func NewHandler(e *synth.Engine) *Handler {
	h := &Handler{}
	h.Generator = graph.NewGenerator(e, 1, func(t uint64, out []float64) {
		if h.sounding {
			out[0] = 1
		}
	})
	return h
}

// Factory returns a factory that keeps created handlers in provided slice.
func Factory(e *synth.Engine, handlers *[]*Handler) poly.Factory {
	return func(int) (poly.Handler, *graph.AudioChannel, error) {
		h := NewHandler(e)
		*handlers = append(*handlers, h)
		return h, h.MustOutput(0), nil
	}
}

// NoteDown implements poly.Handler.
func (h *Handler) NoteDown(t uint64, freq, velocity float64) {
	h.Calls = append(h.Calls, Call{Method: "NoteDown", T: t, Freq: freq, Value: velocity})
	h.sounding = true
	h.tail = false
}

// NoteUp implements poly.Handler.
func (h *Handler) NoteUp(t uint64) {
	h.Calls = append(h.Calls, Call{Method: "NoteUp", T: t})
	h.sounding = false
	h.tail = h.Tail
}

// PitchWheel implements poly.Handler.
func (h *Handler) PitchWheel(t uint64, freq float64) {
	h.Calls = append(h.Calls, Call{Method: "PitchWheel", T: t, Freq: freq})
}

// ModulationWheel implements poly.ModulationHandler.
func (h *Handler) ModulationWheel(t uint64, value float64) {
	h.Calls = append(h.Calls, Call{Method: "ModulationWheel", T: t, Value: value})
}

// Releasing implements poly.Releaser.
func (h *Handler) Releasing() bool {
	return h.tail
}

// EndTail stops the release tail.
func (h *Handler) EndTail() {
	h.tail = false
}

// Last returns the last recorded call.
func (h *Handler) Last() Call {
	if len(h.Calls) == 0 {
		return Call{}
	}
	return h.Calls[len(h.Calls)-1]
}

// counter counts produced or consumed steps.
type counter struct {
	steps int
	last  uint64
}

func (c *counter) advance(t uint64) {
	c.steps++
	c.last = t
}

// Count returns the number of steps and the last step.
func (c *counter) Count() (int, uint64) {
	return c.steps, c.last
}
