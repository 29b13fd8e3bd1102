package midi

import (
	"sync/atomic"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
)

// Transpose shifts notes by a number of semitones. Shifted notes are
// clamped to the MIDI range. A sounding note keeps the shift it was
// started with until its note off.
type Transpose struct {
	*graph.Filter[event.Batch, event.Batch]
	shift    atomic.Int32
	sounding [16][128]int16 // shifted note + 1 per channel and input note
}

// NewTranspose returns a filter that shifts notes by steps semitones.
func NewTranspose(e *synth.Engine, steps int) *Transpose {
	tr := &Transpose{}
	tr.shift.Store(int32(steps))
	tr.Filter = graph.NewFilter(e, 1, 1, func(t uint64, in, out []event.Batch) {
		if len(in[0]) == 0 {
			return
		}
		shift := int(tr.shift.Load())
		b := make(event.Batch, len(in[0]))
		for i, ev := range in[0] {
			b[i] = tr.transpose(ev, shift)
		}
		out[0] = b
	})
	return tr
}

// SetShift changes the shift. It's safe for concurrent use.
func (tr *Transpose) SetShift(steps int) {
	tr.shift.Store(int32(steps))
}

// Output returns the event channel.
func (tr *Transpose) Output() *graph.EventChannel {
	return tr.MustOutput(0)
}

func (tr *Transpose) transpose(ev event.Event, shift int) event.Event {
	switch ev.Type {
	case event.NoteDown, event.NoteUp, event.Aftertouch:
	default:
		return ev
	}
	if len(ev.Payload) == 0 {
		return ev
	}
	in := ev.Payload[0] & 0x7f
	held := &tr.sounding[ev.Channel&0x0f][in]
	note := clamp(int(in) + shift)
	switch {
	case ev.Type == event.NoteDown && len(ev.Payload) > 1 && ev.Payload[1] > 0:
		*held = int16(note) + 1
	case *held > 0:
		note = int(*held - 1)
		if ev.Type != event.Aftertouch {
			*held = 0
		}
	}
	if note == int(ev.Payload[0]) {
		return ev
	}
	payload := append([]byte(nil), ev.Payload...)
	payload[0] = byte(note)
	ev.Payload = payload
	return ev
}

func clamp(note int) int {
	switch {
	case note < 0:
		return 0
	case note > 127:
		return 127
	}
	return note
}
