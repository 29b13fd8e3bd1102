// Package poly provides a polyphonic instrument: a fixed pool of voices
// multiplexed over incoming note events.
//
// Instrument owns the voice state machine and the allocation policy. A note
// that is already sounding retriggers its own voice. Otherwise the least
// recently used free voice is taken. When all voices are busy the least
// recently triggered voice is stolen, even if it's still sounding.
// Concrete instruments only provide a Handler per voice.
package poly

import (
	"container/list"
	"errors"
	"fmt"
	"math"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/metric"
)

// BendRange is the pitch wheel range in semitones.
const BendRange = 2

// ErrNoVoices is returned when instrument is created without voices.
var ErrNoVoices = errors.New("instrument needs at least one voice")

// Factory creates the handler and the audio output of voice i.
type Factory func(i int) (Handler, *graph.AudioChannel, error)

// Instrument is an event-rate consumer that drives a pool of voices. Its
// realtime methods must be called from the realtime goroutine only; Play,
// Release, Sustain and Bend are safe for concurrent use.
type Instrument struct {
	*graph.Consumer[event.Batch]
	e      *synth.Engine
	log    synth.Logger
	voices []*Voice
	all    *list.List // recency order, most recent at the back
	free   *list.List // free pool, least recently freed at the front
	notes  map[uint8]*Voice
	mix    *dsp.Adder
	bend   float64
}

// NewInstrument creates numVoices voices with the factory and registers
// the instrument with the timing manager as an event consumer. Its event
// input is unconnected.
func NewInstrument(e *synth.Engine, numVoices int, factory Factory) (*Instrument, error) {
	if numVoices < 1 {
		return nil, ErrNoVoices
	}
	i := &Instrument{
		e:      e,
		log:    e.Logger(),
		voices: make([]*Voice, numVoices),
		all:    list.New(),
		free:   list.New(),
		notes:  make(map[uint8]*Voice, numVoices),
		mix:    dsp.NewAdder(e, numVoices),
		bend:   1,
	}
	for n := range i.voices {
		h, out, err := factory(n)
		if err != nil {
			return nil, fmt.Errorf("voice %d: %w", n, err)
		}
		v := &Voice{
			index:   n,
			parent:  i,
			handler: h,
			output:  out,
		}
		v.recent = i.all.PushBack(v)
		v.free = i.free.PushBack(v)
		if err := i.mix.Connect(out, n); err != nil {
			return nil, err
		}
		i.voices[n] = v
	}
	i.Consumer = graph.NewConsumer(e, 1, i.process)
	e.Timing().AddEventConsumer(i)
	return i, nil
}

// Output returns the mix of all voices.
func (i *Instrument) Output() *graph.AudioChannel {
	return i.mix.MustOutput(0)
}

// Voices returns all voices of the instrument.
func (i *Instrument) Voices() []*Voice {
	return i.voices
}

// VoiceFor returns the voice assigned to the note, or nil.
func (i *Instrument) VoiceFor(note uint8) *Voice {
	return i.notes[note]
}

func (i *Instrument) process(t uint64, in []event.Batch) {
	for _, e := range in[0] {
		switch m := e.Decode().(type) {
		case event.NoteOn:
			i.NoteDown(t, m.Note, float64(m.Velocity)/127)
		case event.NoteOff:
			i.NoteUp(t, m.Note)
		case event.PitchBend:
			i.PitchWheel(t, m.Value)
		case event.ControlChange:
			switch m.Controller {
			case event.SustainPedal:
				if m.Value >= 64 {
					i.SustainDown(t)
				} else {
					i.SustainUp(t)
				}
			case event.ModulationWheel:
				i.ModulationWheel(t, float64(m.Value)/127)
			default:
				i.message(t, m)
			}
		default:
			i.message(t, m)
		}
	}
}

// NoteDown allocates a voice for the note and starts it at time step t.
func (i *Instrument) NoteDown(t uint64, note uint8, velocity float64) {
	v, ok := i.notes[note]
	switch {
	case ok:
		// retrigger the same voice
	case i.free.Len() > 0:
		v = i.free.Remove(i.free.Front()).(*Voice)
		v.free = nil
	default:
		v = i.all.Front().Value.(*Voice)
		if i.notes[v.note] == v {
			delete(i.notes, v.note)
		}
		i.log.Debug(fmt.Sprintf("voice %d: note %d stolen by %d at %d", v.index, v.note, note, t))
		metric.Steal(i)
	}
	i.all.MoveToBack(v.recent)
	i.notes[note] = v
	v.noteDown(t, note, velocity, i.bend)
}

// NoteUp releases the key of the note at time step t. Notes without voice
// are ignored.
func (i *Instrument) NoteUp(t uint64, note uint8) {
	if v, ok := i.notes[note]; ok {
		v.noteUp(t)
	}
}

// SustainDown presses the sustain pedal for all voices.
func (i *Instrument) SustainDown(t uint64) {
	for _, v := range i.voices {
		v.sustainDown()
	}
}

// SustainUp releases the sustain pedal. Voices whose keys are up are
// released.
func (i *Instrument) SustainUp(t uint64) {
	for _, v := range i.voices {
		v.sustainUp(t)
	}
}

// PitchWheel bends all playing voices. Value in range [-1, 1] is mapped to
// BendRange semitones.
func (i *Instrument) PitchWheel(t uint64, value float64) {
	value = math.Max(-1, math.Min(1, value))
	i.bend = math.Pow(2, value*BendRange/12)
	for _, v := range i.voices {
		v.pitchWheel(t, i.bend)
	}
}

// ModulationWheel passes the value to handlers that implement
// ModulationHandler.
func (i *Instrument) ModulationWheel(t uint64, value float64) {
	for _, v := range i.voices {
		if h, ok := v.handler.(ModulationHandler); ok {
			h.ModulationWheel(t, value)
		}
	}
}

func (i *Instrument) message(t uint64, m event.Message) {
	for _, v := range i.voices {
		if h, ok := v.handler.(MessageHandler); ok {
			h.Message(t, m)
		}
	}
}

func (i *Instrument) voiceDone(v *Voice) {
	if i.notes[v.note] == v {
		delete(i.notes, v.note)
	}
	v.free = i.free.PushBack(v)
}

// Play triggers the note at time step at. Zero time means as soon as
// possible.
func (i *Instrument) Play(note uint8, velocity float64, at uint64) {
	i.Schedule(i.resolve(at), func(t uint64) {
		i.NoteDown(t, note, velocity)
	})
}

// Release releases the note at time step at. Zero time means as soon as
// possible.
func (i *Instrument) Release(note uint8, at uint64) {
	i.Schedule(i.resolve(at), func(t uint64) {
		i.NoteUp(t, note)
	})
}

// Sustain presses or releases the sustain pedal at time step at. Zero time
// means as soon as possible.
func (i *Instrument) Sustain(on bool, at uint64) {
	i.Schedule(i.resolve(at), func(t uint64) {
		if on {
			i.SustainDown(t)
		} else {
			i.SustainUp(t)
		}
	})
}

// Bend moves the pitch wheel at time step at. Zero time means as soon as
// possible.
func (i *Instrument) Bend(value float64, at uint64) {
	i.Schedule(i.resolve(at), func(t uint64) {
		i.PitchWheel(t, value)
	})
}

func (i *Instrument) resolve(at uint64) uint64 {
	if at != 0 {
		return at
	}
	return i.e.Timing().ProjectNow()
}
