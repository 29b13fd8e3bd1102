package poly

import (
	"container/list"

	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
)

// State of a voice.
type State int

// Voice states.
const (
	// Idle voice is free and silent.
	Idle State = iota
	// Held voice plays a note whose key is down.
	Held
	// Sustained voice plays a note and the sustain pedal is down.
	Sustained
	// Releasing voice is free, but its handler still renders a release
	// tail.
	Releasing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Held:
		return "held"
	case Sustained:
		return "held+sustained"
	case Releasing:
		return "releasing"
	}
	return "unknown"
}

// Handler renders a single voice. Methods are called on the realtime
// goroutine at event rate with the step the change must take effect at.
type Handler interface {
	// NoteDown starts a note. Velocity is in range [0, 1].
	NoteDown(t uint64, freq, velocity float64)
	// NoteUp releases the note.
	NoteUp(t uint64)
	// PitchWheel changes the frequency of the playing note.
	PitchWheel(t uint64, freq float64)
}

// Releaser is implemented by handlers with a release tail.
type Releaser interface {
	Releasing() bool
}

// ModulationHandler is implemented by handlers that react on modulation
// wheel. Value is in range [0, 1].
type ModulationHandler interface {
	ModulationWheel(t uint64, value float64)
}

// MessageHandler is implemented by handlers that want the messages the
// instrument doesn't handle itself.
type MessageHandler interface {
	Message(t uint64, m event.Message)
}

// Voice is a slot of the instrument that renders one note at a time.
// Voices are owned by their instrument and recycled for its whole lifetime.
type Voice struct {
	index   int
	parent  *Instrument
	handler Handler
	output  *graph.AudioChannel

	recent *list.Element // position in recency order
	free   *list.Element // position in free pool, nil if assigned

	note      uint8
	freq      float64
	held      bool
	sustained bool
	playing   bool
}

// State returns the state of the voice.
func (v *Voice) State() State {
	switch {
	case v.playing && v.sustained:
		return Sustained
	case v.playing:
		return Held
	}
	if r, ok := v.handler.(Releaser); ok && r.Releasing() {
		return Releasing
	}
	return Idle
}

// Note returns the note of the voice. It's meaningful only if the voice
// is playing.
func (v *Voice) Note() uint8 {
	return v.note
}

// Freq returns the unbent frequency of the note.
func (v *Voice) Freq() float64 {
	return v.freq
}

// Index returns the position of the voice in the instrument.
func (v *Voice) Index() int {
	return v.index
}

// Handler returns the handler that renders the voice.
func (v *Voice) Handler() Handler {
	return v.handler
}

// Output returns the audio output of the voice.
func (v *Voice) Output() *graph.AudioChannel {
	return v.output
}

func (v *Voice) noteDown(t uint64, note uint8, velocity, bend float64) {
	v.held = true
	v.playing = true
	v.note = note
	v.freq = event.NoteToFreq(note)
	v.handler.NoteDown(t, v.freq*bend, velocity)
}

func (v *Voice) noteUp(t uint64) {
	if !v.held {
		return
	}
	v.held = false
	if v.playing && !v.sustained {
		v.done(t)
	}
}

func (v *Voice) sustainDown() {
	v.sustained = true
}

func (v *Voice) sustainUp(t uint64) {
	if !v.sustained {
		return
	}
	v.sustained = false
	if v.playing && !v.held {
		v.done(t)
	}
}

func (v *Voice) pitchWheel(t uint64, bend float64) {
	if v.playing {
		v.handler.PitchWheel(t, v.freq*bend)
	}
}

func (v *Voice) done(t uint64) {
	v.playing = false
	v.handler.NoteUp(t)
	v.parent.voiceDone(v)
}
