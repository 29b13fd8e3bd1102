package event

// Message is a decoded event. It's one of NoteOn, NoteOff, KeyPressure,
// ControlChange, ProgramChange, ChannelPressure, PitchBend or SystemMessage.
type Message interface {
	message()
}

type (
	// NoteOn starts a note.
	NoteOn struct {
		Channel  uint8
		Note     uint8
		Velocity uint8
	}

	// NoteOff stops a note.
	NoteOff struct {
		Channel  uint8
		Note     uint8
		Velocity uint8
	}

	// KeyPressure is polyphonic aftertouch.
	KeyPressure struct {
		Channel  uint8
		Note     uint8
		Pressure uint8
	}

	// ControlChange sets a controller value.
	ControlChange struct {
		Channel    uint8
		Controller uint8
		Value      uint8
	}

	// ProgramChange selects a program.
	ProgramChange struct {
		Channel uint8
		Program uint8
	}

	// ChannelPressure is channel aftertouch.
	ChannelPressure struct {
		Channel  uint8
		Pressure uint8
	}

	// PitchBend is the pitch wheel position normalized to [-1, 1).
	PitchBend struct {
		Channel uint8
		Value   float64
	}

	// SystemMessage is any system message, passed through undecoded.
	SystemMessage struct {
		Status uint8
		Data   []byte
	}
)

func (NoteOn) message()          {}
func (NoteOff) message()         {}
func (KeyPressure) message()     {}
func (ControlChange) message()   {}
func (ProgramChange) message()   {}
func (ChannelPressure) message() {}
func (PitchBend) message()       {}
func (SystemMessage) message()   {}

// Decode returns the typed message of the event. Note down with zero
// velocity is decoded as NoteOff.
func (e Event) Decode() Message {
	switch e.Type {
	case NoteDown:
		if e.data(1) == 0 {
			return NoteOff{Channel: e.Channel, Note: e.data(0)}
		}
		return NoteOn{Channel: e.Channel, Note: e.data(0), Velocity: e.data(1)}
	case NoteUp:
		return NoteOff{Channel: e.Channel, Note: e.data(0), Velocity: e.data(1)}
	case Aftertouch:
		return KeyPressure{Channel: e.Channel, Note: e.data(0), Pressure: e.data(1)}
	case Control:
		return ControlChange{Channel: e.Channel, Controller: e.data(0), Value: e.data(1)}
	case Program:
		return ProgramChange{Channel: e.Channel, Program: e.data(0)}
	case Pressure:
		return ChannelPressure{Channel: e.Channel, Pressure: e.data(0)}
	case PitchWheel:
		v := int(e.data(0)) | int(e.data(1))<<7
		return PitchBend{Channel: e.Channel, Value: float64(v-8192) / 8192}
	}
	return SystemMessage{Status: byte(e.Type)<<4 | e.Channel, Data: e.Payload}
}
