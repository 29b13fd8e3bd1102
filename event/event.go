// Package event defines discrete musical events carried by event channels.
package event

import (
	"errors"
	"fmt"
	"math"
)

// Type is the status nibble of a channel message.
type Type uint8

// Event types.
const (
	NoteUp     Type = 0x8
	NoteDown   Type = 0x9
	Aftertouch Type = 0xA
	Control    Type = 0xB
	Program    Type = 0xC
	Pressure   Type = 0xD
	PitchWheel Type = 0xE
	System     Type = 0xF
)

func (t Type) String() string {
	switch t {
	case NoteUp:
		return "note up"
	case NoteDown:
		return "note down"
	case Aftertouch:
		return "aftertouch"
	case Control:
		return "control"
	case Program:
		return "program"
	case Pressure:
		return "pressure"
	case PitchWheel:
		return "pitch wheel"
	case System:
		return "system"
	}
	return fmt.Sprintf("type(%#x)", uint8(t))
}

// Controllers handled by instruments.
const (
	ModulationWheel uint8 = 1
	SustainPedal    uint8 = 64
)

var (
	// ErrEmptyMessage is returned when raw message has no bytes.
	ErrEmptyMessage = errors.New("empty message")
	// ErrMalformed is returned when raw message cannot be parsed.
	ErrMalformed = errors.New("malformed message")
)

// Event is an immutable message. For channel messages Channel is the low
// nibble of the status byte; for system messages it's the whole low nibble
// of the status and Payload holds everything after it.
type Event struct {
	Type    Type
	Channel uint8
	Payload []byte
}

// Batch is the set of events of one time step.
type Batch []Event

// Parse validates raw message bytes and returns an event which doesn't
// reference raw.
func Parse(raw []byte) (Event, error) {
	if len(raw) == 0 {
		return Event{}, ErrEmptyMessage
	}
	status := raw[0]
	if status < 0x80 {
		return Event{}, fmt.Errorf("%w: status %#x", ErrMalformed, status)
	}
	e := Event{
		Type:    Type(status >> 4),
		Channel: status & 0x0F,
	}
	data := raw[1:]
	if e.Type != System {
		n := dataLen(e.Type)
		if len(data) < n {
			return Event{}, fmt.Errorf("%w: %v needs %d data bytes, got %d", ErrMalformed, e.Type, n, len(data))
		}
		data = data[:n]
		for _, b := range data {
			if b > 0x7F {
				return Event{}, fmt.Errorf("%w: data byte %#x", ErrMalformed, b)
			}
		}
	}
	e.Payload = append([]byte(nil), data...)
	return e, nil
}

func dataLen(t Type) int {
	switch t {
	case Program, Pressure:
		return 1
	default:
		return 2
	}
}

// Bytes encodes the event back to raw message.
func (e Event) Bytes() []byte {
	b := make([]byte, 0, len(e.Payload)+1)
	b = append(b, byte(e.Type)<<4|e.Channel&0x0F)
	return append(b, e.Payload...)
}

func (e Event) data(i int) uint8 {
	if i < len(e.Payload) {
		return e.Payload[i]
	}
	return 0
}

func (e Event) String() string {
	return fmt.Sprintf("%v ch%d % x", e.Type, e.Channel, e.Payload)
}

// NewNoteOn returns a note down event.
func NewNoteOn(channel, note, velocity uint8) Event {
	return Event{Type: NoteDown, Channel: channel & 0x0F, Payload: []byte{note & 0x7F, velocity & 0x7F}}
}

// NewNoteOff returns a note up event.
func NewNoteOff(channel, note uint8) Event {
	return Event{Type: NoteUp, Channel: channel & 0x0F, Payload: []byte{note & 0x7F, 0}}
}

// NewControlChange returns a control event.
func NewControlChange(channel, controller, value uint8) Event {
	return Event{Type: Control, Channel: channel & 0x0F, Payload: []byte{controller & 0x7F, value & 0x7F}}
}

// NewPitchBend returns a pitch wheel event. Value is in range [-1, 1].
func NewPitchBend(channel uint8, value float64) Event {
	v := int(math.Round(math.Max(-1, math.Min(1, value))*8192)) + 8192
	if v > 0x3FFF {
		v = 0x3FFF
	}
	return Event{Type: PitchWheel, Channel: channel & 0x0F, Payload: []byte{byte(v & 0x7F), byte(v >> 7)}}
}

// NoteToFreq converts note number to frequency in Hz, A4 = 69 = 440 Hz.
func NoteToFreq(note uint8) float64 {
	return 440 * math.Pow(2, (float64(note)-69)/12)
}
