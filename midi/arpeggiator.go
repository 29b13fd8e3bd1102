package midi

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/timing"
)

// Pattern is the order the arpeggiator walks the held keys.
type Pattern int32

// Patterns.
const (
	Up Pattern = iota
	Down
	UpDown
)

// ErrUnknownPattern is returned when the pattern name is not known.
var ErrUnknownPattern = errors.New("unknown pattern")

// ParsePattern returns the pattern by its name: up, down or updown.
func ParsePattern(name string) (Pattern, error) {
	switch strings.ToLower(name) {
	case "up":
		return Up, nil
	case "down":
		return Down, nil
	case "updown":
		return UpDown, nil
	}
	return Up, fmt.Errorf("%w: %q", ErrUnknownPattern, name)
}

// Arpeggiator turns held keys into a sequence of single notes synced to
// subdivisions of the beat. Note events are consumed, everything else
// passes through. It must be pulled at the current step, which is the
// case when its consumer is ticked by the timing manager.
type Arpeggiator struct {
	*graph.Filter[event.Batch, event.Batch]
	rhythm      *timing.Rhythm
	numerator   int
	denominator int
	pattern     atomic.Int32

	held     []uint8
	index    int
	step     int
	channel  uint8
	velocity uint8
	sounding bool
	note     uint8
}

// NewArpeggiator returns an arpeggiator that plays numerator notes per
// denominator beats.
func NewArpeggiator(e *synth.Engine, numerator, denominator int, p Pattern) *Arpeggiator {
	a := &Arpeggiator{
		rhythm:      e.Rhythm(),
		numerator:   numerator,
		denominator: denominator,
	}
	a.pattern.Store(int32(p))
	a.Filter = graph.NewFilter(e, 1, 1, a.filter)
	return a
}

// SetPattern changes the pattern. It's safe for concurrent use.
func (a *Arpeggiator) SetPattern(p Pattern) {
	a.pattern.Store(int32(p))
}

// Output returns the event channel.
func (a *Arpeggiator) Output() *graph.EventChannel {
	return a.MustOutput(0)
}

func (a *Arpeggiator) filter(t uint64, in, out []event.Batch) {
	var b event.Batch
	for _, ev := range in[0] {
		switch m := ev.Decode().(type) {
		case event.NoteOn:
			a.press(m.Note)
			a.channel = ev.Channel
			a.velocity = m.Velocity
		case event.NoteOff:
			a.lift(m.Note)
		default:
			b = append(b, ev)
		}
	}
	if len(a.held) == 0 {
		if a.sounding {
			b = append(b, event.NewNoteOff(a.channel, a.note))
			a.sounding = false
		}
		a.step = 0
		out[0] = b
		return
	}
	if a.rhythm.IsBeatSubdivision(a.numerator, a.denominator) {
		if a.sounding {
			b = append(b, event.NewNoteOff(a.channel, a.note))
		}
		a.note = a.next()
		a.sounding = true
		b = append(b, event.NewNoteOn(a.channel, a.note, a.velocity))
	}
	out[0] = b
}

// next returns the key to play and advances the pattern.
func (a *Arpeggiator) next() uint8 {
	n := len(a.held)
	i := a.step
	a.step++
	switch Pattern(a.pattern.Load()) {
	case Down:
		return a.held[n-1-i%n]
	case UpDown:
		if n == 1 {
			return a.held[0]
		}
		period := 2 * (n - 1)
		i %= period
		if i >= n {
			i = period - i
		}
		return a.held[i]
	}
	return a.held[i%n]
}

func (a *Arpeggiator) press(note uint8) {
	i := sort.Search(len(a.held), func(i int) bool { return a.held[i] >= note })
	if i < len(a.held) && a.held[i] == note {
		return
	}
	a.held = append(a.held, 0)
	copy(a.held[i+1:], a.held[i:])
	a.held[i] = note
}

func (a *Arpeggiator) lift(note uint8) {
	i := sort.Search(len(a.held), func(i int) bool { return a.held[i] >= note })
	if i < len(a.held) && a.held[i] == note {
		a.held = append(a.held[:i], a.held[i+1:]...)
	}
}
