package timing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync/atomic"
)

// BeatType is the accent of a beat within a measure.
type BeatType int

// Beat types.
const (
	Downbeat BeatType = iota
	Accented
	Unaccented
)

func (b BeatType) String() string {
	switch b {
	case Downbeat:
		return "downbeat"
	case Accented:
		return "accented"
	case Unaccented:
		return "unaccented"
	}
	return "unknown"
}

// Meter is the sequence of beats in one measure.
type Meter []BeatType

// DefaultTempo is the tempo of a new Rhythm in beats per minute.
const DefaultTempo = 120

var (
	// ErrInvalidTempo is returned when tempo is not positive.
	ErrInvalidTempo = errors.New("tempo must be positive")
	// ErrInvalidMeter is returned when meter is empty or cannot be parsed.
	ErrInvalidMeter = errors.New("invalid meter")
)

// CommonTime is 4/4.
func CommonTime() Meter {
	return Meter{Downbeat, Unaccented, Unaccented, Unaccented}
}

// ParseMeter parses time signatures like "3/4" or "6/8". Compound meters
// with eighth note denominator get an accent on every third beat.
func ParseMeter(s string) (Meter, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMeter, s)
	}
	beats, err := strconv.Atoi(parts[0])
	if err != nil || beats <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMeter, s)
	}
	unit, err := strconv.Atoi(parts[1])
	if err != nil || unit <= 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMeter, s)
	}
	compound := unit == 8 && beats > 3 && beats%3 == 0
	m := make(Meter, beats)
	for i := range m {
		switch {
		case i == 0:
			m[i] = Downbeat
		case compound && i%3 == 0:
			m[i] = Accented
		default:
			m[i] = Unaccented
		}
	}
	return m, nil
}

// Rhythm derives musical time from the sample clock of its Manager. All
// queries are pure functions of the current step, the tempo and the meter.
// Changing tempo or meter moves the position to the top of the measure.
type Rhythm struct {
	m     *Manager
	state atomic.Pointer[rhythmState]
}

// rhythmState is immutable, a new value is stored on every change.
type rhythmState struct {
	tempo          int
	samplesPerBeat uint64
	meter          Meter
	anchor         uint64 // step of the last measure reset
}

func newRhythm(m *Manager) *Rhythm {
	r := &Rhythm{m: m}
	r.state.Store(&rhythmState{
		tempo:          DefaultTempo,
		samplesPerBeat: samplesPerBeat(m.sampleRate, DefaultTempo),
		meter:          CommonTime(),
	})
	return r
}

func samplesPerBeat(sampleRate, tempo int) uint64 {
	spb := math.Round(float64(sampleRate) * 60 / float64(tempo))
	if spb < 1 {
		return 1
	}
	return uint64(spb)
}

// Tempo returns the tempo in beats per minute.
func (r *Rhythm) Tempo() int {
	return r.state.Load().tempo
}

// SetTempo changes the tempo and resets the position to the top of the
// measure.
func (r *Rhythm) SetTempo(bpm int) error {
	if bpm <= 0 {
		return ErrInvalidTempo
	}
	s := r.state.Load()
	r.state.Store(&rhythmState{
		tempo:          bpm,
		samplesPerBeat: samplesPerBeat(r.m.sampleRate, bpm),
		meter:          s.meter,
		anchor:         r.m.Now(),
	})
	return nil
}

// Meter returns a copy of the current meter.
func (r *Rhythm) Meter() Meter {
	m := r.state.Load().meter
	return append(Meter(nil), m...)
}

// SetMeter changes the meter and resets the position to the top of the
// measure.
func (r *Rhythm) SetMeter(m Meter) error {
	if len(m) == 0 {
		return ErrInvalidMeter
	}
	s := r.state.Load()
	r.state.Store(&rhythmState{
		tempo:          s.tempo,
		samplesPerBeat: s.samplesPerBeat,
		meter:          append(Meter(nil), m...),
		anchor:         r.m.Now(),
	})
	return nil
}

// SamplesPerBeat returns the length of a beat in samples.
func (r *Rhythm) SamplesPerBeat() uint64 {
	return r.state.Load().samplesPerBeat
}

// position returns the state and how many samples into the measure the
// current step is.
func (r *Rhythm) position() (*rhythmState, uint64) {
	s := r.state.Load()
	now := r.m.Now()
	if now < s.anchor {
		return s, 0
	}
	return s, (now - s.anchor) % (s.samplesPerBeat * uint64(len(s.meter)))
}

// IsOnBeat returns true if the current step starts a beat.
func (r *Rhythm) IsOnBeat() bool {
	s, pos := r.position()
	return pos%s.samplesPerBeat == 0
}

// CurrentBeat returns the zero based index of the current beat in the
// measure.
func (r *Rhythm) CurrentBeat() int {
	s, pos := r.position()
	return int(pos / s.samplesPerBeat)
}

// CurrentBeatType returns the accent of the current beat.
func (r *Rhythm) CurrentBeatType() BeatType {
	s, pos := r.position()
	return s.meter[pos/s.samplesPerBeat]
}

// IsBeatSubdivision returns true if the current step falls on a subdivision
// of the beat into numerator/denominator parts: IsBeatSubdivision(2, 1) is
// an eighth note in 4/4, IsBeatSubdivision(3, 2) an eighth note triplet.
func (r *Rhythm) IsBeatSubdivision(numerator, denominator int) bool {
	s, pos := r.position()
	return onSubdivision(pos, s.samplesPerBeat, numerator, denominator)
}

// IsMeasureSubdivision is like IsBeatSubdivision for the whole measure.
func (r *Rhythm) IsMeasureSubdivision(numerator, denominator int) bool {
	s, pos := r.position()
	return onSubdivision(pos, s.samplesPerBeat*uint64(len(s.meter)), numerator, denominator)
}

func onSubdivision(pos, length uint64, numerator, denominator int) bool {
	if numerator <= 0 || denominator <= 0 {
		return false
	}
	period := length * uint64(denominator) / uint64(numerator)
	if period == 0 {
		return true
	}
	return pos%period == 0
}
