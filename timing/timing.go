// Package timing provides the sample clock of the engine.
//
// Manager owns the canonical sample counter and drives every registered
// consumer once per time step. It also keeps the mapping between the sample
// clock and the wall clock, which is published by the terminal audio output
// right after a block was handed to hardware and read by non-realtime event
// sources to project wall clock time into sample time.
package timing

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Ticker is a graph node driven by the Manager.
type Ticker interface {
	Tick(t uint64)
}

// TickerFunc allows to use ordinary functions as tickers.
type TickerFunc func(t uint64)

// Tick calls f(t).
func (f TickerFunc) Tick(t uint64) {
	f(t)
}

// Snapshot is the latest known mapping between sample time and wall clock.
type Snapshot struct {
	Synced     bool
	SampleTime uint64
	Timestamp  time.Time
}

// Manager is the single authority of sample time. Tick must be called from
// one goroutine only, the realtime one. Now, LastSynchronization, Project and
// the Rhythm queries are safe for concurrent use.
type Manager struct {
	sampleRate int
	blockSize  int
	clock      func() time.Time

	time   atomic.Uint64
	events []Ticker
	audio  []Ticker
	rhythm *Rhythm

	sync atomic.Pointer[Snapshot]

	mu          sync.Mutex
	subscribers []chan Snapshot
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock used for synchronization. It is meant
// for tests.
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		m.clock = clock
	}
}

// NewManager returns a manager for provided sample rate. Block size is the
// lookahead added to projected times.
func NewManager(sampleRate, blockSize int, options ...Option) *Manager {
	m := &Manager{
		sampleRate: sampleRate,
		blockSize:  blockSize,
		clock:      time.Now,
	}
	for _, option := range options {
		option(m)
	}
	m.sync.Store(&Snapshot{})
	m.rhythm = newRhythm(m)
	return m
}

// SampleRate returns the sample rate of the clock.
func (m *Manager) SampleRate() int {
	return m.sampleRate
}

// BlockSize returns the lookahead used by projections.
func (m *Manager) BlockSize() int {
	return m.blockSize
}

// Rhythm returns the musical time derived from this clock.
func (m *Manager) Rhythm() *Rhythm {
	return m.rhythm
}

// AddEventConsumer registers an event-rate consumer. Registration must
// happen before the clock is started.
func (m *Manager) AddEventConsumer(c Ticker) {
	m.events = append(m.events, c)
}

// AddAudioConsumer registers an audio-rate consumer. Registration must
// happen before the clock is started.
func (m *Manager) AddAudioConsumer(c Ticker) {
	m.audio = append(m.audio, c)
}

// Tick processes one time step: event consumers first, then audio consumers,
// so an event at step t is visible to any instrument rendering step t.
func (m *Manager) Tick() {
	t := m.time.Load()
	for _, c := range m.events {
		c.Tick(t)
	}
	for _, c := range m.audio {
		c.Tick(t)
	}
	m.time.Store(t + 1)
}

// Now returns the next time step to be processed.
func (m *Manager) Now() uint64 {
	return m.time.Load()
}

// Synchronize records that step t was handed to hardware right now. It
// replaces the previous snapshot and notifies subscribers without blocking.
func (m *Manager) Synchronize(t uint64) {
	s := &Snapshot{
		Synced:     true,
		SampleTime: t,
		Timestamp:  m.clock(),
	}
	m.sync.Store(s)

	if !m.mu.TryLock() {
		return
	}
	defer m.mu.Unlock()
	for _, c := range m.subscribers {
		select {
		case <-c:
		default:
		}
		select {
		case c <- *s:
		default:
		}
	}
}

// LastSynchronization returns the latest snapshot.
func (m *Manager) LastSynchronization() Snapshot {
	return *m.sync.Load()
}

// Project translates wall clock time into the equivalent sample time. The
// result is one block ahead of the last synchronized step, so it always
// lands in a block that was not rendered yet. Before the first
// synchronization the current step is returned.
func (m *Manager) Project(at time.Time) uint64 {
	s := m.sync.Load()
	if !s.Synced {
		return m.Now()
	}
	delay := math.Round(at.Sub(s.Timestamp).Seconds() * float64(m.sampleRate))
	projected := int64(s.SampleTime) + int64(m.blockSize) + int64(delay)
	if projected < 0 {
		return 0
	}
	return uint64(projected)
}

// ProjectNow projects current wall clock time.
func (m *Manager) ProjectNow() uint64 {
	return m.Project(m.clock())
}

// Subscribe returns a channel that receives the latest snapshot after every
// synchronization. Slow readers only miss intermediate values.
func (m *Manager) Subscribe() <-chan Snapshot {
	c := make(chan Snapshot, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, c)
	m.mu.Unlock()
	return c
}
