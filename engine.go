package synth

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/pipelined/synth/timing"
)

const (
	// DefaultSampleRate is used when no sample rate option is provided.
	DefaultSampleRate = 44100
	// DefaultBlockSize is used when no block size option is provided.
	DefaultBlockSize = 512
)

// Logger is a global interface for engine loggers. It's satisfied by
// *logrus.Logger and *logrus.Entry.
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
	Error(...interface{})
}

// Engine is the context object of the graph. It holds the sample rate, the
// block size of hardware transfers, the retention of channel buffers, the
// logger and the timing manager. Exactly one engine exists per graph and it
// is passed to every node constructor.
type Engine struct {
	uid        string
	sampleRate int
	blockSize  int
	retention  int
	clock      func() time.Time
	log        Logger
	timing     *timing.Manager

	state   atomic.Int32
	pending atomic.Pointer[chan error]
	wake    chan struct{}
	abort   atomic.Pointer[error]
}

// Option provides a way to set functional parameters to engine.
type Option func(e *Engine) error

var (
	// ErrInvalidState is returned if engine method cannot be executed at
	// this moment.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidConfig is returned if engine options are not valid.
	ErrInvalidConfig = errors.New("invalid config")
)

// New creates a new engine and applies provided options. Returned engine is
// in ready state.
func New(options ...Option) (*Engine, error) {
	e := &Engine{
		uid:        NewUID(),
		sampleRate: DefaultSampleRate,
		blockSize:  DefaultBlockSize,
		clock:      time.Now,
		log:        defaultLogger,
		wake:       make(chan struct{}, 1),
	}
	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}
	if e.retention == 0 {
		e.retention = e.blockSize
	}
	e.timing = timing.NewManager(e.sampleRate, e.blockSize, timing.WithClock(e.clock))
	return e, nil
}

// WithSampleRate sets sample rate of the engine.
func WithSampleRate(sampleRate int) Option {
	return func(e *Engine) error {
		if sampleRate <= 0 {
			return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, sampleRate)
		}
		e.sampleRate = sampleRate
		return nil
	}
}

// WithBlockSize sets the number of frames handed to hardware at once. It's
// also the lookahead used when wall clock time is projected to sample time.
func WithBlockSize(blockSize int) Option {
	return func(e *Engine) error {
		if blockSize <= 0 {
			return fmt.Errorf("%w: block size %d", ErrInvalidConfig, blockSize)
		}
		e.blockSize = blockSize
		return nil
	}
}

// WithRetention sets how many time steps every channel retains. If this
// option is not provided, block size is used.
func WithRetention(retention int) Option {
	return func(e *Engine) error {
		if retention <= 0 {
			return fmt.Errorf("%w: retention %d", ErrInvalidConfig, retention)
		}
		e.retention = retention
		return nil
	}
}

// WithLogger sets logger to engine. If this option is not provided, silent
// logger is used.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.log = logger
		return nil
	}
}

// WithClock replaces the wall clock of the engine. It is meant for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) error {
		e.clock = clock
		return nil
	}
}

// NewUID returns new unique id value.
func NewUID() string {
	return xid.New().String()
}

// ID returns the unique id of the engine.
func (e *Engine) ID() string {
	return e.uid
}

// SampleRate returns the sample rate.
func (e *Engine) SampleRate() int {
	return e.sampleRate
}

// BlockSize returns the hardware block size.
func (e *Engine) BlockSize() int {
	return e.blockSize
}

// Retention returns the channel buffer capacity.
func (e *Engine) Retention() int {
	return e.retention
}

// Logger returns the logger of the engine.
func (e *Engine) Logger() Logger {
	return e.log
}

// Now returns the wall clock time of the engine.
func (e *Engine) Now() time.Time {
	return e.clock()
}

// Timing returns the timing manager.
func (e *Engine) Timing() *timing.Manager {
	return e.timing
}

// Rhythm returns the musical time of the engine.
func (e *Engine) Rhythm() *timing.Rhythm {
	return e.timing.Rhythm()
}

// Abort stops the engine because of a fatal error, like a failed hardware
// transfer. It's safe to call from the realtime path: the loop stops at the
// next step boundary and returns the first recorded error.
func (e *Engine) Abort(err error) {
	if err == nil {
		return
	}
	if e.abort.CompareAndSwap(nil, &err) {
		e.log.Error(fmt.Sprintf("engine %v aborted: %v", e, err))
	}
}

// Err returns the error the engine was aborted with.
func (e *Engine) Err() error {
	if err := e.abort.Load(); err != nil {
		return *err
	}
	return nil
}

// String returns the id of the engine.
func (e *Engine) String() string {
	return e.uid
}

type silentLogger struct{}

func (silentLogger) Debug(args ...interface{}) {}

func (silentLogger) Info(args ...interface{}) {}

func (silentLogger) Warn(args ...interface{}) {}

func (silentLogger) Error(args ...interface{}) {}

var defaultLogger silentLogger
