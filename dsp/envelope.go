package dsp

import (
	"time"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/signal"
)

type stage int

const (
	silent stage = iota
	attack
	decay
	sustain
	release
)

// Envelope applies an ADSR amplitude envelope to its input. It's silent
// until triggered with NoteDown.
type Envelope struct {
	*graph.Filter[float64, float64]
	sampleRate int
	attack     uint64
	decay      uint64
	sustain    float64
	release    uint64

	stage    stage
	level    float64
	delta    float64
	elapsed  uint64
	duration uint64
	gain     float64
}

// NewEnvelope returns an envelope with provided stage durations and sustain
// level in range [0, 1].
func NewEnvelope(e *synth.Engine, a, d time.Duration, s float64, r time.Duration) *Envelope {
	env := &Envelope{
		sampleRate: e.SampleRate(),
		sustain:    s,
		gain:       1,
	}
	env.attack = env.samples(a)
	env.decay = env.samples(d)
	env.release = env.samples(r)
	env.Filter = graph.NewFilter(e, 1, 1, env.filter)
	return env
}

func (env *Envelope) samples(d time.Duration) uint64 {
	n := signal.SamplesOf(env.sampleRate, d)
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func (env *Envelope) filter(t uint64, in, out []float64) {
	out[0] = in[0] * env.level * env.gain
	env.advance()
}

// enter starts a stage. Stages of zero length are passed through at once.
func (env *Envelope) enter(s stage) {
	env.stage = s
	env.elapsed = 0
	switch s {
	case attack:
		env.duration = env.attack
		if env.duration == 0 {
			env.level = 1
			env.enter(decay)
			return
		}
		env.delta = (1 - env.level) / float64(env.duration)
	case decay:
		env.level = 1
		env.duration = env.decay
		if env.duration == 0 {
			env.enter(sustain)
			return
		}
		env.delta = (env.sustain - 1) / float64(env.duration)
	case sustain:
		env.level = env.sustain
		env.delta = 0
	case release:
		env.duration = env.release
		if env.duration == 0 {
			env.enter(silent)
			return
		}
		env.delta = -env.level / float64(env.duration)
	case silent:
		env.level = 0
		env.delta = 0
	}
}

func (env *Envelope) advance() {
	switch env.stage {
	case attack, decay, release:
		env.level += env.delta
		env.elapsed++
		if env.elapsed < env.duration {
			return
		}
		switch env.stage {
		case attack:
			env.enter(decay)
		case decay:
			env.enter(sustain)
		case release:
			env.enter(silent)
		}
	}
}

// NoteDown starts the attack at time step at with provided linear gain.
// Attack starts from the current level, so retriggering doesn't click.
func (env *Envelope) NoteDown(at uint64, gain float64) {
	env.Schedule(at, func(uint64) {
		env.gain = gain
		env.enter(attack)
	})
}

// NoteUp starts the release at time step at.
func (env *Envelope) NoteUp(at uint64) {
	env.Schedule(at, func(uint64) {
		if env.stage != silent {
			env.enter(release)
		}
	})
}

// Active returns true until the release is over. It must be called from the
// realtime goroutine.
func (env *Envelope) Active() bool {
	return env.stage != silent
}

// Level returns the current envelope level.
func (env *Envelope) Level() float64 {
	return env.level
}

// SetAttack changes the attack time as soon as possible.
func (env *Envelope) SetAttack(d time.Duration) {
	env.Schedule(0, func(uint64) { env.attack = env.samples(d) })
}

// SetDecay changes the decay time as soon as possible.
func (env *Envelope) SetDecay(d time.Duration) {
	env.Schedule(0, func(uint64) { env.decay = env.samples(d) })
}

// SetSustain changes the sustain level as soon as possible.
func (env *Envelope) SetSustain(level float64) {
	env.Schedule(0, func(uint64) {
		env.sustain = level
		if env.stage == sustain {
			env.level = level
		}
	})
}

// SetRelease changes the release time as soon as possible.
func (env *Envelope) SetRelease(d time.Duration) {
	env.Schedule(0, func(uint64) { env.release = env.samples(d) })
}
