package poly_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/mock"
	"github.com/pipelined/synth/poly"
)

func newInstrument(t *testing.T, numVoices int, options ...synth.Option) (*synth.Engine, *poly.Instrument, []*mock.Handler) {
	t.Helper()
	e, err := synth.New(options...)
	require.NoError(t, err)
	var handlers []*mock.Handler
	i, err := poly.NewInstrument(e, numVoices, mock.Factory(e, &handlers))
	require.NoError(t, err)
	require.Equal(t, numVoices, len(handlers))
	return e, i, handlers
}

func TestNoVoices(t *testing.T) {
	e, err := synth.New()
	require.NoError(t, err)
	_, err = poly.NewInstrument(e, 0, nil)
	assert.ErrorIs(t, err, poly.ErrNoVoices)
}

func TestAllocation(t *testing.T) {
	_, i, _ := newInstrument(t, 2)
	i.NoteDown(0, 60, 1)
	i.NoteDown(1, 62, 1)
	v60, v62 := i.VoiceFor(60), i.VoiceFor(62)
	require.NotNil(t, v60)
	require.NotNil(t, v62)
	assert.NotSame(t, v60, v62)

	// pool is exhausted: the oldest voice is stolen.
	i.NoteDown(2, 64, 1)
	assert.Same(t, v60, i.VoiceFor(64))
	assert.Nil(t, i.VoiceFor(60))
	assert.Equal(t, uint8(64), v60.Note())
	assert.Equal(t, poly.Held, v60.State())

	// 60 is not mapped anymore.
	i.NoteUp(3, 60)
	assert.Equal(t, poly.Held, v60.State())
	assert.Equal(t, poly.Held, v62.State())

	// next steal takes 62, it's now the oldest.
	i.NoteDown(4, 65, 1)
	assert.Same(t, v62, i.VoiceFor(65))
}

func TestFreeVoiceOrder(t *testing.T) {
	_, i, _ := newInstrument(t, 3)
	i.NoteDown(0, 60, 1)
	i.NoteDown(0, 62, 1)
	i.NoteDown(0, 64, 1)
	v60, v62 := i.VoiceFor(60), i.VoiceFor(62)
	i.NoteUp(1, 62)
	i.NoteUp(1, 60)
	assert.Equal(t, poly.Idle, v60.State())

	// least recently freed voice goes first.
	i.NoteDown(2, 67, 1)
	assert.Same(t, v62, i.VoiceFor(67))
	i.NoteDown(2, 69, 1)
	assert.Same(t, v60, i.VoiceFor(69))
}

func TestLegato(t *testing.T) {
	_, i, handlers := newInstrument(t, 2)
	i.NoteDown(0, 60, 1)
	i.NoteDown(1, 62, 1)
	v := i.VoiceFor(60)
	i.NoteDown(2, 60, 0.5)
	assert.Same(t, v, i.VoiceFor(60), "same note retriggers its voice")
	assert.NotNil(t, i.VoiceFor(62), "no steal on retrigger")

	var downs int
	for _, h := range handlers {
		for _, c := range h.Calls {
			if c.Method == "NoteDown" {
				downs++
			}
		}
	}
	assert.Equal(t, 3, downs)

	// retrigger made 60 the most recent, so 62 is stolen.
	i.NoteDown(3, 64, 1)
	assert.Nil(t, i.VoiceFor(62))
	assert.Same(t, v, i.VoiceFor(60))
}

func TestSustain(t *testing.T) {
	_, i, handlers := newInstrument(t, 2)
	i.NoteDown(0, 60, 1)
	v := i.VoiceFor(60)
	i.SustainDown(1)
	i.NoteUp(2, 60)
	assert.Equal(t, poly.Sustained, v.State())
	assert.Same(t, v, i.VoiceFor(60))

	i.SustainUp(3)
	assert.Equal(t, poly.Idle, v.State())
	assert.Nil(t, i.VoiceFor(60))
	h := handlers[v.Index()]
	assert.Equal(t, mock.Call{Method: "NoteUp", T: 3}, h.Last())

	// key still down when pedal is released.
	i.SustainDown(4)
	i.NoteDown(4, 62, 1)
	v = i.VoiceFor(62)
	i.SustainUp(5)
	assert.Equal(t, poly.Held, v.State())
	i.NoteUp(6, 62)
	assert.Equal(t, poly.Idle, v.State())
}

func TestReleasing(t *testing.T) {
	_, i, handlers := newInstrument(t, 1)
	handlers[0].Tail = true
	i.NoteDown(0, 60, 1)
	v := i.VoiceFor(60)
	i.NoteUp(1, 60)
	assert.Equal(t, poly.Releasing, v.State())
	handlers[0].EndTail()
	assert.Equal(t, poly.Idle, v.State())
}

func TestPitchWheel(t *testing.T) {
	_, i, handlers := newInstrument(t, 2)
	i.NoteDown(0, 69, 1)
	v := i.VoiceFor(69)
	idle := handlers[1-v.Index()]

	i.PitchWheel(1, 1)
	h := handlers[v.Index()]
	assert.Equal(t, "PitchWheel", h.Last().Method)
	assert.InDelta(t, 440*math.Pow(2, 2.0/12), h.Last().Freq, 1e-9)
	assert.Empty(t, idle.Calls, "idle voices are not bent")

	// clamped to the bend range.
	i.PitchWheel(2, -5)
	assert.InDelta(t, 440*math.Pow(2, -2.0/12), h.Last().Freq, 1e-9)

	// new notes start bent.
	i.NoteDown(3, 81, 1)
	assert.InDelta(t, 880*math.Pow(2, -2.0/12), idle.Last().Freq, 1e-9)
	assert.Equal(t, 880.0, i.VoiceFor(81).Freq())
}

func TestEvents(t *testing.T) {
	e, i, handlers := newInstrument(t, 2)
	events := mock.NewEvents(e)
	require.NoError(t, i.Connect(events.Output(), 0))

	events.Put(1, event.NewNoteOn(0, 60, 127))
	events.Put(2, event.NewControlChange(0, event.SustainPedal, 127))
	events.Put(3, event.NewNoteOff(0, 60), event.NewControlChange(0, event.ModulationWheel, 127))
	events.Put(5, event.NewControlChange(0, event.SustainPedal, 0))
	events.Put(6, event.Event{Type: event.NoteDown, Payload: []byte{62, 0}})

	var states []poly.State
	for n := 0; n < 7; n++ {
		_, err := e.Step()
		require.NoError(t, err)
		states = append(states, i.Voices()[0].State())
	}
	assert.Equal(t, []poly.State{
		poly.Idle, poly.Held, poly.Sustained, poly.Sustained, poly.Sustained, poly.Idle, poly.Idle,
	}, states)

	h := handlers[0]
	assert.Equal(t, mock.Call{Method: "NoteDown", T: 1, Freq: event.NoteToFreq(60), Value: 1}, h.Calls[0])
	assert.Equal(t, mock.Call{Method: "ModulationWheel", T: 3, Value: 1}, h.Calls[1])
	assert.Equal(t, mock.Call{Method: "NoteUp", T: 5}, h.Calls[2])
}

func TestPlayScheduled(t *testing.T) {
	wall := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e, i, handlers := newInstrument(t, 1,
		synth.WithBlockSize(4),
		synth.WithSampleRate(1000),
		synth.WithClock(func() time.Time { return wall }),
	)
	i.Play(60, 0.5, 3)
	i.Release(60, 5)
	for n := 0; n < 4; n++ {
		e.Step()
	}
	assert.Equal(t, mock.Call{Method: "NoteDown", T: 3, Freq: event.NoteToFreq(60), Value: 0.5}, handlers[0].Last())

	// as soon as possible before synchronization is the current step.
	i.Sustain(true, 0)
	i.Bend(0, 0)
	e.Step()
	assert.Equal(t, "PitchWheel", handlers[0].Last().Method)
	assert.Equal(t, uint64(4), handlers[0].Last().T)
	e.Step()
	assert.Equal(t, poly.Sustained, i.Voices()[0].State())

	// after synchronization it's one block ahead.
	e.Timing().Synchronize(e.Timing().Now())
	i.Sustain(false, 0)
	for n := 0; n < 4; n++ {
		e.Step()
	}
	assert.Equal(t, poly.Sustained, i.Voices()[0].State())
	e.Step()
	assert.Equal(t, poly.Idle, i.Voices()[0].State())
	assert.Equal(t, mock.Call{Method: "NoteUp", T: 10}, handlers[0].Last())
}
