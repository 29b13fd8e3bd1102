package midi_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/midi"
	"github.com/pipelined/synth/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func steps(t *testing.T, e *synth.Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}
}

func TestListener(t *testing.T) {
	logger, hook := test.NewNullLogger()
	start := time.Unix(0, 0)
	now := start
	e, err := synth.New(
		synth.WithSampleRate(1000),
		synth.WithBlockSize(4),
		synth.WithLogger(logger),
		synth.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	l := midi.NewListener(e)
	sink := mock.NewEventSink(e)
	require.NoError(t, sink.Connect(l.Output(), 0))

	noteOn := event.NewNoteOn(0, 60, 100)
	l.Receive(noteOn.Bytes())
	l.Receive([]byte{0x90, 0x80})
	require.Equal(t, 1, len(hook.AllEntries()))
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	steps(t, e, 2)
	e.Timing().Synchronize(1)
	now = start.Add(10 * time.Millisecond)
	l.Receive(event.NewNoteOff(0, 60).Bytes())
	steps(t, e, 20)

	assert.Equal(t, map[uint64]event.Batch{
		0:  {noteOn},
		15: {event.NewNoteOff(0, 60)},
	}, sink.Batches)
}

func TestListenerLate(t *testing.T) {
	start := time.Unix(0, 0)
	now := start
	e, err := synth.New(
		synth.WithSampleRate(1000),
		synth.WithBlockSize(4),
		synth.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)
	l := midi.NewListener(e)
	sink := mock.NewEventSink(e)
	require.NoError(t, sink.Connect(l.Output(), 0))

	e.Timing().Synchronize(0)
	steps(t, e, 3)
	// projected to a step that is already produced.
	now = start.Add(-10 * time.Millisecond)
	l.Receive(event.NewNoteOn(1, 62, 1).Bytes())
	steps(t, e, 2)
	assert.Equal(t, map[uint64]event.Batch{3: {event.NewNoteOn(1, 62, 1)}}, sink.Batches)
}

func TestTranspose(t *testing.T) {
	e, err := synth.New()
	require.NoError(t, err)
	src := mock.NewEvents(e)
	tr := midi.NewTranspose(e, 12)
	require.NoError(t, tr.Connect(src.Output(), 0))
	sink := mock.NewEventSink(e)
	require.NoError(t, sink.Connect(tr.Output(), 0))

	cc := event.NewControlChange(0, 7, 100)
	src.Put(0, event.NewNoteOn(0, 60, 100), cc)
	src.Put(1, event.NewNoteOn(0, 120, 100))
	src.Put(2, event.NewNoteOff(0, 3))
	tr.SetShift(-5)
	steps(t, e, 3)

	assert.Equal(t, map[uint64]event.Batch{
		0: {event.NewNoteOn(0, 55, 100), cc},
		1: {event.NewNoteOn(0, 115, 100)},
		2: {event.NewNoteOff(0, 0)},
	}, sink.Batches)

	src.Put(3, event.NewNoteOn(0, 120, 100))
	tr.SetShift(12)
	steps(t, e, 1)
	assert.Equal(t, event.Batch{event.NewNoteOn(0, 127, 100)}, sink.Batches[3], "clamped")
}

func TestTransposeShiftWhileHeld(t *testing.T) {
	e, err := synth.New()
	require.NoError(t, err)
	src := mock.NewEvents(e)
	tr := midi.NewTranspose(e, 2)
	require.NoError(t, tr.Connect(src.Output(), 0))
	sink := mock.NewEventSink(e)
	require.NoError(t, sink.Connect(tr.Output(), 0))

	src.Put(0, event.NewNoteOn(0, 60, 100), event.NewNoteOn(1, 60, 100))
	steps(t, e, 1)
	tr.SetShift(-3)
	src.Put(1, event.NewNoteOff(0, 60))
	src.Put(2, event.NewNoteOn(1, 60, 0))
	src.Put(3, event.NewNoteOn(0, 60, 100))
	src.Put(4, event.NewNoteOff(0, 60))
	src.Put(5, event.NewNoteOff(0, 60))
	steps(t, e, 5)

	assert.Equal(t, map[uint64]event.Batch{
		0: {event.NewNoteOn(0, 62, 100), event.NewNoteOn(1, 62, 100)},
		1: {event.NewNoteOff(0, 62)},
		2: {event.NewNoteOn(1, 62, 0)},
		3: {event.NewNoteOn(0, 57, 100)},
		4: {event.NewNoteOff(0, 57)},
		5: {event.NewNoteOff(0, 57)},
	}, sink.Batches, "note off follows its note on")
}

func TestTransposeKeepsInput(t *testing.T) {
	e, err := synth.New()
	require.NoError(t, err)
	src := mock.NewEvents(e)
	tr := midi.NewTranspose(e, 1)
	require.NoError(t, tr.Connect(src.Output(), 0))
	src.Put(0, event.NewNoteOn(0, 60, 100))
	assert.Equal(t, uint8(61), tr.Output().Read(0)[0].Payload[0])
	assert.Equal(t, uint8(60), src.Output().Read(0)[0].Payload[0])
}

func TestArpeggiator(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(100))
	require.NoError(t, err)
	require.Equal(t, uint64(50), e.Rhythm().SamplesPerBeat())
	src := mock.NewEvents(e)
	arp := midi.NewArpeggiator(e, 2, 1, midi.Up)
	require.NoError(t, arp.Connect(src.Output(), 0))
	sink := mock.NewEventSink(e)
	require.NoError(t, sink.Connect(arp.Output(), 0))

	cc := event.NewControlChange(2, 1, 10)
	src.Put(0, event.NewNoteOn(2, 64, 90), event.NewNoteOn(2, 60, 90))
	src.Put(10, cc)
	src.Put(60, event.NewNoteOff(2, 60), event.NewNoteOff(2, 64))
	steps(t, e, 100)

	assert.Equal(t, map[uint64]event.Batch{
		0:  {event.NewNoteOn(2, 60, 90)},
		10: {cc},
		25: {event.NewNoteOff(2, 60), event.NewNoteOn(2, 64, 90)},
		50: {event.NewNoteOff(2, 64), event.NewNoteOn(2, 60, 90)},
		60: {event.NewNoteOff(2, 60)},
	}, sink.Batches)
}

func sequence() midi.Sequence {
	return midi.Sequence{
		Events: []midi.Timed{
			{At: 0, Event: event.NewNoteOn(0, 60, 100)},
			{At: 3, Event: event.NewNoteOff(0, 60)},
		},
		Length: 3,
		Tempo:  120,
	}
}

func TestPlayer(t *testing.T) {
	e, err := synth.New()
	require.NoError(t, err)
	once := midi.NewPlayer(e, sequence(), false)
	looped := midi.NewPlayer(e, sequence(), true)
	onceSink := mock.NewEventSink(e)
	loopSink := mock.NewEventSink(e)
	require.NoError(t, onceSink.Connect(once.Output(), 0))
	require.NoError(t, loopSink.Connect(looped.Output(), 0))
	once.Start(2)
	looped.Start(2)
	looped.Stop(12)
	steps(t, e, 20)

	on, off := event.NewNoteOn(0, 60, 100), event.NewNoteOff(0, 60)
	assert.Equal(t, map[uint64]event.Batch{2: {on}, 5: {off}}, onceSink.Batches)
	assert.Equal(t, map[uint64]event.Batch{2: {on}, 5: {off}, 6: {on}, 9: {off}, 10: {on}}, loopSink.Batches)
}

func TestRecorderAndLoad(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(1000))
	require.NoError(t, err)
	src := mock.NewEvents(e)
	r := midi.NewRecorder(e)
	require.NoError(t, r.Connect(src.Output(), 0))

	on, off := event.NewNoteOn(1, 64, 80), event.NewNoteOff(1, 64)
	src.Put(100, on)
	src.Put(350, off)
	steps(t, e, 400)

	s := r.Sequence()
	assert.Equal(t, []midi.Timed{{At: 0, Event: on}, {At: 250, Event: off}}, s.Events)
	assert.Equal(t, uint64(250), s.Length)

	path := filepath.Join(t.TempDir(), "session.mid")
	require.NoError(t, r.Save(path, 90))

	loaded, err := midi.Load(path, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 90, loaded.Tempo, 0.01)
	require.Len(t, loaded.Events, 2)
	assert.Equal(t, on, loaded.Events[0].Event)
	assert.Equal(t, off, loaded.Events[1].Event)
	assert.InDelta(t, 250, float64(loaded.Events[1].At), 1)
}

func TestLoadErrors(t *testing.T) {
	_, err := midi.Load(filepath.Join(t.TempDir(), "missing.mid"), 44100)
	assert.Error(t, err)
}
