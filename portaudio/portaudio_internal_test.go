package portaudio

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/metric"
	"github.com/pipelined/synth/mock"
)

// device records written blocks and serves read blocks.
type device struct {
	buf     *[]float32
	written [][]float32
	next    float32
	reads   int
	err     error
	started bool
	closed  bool
}

func (d *device) Start() error { d.started = true; return nil }
func (d *device) Stop() error  { d.started = false; return nil }
func (d *device) Close() error { d.closed = true; return nil }

func (d *device) Write() error {
	if d.err != nil {
		return d.err
	}
	d.written = append(d.written, append([]float32(nil), *d.buf...))
	return nil
}

func (d *device) Read() error {
	if d.err != nil {
		return d.err
	}
	d.reads++
	for i := range *d.buf {
		(*d.buf)[i] = d.next
		d.next++
	}
	return nil
}

func TestSpeaker(t *testing.T) {
	e, err := synth.New(synth.WithBlockSize(4))
	require.NoError(t, err)
	s := &Speaker{}
	s.buf = make([]float32, 8)
	dev := &device{buf: &s.buf}
	s, err = newSpeaker(e, s, 2, dev)
	require.NoError(t, err)
	assert.True(t, dev.started)

	src := mock.NewSource(e, 2, 0.5)
	require.NoError(t, s.Connect(src.MustOutput(0), 0))
	require.NoError(t, s.Connect(src.MustOutput(1), 1))
	blocks := metric.Get(s)[metric.BlockCounter]

	for i := 0; i < 9; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}
	require.Len(t, dev.written, 2)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, dev.written[1])
	assert.NotEqual(t, blocks, metric.Get(s)[metric.BlockCounter])

	snapshot := e.Timing().LastSynchronization()
	assert.True(t, snapshot.Synced)
	assert.Equal(t, uint64(7), snapshot.SampleTime)

	require.NoError(t, s.Close())
	assert.True(t, dev.closed)
	assert.False(t, dev.started)
}

func TestSpeakerFailure(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e, err := synth.New(synth.WithBlockSize(2), synth.WithLogger(logger))
	require.NoError(t, err)
	errDevice := errors.New("device unplugged")
	s := &Speaker{}
	s.buf = make([]float32, 2)
	_, err = newSpeaker(e, s, 1, &device{buf: &s.buf, err: errDevice})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = e.Step()
		require.NoError(t, err)
	}
	_, err = e.Step()
	assert.ErrorIs(t, err, errDevice)
	assert.NotNil(t, hook.LastEntry())
}

func TestMicrophone(t *testing.T) {
	e, err := synth.New(synth.WithBlockSize(2))
	require.NoError(t, err)
	m := &Microphone{}
	m.buf = make([]float32, 4)
	dev := &device{buf: &m.buf}
	m, err = newMicrophone(e, m, 2, dev)
	require.NoError(t, err)

	left, right := m.MustOutput(0), m.MustOutput(1)
	expected := [][2]float64{{0, 1}, {2, 3}, {4, 5}, {6, 7}}
	for i, v := range expected {
		assert.Equal(t, v[0], left.Read(uint64(i)))
		assert.Equal(t, v[1], right.Read(uint64(i)))
	}
	require.NoError(t, m.Close())
}

func TestMicrophoneSplitPass(t *testing.T) {
	e, err := synth.New(synth.WithBlockSize(4))
	require.NoError(t, err)
	m := &Microphone{}
	m.buf = make([]float32, 4)
	dev := &device{buf: &m.buf}
	m, err = newMicrophone(e, m, 1, dev)
	require.NoError(t, err)

	var fired []uint64
	m.Schedule(1, func(t uint64) { fired = append(fired, t) })
	m.Schedule(6, func(t uint64) { fired = append(fired, t) })
	out := m.MustOutput(0)
	for i := 0; i < 8; i++ {
		assert.Equal(t, float64(i), out.Read(uint64(i)), "step %d", i)
	}
	assert.Equal(t, []uint64{1, 6}, fired)
	assert.Equal(t, 2, dev.reads, "split passes share a device read")
	require.NoError(t, m.Close())
}
