package graph_test

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/metric"
)

func newEngine(t *testing.T, options ...synth.Option) *synth.Engine {
	t.Helper()
	e, err := synth.New(options...)
	require.NoError(t, err)
	return e
}

// counter returns a generator function that outputs the time step and
// counts the calls.
func counter(calls *int) graph.GenerateFunc[float64] {
	return func(t uint64, out []float64) {
		*calls++
		for i := range out {
			out[i] = float64(t) + float64(i)*1000
		}
	}
}

func TestMemoization(t *testing.T) {
	e := newEngine(t, synth.WithRetention(16))
	var calls int
	g := graph.NewGenerator(e, 1, counter(&calls))
	c := g.MustOutput(0)

	for i := uint64(0); i < 10; i++ {
		assert.Equal(t, float64(i), c.Read(i))
	}
	for i := uint64(0); i < 10; i++ {
		assert.Equal(t, float64(i), c.Read(i), "repeated read")
	}
	assert.Equal(t, 10, calls)
	assert.Equal(t, uint64(10), g.Cursor())
}

func TestLazyProduction(t *testing.T) {
	e := newEngine(t, synth.WithRetention(8))
	var calls int
	g := graph.NewGenerator(e, 2, counter(&calls))
	left, right := g.MustOutput(0), g.MustOutput(1)

	assert.Equal(t, float64(5), left.Read(5))
	assert.Equal(t, 6, calls)
	assert.Equal(t, uint64(6), left.High())
	assert.Equal(t, float64(1003), right.Read(3), "sibling output produced by the same pass")
	assert.Equal(t, 6, calls)
}

func TestStaleRead(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := newEngine(t, synth.WithRetention(4), synth.WithLogger(logger))
	var calls int
	g := graph.NewGenerator(e, 1, counter(&calls))
	c := g.MustOutput(0)

	assert.Equal(t, float64(10), c.Read(10))
	assert.Equal(t, uint64(7), c.Low())
	before := metric.Get(c)[metric.StaleReadCounter]

	assert.Equal(t, float64(0), c.Read(2))
	assert.Equal(t, float64(0), c.Read(6))
	require.Equal(t, 2, len(hook.AllEntries()), "one diagnostic per stale read")
	for _, entry := range hook.AllEntries() {
		assert.Equal(t, logrus.WarnLevel, entry.Level)
	}
	assert.NotEqual(t, before, metric.Get(c)[metric.StaleReadCounter])
	assert.Equal(t, 11, calls, "stale read must not produce")
}

func TestOutputs(t *testing.T) {
	e := newEngine(t)
	g := graph.NewGenerator(e, 2, func(uint64, []float64) {})
	assert.Equal(t, 2, g.NumOutputs())
	_, err := g.Output(2)
	assert.ErrorIs(t, err, graph.ErrChannelOutOfRange)
	_, err = g.Output(-1)
	assert.ErrorIs(t, err, graph.ErrChannelOutOfRange)
	assert.Panics(t, func() { g.MustOutput(5) })
	c, err := g.Output(1)
	assert.NoError(t, err)
	assert.NotEqual(t, g.MustOutput(0).ID(), c.ID())
}

func TestGeneratorSchedule(t *testing.T) {
	e := newEngine(t)
	value := 0.0
	g := graph.NewGenerator(e, 1, func(t uint64, out []float64) {
		out[0] = value
	})
	var fired []uint64
	g.Schedule(3, func(t uint64) {
		fired = append(fired, t)
		value = 1
	})
	c := g.MustOutput(0)
	// sparse read still runs every step.
	assert.Equal(t, 1.0, c.Read(5))
	for i, expected := range []float64{0, 0, 0, 1, 1, 1} {
		assert.Equal(t, expected, c.Read(uint64(i)), "step %d", i)
	}
	assert.Equal(t, []uint64{3}, fired)
}

func TestBlockGenerator(t *testing.T) {
	e := newEngine(t, synth.WithRetention(2))
	value := 1.0
	var passes [][2]uint64
	g := graph.NewBlockGenerator(e, 1, 4, func(t uint64, out [][]float64) {
		passes = append(passes, [2]uint64{t, uint64(len(out[0]))})
		for i := range out[0] {
			out[0][i] = value
		}
	})
	c := g.MustOutput(0)
	assert.Equal(t, 4, c.Cap(), "block generator retains a block")

	g.Schedule(6, func(uint64) { value = 2 })
	g.Schedule(6, func(uint64) { value = 3 })
	expected := []float64{1, 1, 1, 1, 1, 1, 3, 3, 3, 3, 3, 3}
	for i := range expected {
		assert.Equal(t, expected[i], c.Read(uint64(i)), "step %d", i)
	}
	assert.Equal(t, [][2]uint64{{0, 4}, {4, 2}, {6, 2}, {8, 4}}, passes)
	assert.Equal(t, uint64(12), g.Cursor())
	assert.Equal(t, 4, g.BlockSize())
}

func TestConsumer(t *testing.T) {
	e := newEngine(t)
	var calls int
	g := graph.NewGenerator(e, 2, counter(&calls))
	var frames [][]float64
	c := graph.NewConsumer(e, 3, func(t uint64, in []float64) {
		frames = append(frames, append([]float64(nil), in...))
	})
	assert.Equal(t, 3, c.NumInputs())

	assert.ErrorIs(t, c.Connect(g.MustOutput(0), 3), graph.ErrChannelOutOfRange)
	require.NoError(t, c.Connect(g.MustOutput(0), 0))
	require.NoError(t, c.Connect(g.MustOutput(1), 2))

	i, err := c.Index(g.MustOutput(1))
	assert.NoError(t, err)
	assert.Equal(t, 2, i)

	c.Tick(0)
	require.NoError(t, c.Disconnect(2))
	_, err = c.Index(g.MustOutput(1))
	assert.ErrorIs(t, err, graph.ErrChannelNotFound)
	c.Tick(1)

	assert.Equal(t, [][]float64{{0, 0, 1000}, {1, 0, 0}}, frames, "unconnected inputs are silent")
}

func TestFilter(t *testing.T) {
	e := newEngine(t)
	var calls int
	g := graph.NewGenerator(e, 1, counter(&calls))
	var filterCalls int
	f := graph.NewFilter(e, 1, 1, func(t uint64, in, out []float64) {
		filterCalls++
		out[0] = in[0] * 2
	})
	require.NoError(t, f.Connect(g.MustOutput(0), 0))
	assert.Equal(t, 1, f.NumInputs())
	assert.Equal(t, 1, f.NumOutputs())

	var got []float64
	sink := graph.NewConsumer(e, 1, func(t uint64, in []float64) {
		got = append(got, in[0])
	})
	require.NoError(t, sink.Connect(f.MustOutput(0), 0))

	for i := uint64(0); i < 4; i++ {
		f.Tick(i)
		sink.Tick(i)
	}
	assert.Equal(t, []float64{0, 2, 4, 6}, got)
	assert.Equal(t, 4, filterCalls, "tick and read must not compute twice")
	assert.Equal(t, 4, calls)

	var fired uint64
	f.Schedule(5, func(t uint64) { fired = t })
	assert.Equal(t, float64(14), f.MustOutput(0).Read(7))
	assert.Equal(t, uint64(5), fired)
}
