package instrument_test

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/mock"
	"github.com/pipelined/synth/poly"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/timing"
	"github.com/pipelined/synth/wav"
)

func steps(t *testing.T, e *synth.Engine, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ok, err := e.Step()
		require.True(t, ok)
		require.NoError(t, err)
	}
}

func TestSubtractive(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(1000), synth.WithBlockSize(16))
	require.NoError(t, err)
	s := instrument.DefaultSettings()
	s.Voices = 2
	s.Modes = [2]dsp.Mode{dsp.Square{}, dsp.Square{}}
	s.Detune = 0
	s.Attack, s.Decay, s.Sustain, s.Release = 0, 0, 1, 10*time.Millisecond
	s.Gain = 0
	sub, err := instrument.NewSubtractive(e, s)
	require.NoError(t, err)
	sink := mock.NewSink(e, 1)
	require.NoError(t, sink.Connect(sub.Output(), 0))
	e.Timing().AddAudioConsumer(sink)

	sub.Play(69, 1, 1)
	steps(t, e, 5)
	assert.Equal(t, 0.0, sink.Frames[0][0], "silent before note")
	for i := 1; i < 5; i++ {
		assert.InDelta(t, 2, math.Abs(sink.Frames[i][0]), 1e-9, "step %d", i)
	}
	v := sub.VoiceFor(69)
	require.NotNil(t, v)
	assert.Equal(t, poly.Held, v.State())
	assert.Equal(t, 440.0, v.Freq())

	sub.Release(69, 5)
	steps(t, e, 5)
	assert.Equal(t, poly.Releasing, v.State(), "release tail")
	steps(t, e, 10)
	assert.Equal(t, poly.Idle, v.State())
	assert.Equal(t, 0.0, sink.Frames[len(sink.Frames)-1][0])
}

func TestSubtractiveVoices(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(1000))
	require.NoError(t, err)
	s := instrument.DefaultSettings()
	sub, err := instrument.NewSubtractive(e, s)
	require.NoError(t, err)
	assert.Len(t, sub.Voices(), s.Voices)

	s.Voices = 0
	_, err = instrument.NewSubtractive(e, s)
	assert.ErrorIs(t, err, poly.ErrNoVoices)
}

// renderFM plays A4 at step 1 and returns n frames. The intensity is set
// to then at step switchAt.
func renderFM(t *testing.T, intensity, then float64, switchAt, n int) []float64 {
	t.Helper()
	e, err := synth.New(synth.WithSampleRate(1000), synth.WithBlockSize(16))
	require.NoError(t, err)
	s := instrument.DefaultFMSettings()
	s.Voices = 2
	s.Carrier, s.Modulator = dsp.Square{}, dsp.Square{}
	s.ModulatorTranspose = 0
	s.Intensity = intensity
	s.Attack, s.Decay, s.Sustain, s.Release = 0, 0, 1, 10*time.Millisecond
	s.Gain = 0
	fm, err := instrument.NewFM(e, s)
	require.NoError(t, err)
	sink := mock.NewSink(e, 1)
	require.NoError(t, sink.Connect(fm.Output(), 0))
	e.Timing().AddAudioConsumer(sink)

	fm.Play(69, 1, 1)
	steps(t, e, switchAt)
	fm.SetIntensity(then)
	steps(t, e, n-switchAt)
	out := make([]float64, n)
	for i := range out {
		out[i] = sink.Frames[i][0]
	}
	return out
}

func TestFM(t *testing.T) {
	plain := renderFM(t, 0, 0, 5, 10)
	// half a cycle of deviation driven by an identical square flips the
	// carrier.
	modulated := renderFM(t, 0.5, 0, 5, 10)
	assert.Equal(t, 0.0, plain[0])
	for i := 1; i < 10; i++ {
		assert.InDelta(t, 1, math.Abs(plain[i]), 1e-9, "step %d", i)
		if i < 5 {
			assert.InDelta(t, -plain[i], modulated[i], 1e-9, "modulated step %d", i)
		} else {
			assert.InDelta(t, plain[i], modulated[i], 1e-9, "unmodulated step %d", i)
		}
	}
}

func TestFMVoices(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(1000))
	require.NoError(t, err)
	s := instrument.DefaultFMSettings()
	fm, err := instrument.NewFM(e, s)
	require.NoError(t, err)
	assert.Len(t, fm.Voices(), s.Voices)

	fm.Play(60, 0.25, 1)
	steps(t, e, 3)
	v := fm.VoiceFor(60)
	require.NotNil(t, v)
	assert.Equal(t, poly.Held, v.State())

	s.Voices = 0
	_, err = instrument.NewFM(e, s)
	assert.ErrorIs(t, err, poly.ErrNoVoices)
}

func TestMetronome(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(100))
	require.NoError(t, err)
	clicks := instrument.Clicks{
		timing.Downbeat:   wav.Data{Float64: signal.Float64{{1}}, SampleRate: 100},
		timing.Accented:   wav.Data{Float64: signal.Float64{{0.5}}, SampleRate: 100},
		timing.Unaccented: wav.Data{Float64: signal.Float64{{0.25}}, SampleRate: 100},
	}
	m, err := instrument.NewMetronome(e, clicks)
	require.NoError(t, err)
	sink := mock.NewSink(e, 1)
	require.NoError(t, sink.Connect(m.Output(), 0))
	e.Timing().AddAudioConsumer(sink)

	require.Equal(t, uint64(50), e.Rhythm().SamplesPerBeat())
	steps(t, e, 200)
	clicked := map[int]float64{}
	for i, f := range sink.Frames {
		if f[0] != 0 {
			clicked[i] = f[0]
		}
	}
	assert.Equal(t, map[int]float64{0: 1, 50: 0.25, 100: 0.25, 150: 0.25}, clicked)

	meter, err := timing.ParseMeter("6/8")
	require.NoError(t, err)
	require.NoError(t, e.Rhythm().SetMeter(meter))
	steps(t, e, 200)
	clicked = map[int]float64{}
	for i, f := range sink.Frames[200:] {
		if f[0] != 0 {
			clicked[i] = f[0]
		}
	}
	assert.Equal(t, map[int]float64{0: 1, 50: 0.25, 100: 0.25, 150: 0.5}, clicked)

	m.SetEnabled(false)
	steps(t, e, 100)
	for _, f := range sink.Frames[400:] {
		assert.Equal(t, 0.0, f[0])
	}
}

func TestDefaultClicks(t *testing.T) {
	clicks := instrument.DefaultClicks(44100)
	assert.Len(t, clicks, 3)
	for _, d := range clicks {
		assert.Equal(t, 1, d.NumChannels())
		assert.Equal(t, 882, d.Size())
	}
}

func TestSoundFontErrors(t *testing.T) {
	e, err := synth.New()
	require.NoError(t, err)
	_, err = instrument.LoadSoundFont(e, filepath.Join(t.TempDir(), "missing.sf2"))
	assert.Error(t, err)
	_, err = instrument.NewSoundFont(e, bytes.NewReader([]byte("not a soundfont")))
	assert.Error(t, err)

	_, err = instrument.LoadClicks("a.wav", "b.wav", "c.wav")
	assert.Error(t, err)

	_, err = instrument.NewMetronome(e, instrument.Clicks{timing.Downbeat: {SampleRate: 44100}})
	assert.ErrorIs(t, err, wav.ErrInvalidFile, "click without channels")
}
