package instrument_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/mock"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/wav"
)

func TestParseKeymap(t *testing.T) {
	keymap := `# kit
36 kick.wav

0x26	snares/snare 2.wav
  # indented comment
42 /samples/hat.wav
`
	km, err := instrument.ParseKeymap(strings.NewReader(keymap), "kit")
	require.NoError(t, err)
	assert.Equal(t, instrument.Keymap{
		36: filepath.Join("kit", "kick.wav"),
		38: filepath.Join("kit", "snares", "snare 2.wav"),
		42: "/samples/hat.wav",
	}, km)

	for _, line := range []string{"36", "36 ", "x kick.wav", "128 kick.wav", "-1 kick.wav"} {
		_, err := instrument.ParseKeymap(strings.NewReader(line), "")
		assert.ErrorIs(t, err, instrument.ErrInvalidKeymap, "%q", line)
	}
}

func TestLoadKit(t *testing.T) {
	dir := t.TempDir()
	_, err := instrument.LoadKit(dir)
	assert.ErrorIs(t, err, instrument.ErrInvalidKeymap, "missing keymap")

	e, err := synth.New()
	require.NoError(t, err)
	_, err = instrument.NewDrums(e, dir)
	assert.ErrorIs(t, err, instrument.ErrInvalidKeymap)

	require.NoError(t, os.WriteFile(filepath.Join(dir, instrument.KeymapFile), []byte("36 kick.wav\n"), 0o644))
	_, err = instrument.LoadKit(dir)
	assert.Error(t, err, "missing sample")
	assert.NotErrorIs(t, err, instrument.ErrInvalidKeymap)

	_, err = instrument.NewDrumsFrom(e, instrument.Kit{})
	assert.ErrorIs(t, err, instrument.ErrInvalidKeymap)
}

func TestDrums(t *testing.T) {
	e, err := synth.New(synth.WithSampleRate(100))
	require.NoError(t, err)
	d, err := instrument.NewDrumsFrom(e, instrument.Kit{
		36: wav.Data{Float64: signal.Float64{{1, 0.5}}, SampleRate: 100},
		38: wav.Data{Float64: signal.Float64{{0.25}, {0.25}}, SampleRate: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint8{36, 38}, d.Notes())
	d.SetGain(0)

	events := mock.NewEvents(e)
	require.NoError(t, d.Connect(events.Output(), 0))
	sink := mock.NewSink(e, 1)
	require.NoError(t, sink.Connect(d.Output(), 0))
	e.Timing().AddAudioConsumer(sink)

	events.Put(1, event.NewNoteOn(0, 36, 100))
	events.Put(2, event.NewNoteOn(9, 38, 100))
	events.Put(3, event.NewNoteOn(0, 36, 100), event.NewNoteOn(0, 40, 100))
	events.Put(4, event.NewNoteOff(0, 36))
	steps(t, e, 6)

	expected := []float64{0, 1, 0.75, 1, 0.5, 0}
	for i, v := range expected {
		assert.InDelta(t, v, sink.Frames[i][0], 1e-9, "step %d", i)
	}
}
