package example

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/synth/wav"
)

// PortaudioEnv enables examples that need an audio device.
const PortaudioEnv = "SYNTH_PORTAUDIO"

func TestOne(t *testing.T) {
	if ok, _ := strconv.ParseBool(os.Getenv(PortaudioEnv)); !ok {
		t.Skip("Skip example.TestOne")
	}
	one()
}

func TestTwo(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "melody.wav")
	two(filepath.Join(dir, "melody.mid"), out)
	d, err := wav.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 22050, d.SampleRate)
	assert.NotZero(t, d.Size())
}

func TestThree(t *testing.T) {
	out := filepath.Join(t.TempDir(), "arpeggio.wav")
	three(out)
	d, err := wav.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 2*4*11025, d.Size())
}

func TestFour(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "groove.wav")
	four(dir, out)
	d, err := wav.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 8*11025, d.Size())
	var peak float64
	for _, v := range d.Float64[0] {
		peak = math.Max(peak, math.Abs(v))
	}
	assert.Greater(t, peak, 0.0)
}
