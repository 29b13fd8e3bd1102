package example

import (
	"math"
	"os"
	"path/filepath"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/wav"
)

// Example 4:
//
//	Write a drum kit with keymap into directory
//	Play two measures of drums and FM bass
//	Save result into .wav file
func four(kitDir, wavPath string) {
	const sampleRate = 22050
	check(drum(filepath.Join(kitDir, "kick.wav"), sampleRate, 60))
	check(drum(filepath.Join(kitDir, "snare.wav"), sampleRate, 190))
	keymap := "# two piece kit\n36 kick.wav\n38 snare.wav\n"
	check(os.WriteFile(filepath.Join(kitDir, instrument.KeymapFile), []byte(keymap), 0o644))

	e, err := synth.New(synth.WithSampleRate(sampleRate))
	check(err)
	drums, err := instrument.NewDrums(e, kitDir)
	check(err)
	bass, err := instrument.NewFM(e, instrument.DefaultFMSettings())
	check(err)

	mix := dsp.NewAdder(e, 2)
	check(mix.Connect(drums.Output(), 0))
	check(mix.Connect(bass.Output(), 1))
	rec, err := wav.NewRecorder(e, wavPath, 1, signal.BitDepth16)
	check(err)
	check(rec.Connect(mix.MustOutput(0), 0))
	e.Timing().AddAudioConsumer(rec)

	beat := e.Rhythm().SamplesPerBeat()
	for i, note := range []uint8{36, 36, 43, 43, 41, 41, 38, 38} {
		at := uint64(i) * beat
		drums.Hit(36, at)
		if i%2 == 1 {
			drums.Hit(38, at)
		}
		bass.Play(note, 0.8, at)
		bass.Release(note, at+beat/2)
	}
	for i := uint64(0); i < 8*beat; i++ {
		_, err := e.Step()
		check(err)
	}
	check(rec.Close())
}

// drum writes a tenth of a second of a decaying sine.
func drum(path string, sampleRate int, freq float64) error {
	e, err := synth.New(synth.WithSampleRate(sampleRate))
	if err != nil {
		return err
	}
	n := sampleRate / 10
	g := graph.NewGenerator(e, 1, func(t uint64, out []float64) {
		decay := 1 - float64(t)/float64(n)
		out[0] = decay * decay * math.Sin(2*math.Pi*freq*float64(t)/float64(sampleRate))
	})
	rec, err := wav.NewRecorder(e, path, 1, signal.BitDepth16)
	if err != nil {
		return err
	}
	if err := rec.Connect(g.MustOutput(0), 0); err != nil {
		return err
	}
	e.Timing().AddAudioConsumer(rec)
	for i := 0; i < n; i++ {
		if _, err := e.Step(); err != nil {
			return err
		}
	}
	return rec.Close()
}
