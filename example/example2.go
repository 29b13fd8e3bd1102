package example

import (
	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/midi"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/wav"
)

// Example 2:
//
//	Write a melody into MIDI file
//	Render the file with subtractive instrument
//	Save result into .wav file
func two(midiPath, wavPath string) {
	e, err := synth.New(synth.WithSampleRate(22050))
	check(err)

	beat := e.Rhythm().SamplesPerBeat()
	var seq midi.Sequence
	for i, note := range []uint8{60, 62, 64, 65, 67} {
		at := uint64(i) * beat
		seq.Events = append(seq.Events,
			midi.Timed{At: at, Event: event.NewNoteOn(0, note, 100)},
			midi.Timed{At: at + beat/2, Event: event.NewNoteOff(0, note)},
		)
	}
	seq.Tempo = float64(e.Rhythm().Tempo())
	check(midi.Write(midiPath, seq, e.SampleRate()))

	seq, err = midi.Load(midiPath, e.SampleRate())
	check(err)
	player := midi.NewPlayer(e, seq, false)
	player.Start(0)
	sub, err := instrument.NewSubtractive(e, instrument.DefaultSettings())
	check(err)
	check(sub.Connect(player.Output(), 0))

	rec, err := wav.NewRecorder(e, wavPath, 1, signal.BitDepth16)
	check(err)
	check(rec.Connect(sub.Output(), 0))
	e.Timing().AddAudioConsumer(rec)
	for i := uint64(0); i <= seq.Length+beat; i++ {
		_, err := e.Step()
		check(err)
	}
	check(rec.Close())
}
