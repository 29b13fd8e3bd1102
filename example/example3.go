package example

import (
	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/midi"
	"github.com/pipelined/synth/signal"
	"github.com/pipelined/synth/wav"
)

// Example 3:
//
//	Hold a chord into arpeggiator running eighth notes
//	Mix it with metronome clicks
//	Save two measures into .wav file
func three(wavPath string) {
	e, err := synth.New(synth.WithSampleRate(22050))
	check(err)

	l := midi.NewListener(e)
	arp := midi.NewArpeggiator(e, 2, 1, midi.UpDown)
	check(arp.Connect(l.Output(), 0))
	sub, err := instrument.NewSubtractive(e, instrument.DefaultSettings())
	check(err)
	check(sub.Connect(arp.Output(), 0))
	metronome, err := instrument.NewMetronome(e, instrument.DefaultClicks(e.SampleRate()))
	check(err)

	mix := dsp.NewAdder(e, 2)
	check(mix.Connect(sub.Output(), 0))
	check(mix.Connect(metronome.Output(), 1))

	rec, err := wav.NewRecorder(e, wavPath, 1, signal.BitDepth16)
	check(err)
	check(rec.Connect(mix.MustOutput(0), 0))
	e.Timing().AddAudioConsumer(rec)

	for _, note := range []uint8{57, 60, 64} {
		l.Receive(event.NewNoteOn(0, note, 90).Bytes())
	}
	measure := e.Rhythm().SamplesPerBeat() * uint64(len(e.Rhythm().Meter()))
	for i := uint64(0); i < 2*measure; i++ {
		_, err := e.Step()
		check(err)
	}
	check(rec.Close())
}
