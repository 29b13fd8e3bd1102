package example

import (
	"context"
	"time"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/instrument"
	"github.com/pipelined/synth/portaudio"
)

// Example 1:
//
//	Play a C major chord with subtractive instrument
//	Listen to it with portaudio for a second
func one() {
	e, err := synth.New()
	check(err)
	sub, err := instrument.NewSubtractive(e, instrument.DefaultSettings())
	check(err)

	speaker, err := portaudio.NewSpeaker(e, 1)
	check(err)
	defer speaker.Close()
	check(speaker.Connect(sub.Output(), 0))

	second := uint64(e.SampleRate())
	for _, note := range []uint8{60, 64, 67} {
		sub.Play(note, 0.8, 1)
		sub.Release(note, second/2)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Run(ctx); err != context.DeadlineExceeded {
		check(err)
	}
}

func check(err error) {
	if err != nil {
		panic(err)
	}
}
