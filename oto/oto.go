// Package oto plays the graph through the oto audio library. Unlike the
// portaudio speaker, the output is pull driven: the audio library reads
// frames and every frame read steps the engine once.
package oto

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/metric"
	"github.com/pipelined/synth/signal"
)

const bytesPerSample = 4

// Output is an io.Reader of float32 little endian frames rendered by the
// engine. While the engine is paused silence is read.
type Output struct {
	*graph.Consumer[float64]
	e           *synth.Engine
	numChannels int
	frame       []float64

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
}

// NewOutput creates the audio context with the engine sample rate. Only
// one context may exist per process.
func NewOutput(e *synth.Engine, numChannels int) (*Output, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   e.SampleRate(),
		ChannelCount: numChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   signal.DurationOf(e.SampleRate(), int64(e.BlockSize())),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create oto context")
	}
	<-ready
	o := newOutput(e, numChannels)
	o.ctx = ctx
	return o, nil
}

func newOutput(e *synth.Engine, numChannels int) *Output {
	o := &Output{
		e:           e,
		numChannels: numChannels,
		frame:       make([]float64, numChannels),
	}
	o.Consumer = graph.NewConsumer(e, numChannels, func(t uint64, in []float64) {
		copy(o.frame, in)
	})
	e.Timing().AddAudioConsumer(o)
	return o
}

// Read renders as many whole frames as fit into p. Engine errors end the
// stream.
func (o *Output) Read(p []byte) (int, error) {
	frameSize := bytesPerSample * o.numChannels
	n := 0
	stepped := false
	for ; n+frameSize <= len(p); n += frameSize {
		ok, err := o.e.Step()
		if err != nil {
			return n, err
		}
		if !ok {
			for i := n; i < n+frameSize; i++ {
				p[i] = 0
			}
			continue
		}
		stepped = true
		for c, v := range o.frame {
			binary.LittleEndian.PutUint32(p[n+c*bytesPerSample:], math.Float32bits(float32(v)))
		}
	}
	if stepped {
		metric.Block(o)
		o.e.Timing().Synchronize(o.e.Timing().Now() - 1)
	}
	return n, nil
}

// Play starts the playback.
func (o *Output) Play() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o)
	}
	o.player.Play()
}

// Close stops the playback.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}
