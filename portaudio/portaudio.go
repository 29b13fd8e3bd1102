// Package portaudio binds the graph to the default audio devices. Speaker
// is the terminal node that paces the engine with blocking writes and
// keeps the timing manager synchronized with the hardware.
package portaudio

import (
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/metric"
	"github.com/pipelined/synth/signal"
)

// stream is the part of portaudio stream used by the nodes.
type stream interface {
	Start() error
	Stop() error
	Close() error
}

type (
	writer interface {
		stream
		Write() error
	}

	reader interface {
		stream
		Read() error
	}
)

// Speaker plays its inputs with the default output device. It's an audio
// rate consumer registered with the timing manager. Every full block is
// written with a blocking call and the timing manager is synchronized
// right after.
type Speaker struct {
	*graph.Consumer[float64]
	e      *synth.Engine
	buf    []float32
	block  signal.Float64
	n      int
	stream writer
}

// NewSpeaker opens the default output stream with numChannels channels.
func NewSpeaker(e *synth.Engine, numChannels int) (*Speaker, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize portaudio")
	}
	s := &Speaker{
		buf: make([]float32, e.BlockSize()*numChannels),
	}
	st, err := portaudio.OpenDefaultStream(0, numChannels, float64(e.SampleRate()), e.BlockSize(), &s.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "open output stream")
	}
	return newSpeaker(e, s, numChannels, st)
}

func newSpeaker(e *synth.Engine, s *Speaker, numChannels int, st writer) (*Speaker, error) {
	if err := st.Start(); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "start output stream")
	}
	s.e = e
	s.stream = st
	if s.buf == nil {
		s.buf = make([]float32, e.BlockSize()*numChannels)
	}
	s.block = signal.Make(numChannels, e.BlockSize())
	s.Consumer = graph.NewConsumer(e, numChannels, s.process)
	e.Timing().AddAudioConsumer(s)
	e.Logger().Info(fmt.Sprintf("speaker: %d channels at %d Hz", numChannels, e.SampleRate()))
	return s, nil
}

func (s *Speaker) process(t uint64, in []float64) {
	for c, v := range in {
		s.block[c][s.n] = signal.Clip(v)
	}
	s.n++
	if s.n < s.block.Size() {
		return
	}
	s.n = 0
	s.block.Interleave(s.buf)
	if err := s.stream.Write(); err != nil {
		s.e.Abort(errors.Wrap(err, "write output stream"))
		return
	}
	metric.Block(s)
	s.e.Timing().Synchronize(t)
}

// Close stops the stream and releases the device.
func (s *Speaker) Close() error {
	return closeStream(s.stream)
}

// Microphone records the default input device. It's a block generator:
// a blocking read happens only when the frames of the previous one are
// used up, so passes split by scheduled callbacks share a read.
type Microphone struct {
	*graph.BlockGenerator[float64]
	e      *synth.Engine
	buf    []float32
	view   signal.Float64
	pos    int // frames of buf already rendered
	stream reader
}

// NewMicrophone opens the default input stream with numChannels channels.
func NewMicrophone(e *synth.Engine, numChannels int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, errors.Wrap(err, "initialize portaudio")
	}
	m := &Microphone{
		buf: make([]float32, e.BlockSize()*numChannels),
	}
	st, err := portaudio.OpenDefaultStream(numChannels, 0, float64(e.SampleRate()), e.BlockSize(), &m.buf)
	if err != nil {
		portaudio.Terminate()
		return nil, errors.Wrap(err, "open input stream")
	}
	return newMicrophone(e, m, numChannels, st)
}

func newMicrophone(e *synth.Engine, m *Microphone, numChannels int, st reader) (*Microphone, error) {
	if err := st.Start(); err != nil {
		st.Close()
		return nil, errors.Wrap(err, "start input stream")
	}
	m.e = e
	m.stream = st
	if m.buf == nil {
		m.buf = make([]float32, e.BlockSize()*numChannels)
	}
	m.view = make(signal.Float64, numChannels)
	m.pos = m.frames()
	m.BlockGenerator = graph.NewBlockGenerator(e, numChannels, e.BlockSize(), m.render)
	return m, nil
}

func (m *Microphone) frames() int {
	return len(m.buf) / len(m.view)
}

func (m *Microphone) render(t uint64, out [][]float64) {
	numChannels := len(m.view)
	for n := 0; n < len(out[0]); {
		if m.pos == m.frames() {
			if err := m.stream.Read(); err != nil {
				m.e.Abort(errors.Wrap(err, "read input stream"))
				return
			}
			m.pos = 0
		}
		k := min(len(out[0])-n, m.frames()-m.pos)
		for c := range m.view {
			m.view[c] = out[c][n : n+k]
		}
		m.view.Deinterleave(m.buf[m.pos*numChannels : (m.pos+k)*numChannels])
		n += k
		m.pos += k
	}
}

// Close stops the stream and releases the device.
func (m *Microphone) Close() error {
	return closeStream(m.stream)
}

func closeStream(st stream) error {
	if err := st.Stop(); err != nil {
		return err
	}
	if err := st.Close(); err != nil {
		return err
	}
	if _, ok := st.(*portaudio.Stream); ok {
		return portaudio.Terminate()
	}
	return nil
}
