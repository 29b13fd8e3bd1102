// Package wav provides file backed graph nodes: Sample plays a wav file and
// Recorder writes its inputs into a wav file.
package wav

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/signal"
)

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth is supported")

// ErrInvalidFile is returned when file is not a valid wav.
var ErrInvalidFile = errors.New("wav is not valid")

const readSize = 4096

// Data is a decoded wav file.
type Data struct {
	signal.Float64
	SampleRate int
	BitDepth   signal.BitDepth
}

// Load decodes the whole wav file into memory.
func Load(path string) (Data, error) {
	file, err := os.Open(path)
	if err != nil {
		return Data{}, errors.Wrapf(err, "load wav %v", path)
	}
	defer file.Close()

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		return Data{}, errors.Wrapf(ErrInvalidFile, "load wav %v", path)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return Data{}, errors.Wrapf(ErrUnsupportedBitDepth, "load wav %v: %d bits", path, decoder.BitDepth)
	}
	numChannels := decoder.Format().NumChannels
	ib := &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, readSize*numChannels),
		SourceBitDepth: int(decoder.BitDepth),
	}
	d := Data{
		Float64:    make(signal.Float64, numChannels),
		SampleRate: int(decoder.SampleRate),
		BitDepth:   bitDepth,
	}
	for {
		n, err := decoder.PCMBuffer(ib)
		if err != nil {
			return Data{}, errors.Wrapf(err, "load wav %v", path)
		}
		if n == 0 {
			break
		}
		b := signal.InterInt{Data: ib.Data[:n], NumChannels: numChannels, BitDepth: bitDepth}.AsFloat64()
		for i := range d.Float64 {
			d.Float64[i] = append(d.Float64[i], b[i]...)
		}
	}
	return d, nil
}

// Sample plays the decoded data. It's silent until triggered. Files with
// different sample rate are resampled with linear interpolation.
type Sample struct {
	*graph.Generator[float64]
	data    Data
	step    float64
	pos     float64
	playing bool
	loop    bool
}

// NewSample loads the file and returns a generator with one output per
// channel of the file.
func NewSample(e *synth.Engine, path string, loop bool) (*Sample, error) {
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewSampleFrom(e, d, loop), nil
}

// NewSampleFrom returns a generator that plays already decoded data.
func NewSampleFrom(e *synth.Engine, d Data, loop bool) *Sample {
	s := &Sample{
		data: d,
		step: float64(d.SampleRate) / float64(e.SampleRate()),
		loop: loop,
	}
	s.Generator = graph.NewGenerator(e, d.NumChannels(), s.generate)
	return s
}

func (s *Sample) generate(t uint64, out []float64) {
	if !s.playing {
		return
	}
	size := s.data.Size()
	if s.pos >= float64(size) {
		if !s.loop || size == 0 {
			s.playing = false
			return
		}
		s.pos -= float64(size)
	}
	i := int(s.pos)
	frac := s.pos - float64(i)
	for c := range out {
		v := s.data.Float64[c][i]
		if frac > 0 {
			next := 0.0
			switch {
			case i+1 < size:
				next = s.data.Float64[c][i+1]
			case s.loop:
				next = s.data.Float64[c][0]
			}
			v += (next - v) * frac
		}
		out[c] = v
	}
	s.pos += s.step
}

// Trigger starts the sample from the beginning at time step at.
func (s *Sample) Trigger(at uint64) {
	s.Schedule(at, func(uint64) {
		s.pos = 0
		s.playing = true
	})
}

// Stop silences the sample at time step at.
func (s *Sample) Stop(at uint64) {
	s.Schedule(at, func(uint64) {
		s.playing = false
	})
}

// Recorder writes its inputs into a wav file. It's an audio-rate consumer
// and buffers a block of frames before writing.
type Recorder struct {
	*graph.Consumer[float64]
	path    string
	log     synth.Logger
	file    *os.File
	encoder *wav.Encoder
	ib      *audio.IntBuffer
	block   signal.Float64
	n       int
	frames  int64
	err     error
	depth   signal.BitDepth
}

// NewRecorder creates the file and returns a recorder with numChannels
// inputs.
func NewRecorder(e *synth.Engine, path string, numChannels int, bitDepth signal.BitDepth) (*Recorder, error) {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create wav %v", path)
	}
	r := &Recorder{
		path:    path,
		log:     e.Logger(),
		file:    f,
		encoder: wav.NewEncoder(f, e.SampleRate(), int(bitDepth), numChannels, 1),
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  e.SampleRate(),
			},
			SourceBitDepth: int(bitDepth),
		},
		block: signal.Make(numChannels, e.BlockSize()),
		depth: bitDepth,
	}
	r.Consumer = graph.NewConsumer(e, numChannels, r.process)
	return r, nil
}

func (r *Recorder) process(t uint64, in []float64) {
	if r.err != nil {
		return
	}
	for c, v := range in {
		r.block[c][r.n] = v
	}
	r.n++
	if r.n == r.block.Size() {
		r.flush()
	}
}

func (r *Recorder) flush() {
	if r.n == 0 || r.err != nil {
		return
	}
	b := make(signal.Float64, len(r.block))
	for c := range r.block {
		b[c] = r.block[c][:r.n]
	}
	r.ib.Data = b.AsInterInt(r.depth)
	if err := r.encoder.Write(r.ib); err != nil {
		r.err = errors.Wrapf(err, "write wav %v", r.path)
		r.log.Error(fmt.Sprintf("recorder: %v", r.err))
	}
	r.frames += int64(r.n)
	r.n = 0
}

// Frames returns the number of frames written so far.
func (r *Recorder) Frames() int64 {
	return r.frames
}

// Close writes buffered frames, finalizes the file and returns the first
// error that happened during recording.
func (r *Recorder) Close() error {
	r.flush()
	if err := r.encoder.Close(); err != nil && r.err == nil {
		r.err = errors.Wrapf(err, "close wav %v", r.path)
	}
	if err := r.file.Close(); err != nil && r.err == nil {
		r.err = errors.Wrapf(err, "close wav %v", r.path)
	}
	return r.err
}
