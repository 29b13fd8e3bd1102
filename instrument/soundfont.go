package instrument

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
)

// SoundFont renders MIDI with a SoundFont synthesizer. It's a stereo block
// generator: every pass renders a block of frames and is split at the
// steps where events arrive, so each event takes effect at its own step.
// The event input is read ahead of the engine clock by up to one block.
type SoundFont struct {
	*graph.BlockGenerator[float64]
	synth  *meltysynth.Synthesizer
	events *graph.Consumer[event.Batch]
	left   []float32
	right  []float32
}

// LoadSoundFont reads the SoundFont file.
func LoadSoundFont(e *synth.Engine, path string) (*SoundFont, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load soundfont %v", path)
	}
	defer f.Close()
	sf, err := NewSoundFont(e, f)
	if err != nil {
		return nil, errors.Wrapf(err, "load soundfont %v", path)
	}
	return sf, nil
}

// NewSoundFont parses the SoundFont from reader.
func NewSoundFont(e *synth.Engine, r io.Reader) (*SoundFont, error) {
	font, err := meltysynth.NewSoundFont(r)
	if err != nil {
		return nil, errors.Wrap(err, "parse soundfont")
	}
	settings := meltysynth.NewSynthesizerSettings(int32(e.SampleRate()))
	s, err := meltysynth.NewSynthesizer(font, settings)
	if err != nil {
		return nil, errors.Wrap(err, "create synthesizer")
	}
	blockSize := int(settings.BlockSize)
	sf := &SoundFont{
		synth:  s,
		events: graph.NewConsumer[event.Batch](e, 1, nil),
		left:   make([]float32, blockSize),
		right:  make([]float32, blockSize),
	}
	sf.BlockGenerator = graph.NewBlockGenerator(e, 2, blockSize, sf.render)
	return sf, nil
}

// Connect attaches the event input.
func (sf *SoundFont) Connect(ch *graph.EventChannel) error {
	return sf.events.Connect(ch, 0)
}

func (sf *SoundFont) render(t uint64, out [][]float64) {
	n := len(out[0])
	from := 0
	for i := 0; i < n; i++ {
		batch := sf.events.Frame(t + uint64(i))[0]
		if len(batch) == 0 {
			continue
		}
		sf.renderRange(out, from, i)
		from = i
		for _, ev := range batch {
			sf.process(ev)
		}
	}
	sf.renderRange(out, from, n)
}

func (sf *SoundFont) renderRange(out [][]float64, from, to int) {
	if from == to {
		return
	}
	left, right := sf.left[:to-from], sf.right[:to-from]
	sf.synth.Render(left, right)
	for i := range left {
		out[0][from+i] = float64(left[i])
		out[1][from+i] = float64(right[i])
	}
}

func (sf *SoundFont) process(ev event.Event) {
	if ev.Type == event.System {
		return
	}
	var d1, d2 int32
	if len(ev.Payload) > 0 {
		d1 = int32(ev.Payload[0])
	}
	if len(ev.Payload) > 1 {
		d2 = int32(ev.Payload[1])
	}
	sf.synth.ProcessMidiMessage(int32(ev.Channel), int32(ev.Type)<<4, d1, d2)
}

// Send schedules the event at time step at.
func (sf *SoundFont) Send(at uint64, ev event.Event) {
	sf.Schedule(at, func(uint64) {
		sf.process(ev)
	})
}

// Reset releases all notes at time step at. If immediate is true, release
// tails are cut.
func (sf *SoundFont) Reset(at uint64, immediate bool) {
	sf.Schedule(at, func(uint64) {
		sf.synth.NoteOffAll(immediate)
	})
}
