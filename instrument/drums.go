package instrument

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/wav"
)

// KeymapFile is the name of the keymap in a drum kit directory.
const KeymapFile = "keymap.txt"

// ErrInvalidKeymap is returned when the keymap can't be read or parsed.
var ErrInvalidKeymap = errors.New("invalid keymap")

// Keymap maps MIDI notes to sample files.
type Keymap map[uint8]string

// ParseKeymap reads "note path" lines. Blank lines and lines starting with
// # are skipped. Relative paths are resolved against dir.
func ParseKeymap(r io.Reader, dir string) (Keymap, error) {
	km := make(Keymap)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		i := strings.IndexAny(line, " \t")
		if i < 0 {
			return nil, errors.Wrapf(ErrInvalidKeymap, "line %d: missing sample path", n)
		}
		num, path := line[:i], strings.TrimSpace(line[i+1:])
		if path == "" {
			return nil, errors.Wrapf(ErrInvalidKeymap, "line %d: missing sample path", n)
		}
		note, err := strconv.ParseUint(num, 0, 7)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidKeymap, "line %d: note %q", n, num)
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		km[uint8(note)] = path
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(ErrInvalidKeymap, "read: %v", err)
	}
	return km, nil
}

// Kit is the decoded samples of a drum machine per note.
type Kit map[uint8]wav.Data

// LoadKit reads keymap.txt of the directory and loads every sample.
func LoadKit(dir string) (Kit, error) {
	path := filepath.Join(dir, KeymapFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidKeymap, "open %s: %v", path, err)
	}
	defer f.Close()
	km, err := ParseKeymap(f, dir)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	kit := make(Kit, len(km))
	for note, p := range km {
		d, err := wav.Load(p)
		if err != nil {
			return nil, errors.Wrapf(err, "note %d", note)
		}
		kit[note] = d
	}
	return kit, nil
}

// Drums is a drum machine: one sample per note, restarted on every note
// down. Other events are ignored. Only the first channel of a sample is
// played.
type Drums struct {
	*graph.Consumer[event.Batch]
	samples map[uint8]*wav.Sample
	mix     *dsp.Adder
	gain    *dsp.Gain
}

// NewDrums loads the kit from the directory.
func NewDrums(e *synth.Engine, dir string) (*Drums, error) {
	kit, err := LoadKit(dir)
	if err != nil {
		return nil, err
	}
	return NewDrumsFrom(e, kit)
}

// NewDrumsFrom returns a drum machine registered with the timing manager
// as an event consumer. Its event input is unconnected.
func NewDrumsFrom(e *synth.Engine, kit Kit) (*Drums, error) {
	if len(kit) == 0 {
		return nil, errors.Wrap(ErrInvalidKeymap, "no samples")
	}
	d := &Drums{
		samples: make(map[uint8]*wav.Sample, len(kit)),
		mix:     dsp.NewAdder(e, len(kit)),
		gain:    dsp.NewGain(e, 1, -3),
	}
	notes := make([]int, 0, len(kit))
	for note := range kit {
		notes = append(notes, int(note))
	}
	sort.Ints(notes)
	for i, note := range notes {
		s := wav.NewSampleFrom(e, kit[uint8(note)], false)
		if s.NumOutputs() == 0 {
			return nil, errors.Wrapf(ErrInvalidKeymap, "note %d: empty sample", note)
		}
		if err := d.mix.Connect(s.MustOutput(0), i); err != nil {
			return nil, err
		}
		d.samples[uint8(note)] = s
	}
	if err := d.gain.Connect(d.mix.MustOutput(0), 0); err != nil {
		return nil, err
	}
	d.Consumer = graph.NewConsumer(e, 1, d.process)
	e.Timing().AddEventConsumer(d)
	return d, nil
}

func (d *Drums) process(t uint64, in []event.Batch) {
	for _, ev := range in[0] {
		if m, ok := ev.Decode().(event.NoteOn); ok {
			d.Hit(m.Note, t)
		}
	}
}

// Hit restarts the sample of the note at time step at. Unmapped notes are
// ignored.
func (d *Drums) Hit(note uint8, at uint64) {
	if s, ok := d.samples[note]; ok {
		s.Trigger(at)
	}
}

// Notes returns the mapped notes in ascending order.
func (d *Drums) Notes() []uint8 {
	notes := make([]uint8, 0, len(d.samples))
	for n := range d.samples {
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i] < notes[j] })
	return notes
}

// Output returns the drums output after gain.
func (d *Drums) Output() *graph.AudioChannel {
	return d.gain.MustOutput(0)
}

// SetGain sets the output gain in dB.
func (d *Drums) SetGain(db float64) {
	d.gain.SetGain(db)
}
