package midi

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/event"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/signal"
)

// Resolution of recorded files in ticks per quarter note.
const Resolution = 960

// ErrTimeFormat is returned for files that don't use metric ticks.
var ErrTimeFormat = errors.New("only metric time format is supported")

// Timed is an event with its offset from the start of the sequence in
// samples.
type Timed struct {
	At    uint64
	Event event.Event
}

// Sequence is a MIDI file converted to sample time.
type Sequence struct {
	Events []Timed
	// Length is the offset of the last event.
	Length uint64
	// Tempo is the first tempo of the file.
	Tempo float64
}

type tickedMessage struct {
	tick uint64
	msg  smf.Message
}

// Load reads the file and converts all tracks into a single sequence
// following the tempo changes of the file. Meta and system exclusive
// messages are skipped.
func Load(path string, sampleRate int) (Sequence, error) {
	rd, err := smf.ReadFile(path)
	if err != nil {
		return Sequence{}, errors.Wrapf(err, "load midi %v", path)
	}
	s, err := sequence(rd, sampleRate)
	if err != nil {
		return Sequence{}, errors.Wrapf(err, "load midi %v", path)
	}
	return s, nil
}

func sequence(rd *smf.SMF, sampleRate int) (Sequence, error) {
	ticks, ok := rd.TimeFormat.(smf.MetricTicks)
	if !ok {
		return Sequence{}, ErrTimeFormat
	}
	var msgs []tickedMessage
	for _, track := range rd.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			msgs = append(msgs, tickedMessage{tick: tick, msg: ev.Message})
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].tick < msgs[j].tick })

	s := Sequence{Tempo: 120}
	var (
		bpm     = 120.0
		elapsed time.Duration
		last    uint64
		tempo   bool
	)
	for _, m := range msgs {
		elapsed += ticks.Duration(bpm, uint32(m.tick-last))
		last = m.tick
		var b float64
		if m.msg.GetMetaTempo(&b) {
			bpm = b
			if !tempo {
				s.Tempo = b
				tempo = true
			}
			continue
		}
		if m.msg.IsMeta() {
			continue
		}
		ev, err := event.Parse(m.msg.Bytes())
		if err != nil || ev.Type == event.System {
			continue
		}
		at := uint64(signal.SamplesOf(sampleRate, elapsed))
		s.Events = append(s.Events, Timed{At: at, Event: ev})
		s.Length = at
	}
	return s, nil
}

// Player is an event-rate generator that plays a sequence. It's silent
// until started.
type Player struct {
	*graph.Generator[event.Batch]
	seq     Sequence
	origin  uint64
	next    int
	playing bool
	loop    bool
}

// NewPlayer returns a player of the sequence.
func NewPlayer(e *synth.Engine, seq Sequence, loop bool) *Player {
	p := &Player{
		seq:  seq,
		loop: loop,
	}
	p.Generator = graph.NewGenerator(e, 1, p.generate)
	return p
}

// Output returns the event channel.
func (p *Player) Output() *graph.EventChannel {
	return p.MustOutput(0)
}

func (p *Player) generate(t uint64, out []event.Batch) {
	if !p.playing {
		return
	}
	var b event.Batch
	for p.next < len(p.seq.Events) && p.origin+p.seq.Events[p.next].At <= t {
		b = append(b, p.seq.Events[p.next].Event)
		p.next++
	}
	out[0] = b
	if p.next < len(p.seq.Events) {
		return
	}
	if p.loop && len(p.seq.Events) > 0 {
		p.origin = t + 1
		p.next = 0
		return
	}
	p.playing = false
}

// Start plays the sequence from the beginning at time step at.
func (p *Player) Start(at uint64) {
	p.Schedule(at, func(t uint64) {
		p.origin = t
		p.next = 0
		p.playing = true
	})
}

// Stop stops the playback at time step at.
func (p *Player) Stop(at uint64) {
	p.Schedule(at, func(uint64) {
		p.playing = false
	})
}

// Playing returns true while the sequence is played. It must be called
// from the realtime goroutine.
func (p *Player) Playing() bool {
	return p.playing
}

// Recorder is an event-rate consumer that records its input. The first
// recorded event starts the recording.
type Recorder struct {
	*graph.Consumer[event.Batch]
	sampleRate int
	mu         sync.Mutex
	events     []Timed
	origin     uint64
	started    bool
}

// NewRecorder returns a recorder registered with the timing manager as an
// event consumer.
func NewRecorder(e *synth.Engine) *Recorder {
	r := &Recorder{
		sampleRate: e.SampleRate(),
	}
	r.Consumer = graph.NewConsumer(e, 1, r.record)
	e.Timing().AddEventConsumer(r)
	return r
}

func (r *Recorder) record(t uint64, in []event.Batch) {
	if len(in[0]) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.origin = t
		r.started = true
	}
	for _, ev := range in[0] {
		r.events = append(r.events, Timed{At: t - r.origin, Event: ev})
	}
}

// Sequence returns the recorded events.
func (r *Recorder) Sequence() Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Sequence{
		Events: append([]Timed(nil), r.events...),
		Tempo:  120,
	}
	if len(s.Events) > 0 {
		s.Length = s.Events[len(s.Events)-1].At
	}
	return s
}

// Save writes the recorded events into a single track file with provided
// tempo.
func (r *Recorder) Save(path string, bpm float64) error {
	s := r.Sequence()
	s.Tempo = bpm
	if err := Write(path, s, r.sampleRate); err != nil {
		return errors.Wrapf(err, "save midi %v", path)
	}
	return nil
}

// Write writes the sequence into a single track file.
func Write(path string, s Sequence, sampleRate int) error {
	ticks := smf.MetricTicks(Resolution)
	sm := smf.New()
	sm.TimeFormat = ticks

	var track smf.Track
	track.Add(0, smf.MetaTempo(s.Tempo))
	var (
		last     uint64
		lastTick uint32
	)
	for _, ev := range s.Events {
		tick := ticks.Ticks(s.Tempo, signal.DurationOf(sampleRate, int64(ev.At)))
		if ev.At < last || tick < lastTick {
			return fmt.Errorf("event at %d is out of order", ev.At)
		}
		track.Add(tick-lastTick, ev.Event.Bytes())
		last, lastTick = ev.At, tick
	}
	track.Close(0)
	if err := sm.Add(track); err != nil {
		return err
	}
	return sm.WriteFile(path)
}
