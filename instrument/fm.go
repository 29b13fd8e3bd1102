package instrument

import (
	"math"
	"time"

	"github.com/pipelined/synth"
	"github.com/pipelined/synth/dsp"
	"github.com/pipelined/synth/graph"
	"github.com/pipelined/synth/poly"
)

// FMSettings of the FM instrument.
type FMSettings struct {
	Voices    int
	Carrier   dsp.Mode
	Modulator dsp.Mode
	// Transpositions of carrier and modulator in semitones.
	CarrierTranspose   float64
	ModulatorTranspose float64
	// Intensity is the phase deviation of the carrier in cycles.
	Intensity    float64
	Attack       time.Duration
	Decay        time.Duration
	Sustain      float64
	Release      time.Duration
	Gain         float64 // dB
	Vibrato      float64
	VibratoDepth float64
}

// DefaultFMSettings returns settings of a sine pair an octave apart.
func DefaultFMSettings() FMSettings {
	return FMSettings{
		Voices:             8,
		Carrier:            dsp.Sine{},
		Modulator:          dsp.Sine{},
		ModulatorTranspose: 12,
		Intensity:          0.5,
		Attack:             5 * time.Millisecond,
		Decay:              300 * time.Millisecond,
		Sustain:            0.4,
		Release:            300 * time.Millisecond,
		Gain:               -10,
		Vibrato:            5,
		VibratoDepth:       0.5,
	}
}

// FM is a polyphonic instrument. The modulator of every voice drives the
// phase of its carrier.
type FM struct {
	*poly.Instrument
	voices []*fmVoice
	lfo    *dsp.Oscillator
	gain   *dsp.Gain
	depth  float64
}

type fmVoice struct {
	carrier   *dsp.Oscillator
	modulator *dsp.Oscillator
	env       *dsp.Envelope
	fm        *FM
}

// NewFM returns an instrument with provided settings.
func NewFM(e *synth.Engine, s FMSettings) (*FM, error) {
	fm := &FM{
		lfo:   dsp.NewOscillator(e, dsp.Sine{}, s.Vibrato),
		gain:  dsp.NewGain(e, 1, s.Gain),
		depth: s.VibratoDepth,
	}
	var err error
	fm.Instrument, err = poly.NewInstrument(e, s.Voices, func(int) (poly.Handler, *graph.AudioChannel, error) {
		v := &fmVoice{
			carrier:   dsp.NewOscillator(e, s.Carrier, 0),
			modulator: dsp.NewOscillator(e, s.Modulator, 0),
			env:       dsp.NewEnvelope(e, s.Attack, s.Decay, s.Sustain, s.Release),
			fm:        fm,
		}
		v.carrier.SetTransposition(s.CarrierTranspose)
		v.modulator.SetTransposition(s.ModulatorTranspose)
		v.carrier.SetModulator(v.modulator.Output(), s.Intensity)
		if err := v.env.Connect(v.carrier.Output(), 0); err != nil {
			return nil, nil, err
		}
		fm.voices = append(fm.voices, v)
		return v, v.env.MustOutput(0), nil
	})
	if err != nil {
		return nil, err
	}
	if err := fm.gain.Connect(fm.Instrument.Output(), 0); err != nil {
		return nil, err
	}
	return fm, nil
}

// Output returns the instrument output after gain.
func (fm *FM) Output() *graph.AudioChannel {
	return fm.gain.MustOutput(0)
}

// SetModes changes the waveforms of every voice.
func (fm *FM) SetModes(carrier, modulator dsp.Mode) {
	for _, v := range fm.voices {
		v.carrier.SetMode(carrier)
		v.modulator.SetMode(modulator)
	}
}

// SetTransposition transposes carrier and modulator of every voice.
func (fm *FM) SetTransposition(carrier, modulator float64) {
	for _, v := range fm.voices {
		v.carrier.SetTransposition(carrier)
		v.modulator.SetTransposition(modulator)
	}
}

// SetIntensity changes the modulation intensity of every voice.
func (fm *FM) SetIntensity(intensity float64) {
	for _, v := range fm.voices {
		v.carrier.SetModulatorIntensity(intensity)
	}
}

// SetEnvelope changes the envelope of every voice.
func (fm *FM) SetEnvelope(a, d time.Duration, sustain float64, r time.Duration) {
	for _, v := range fm.voices {
		v.env.SetAttack(a)
		v.env.SetDecay(d)
		v.env.SetSustain(sustain)
		v.env.SetRelease(r)
	}
}

// SetGain sets the output gain in dB.
func (fm *FM) SetGain(db float64) {
	fm.gain.SetGain(db)
}

func (v *fmVoice) NoteDown(t uint64, freq, velocity float64) {
	v.carrier.SetFreq(t, freq)
	v.modulator.SetFreq(t, freq)
	v.env.NoteDown(t, math.Sqrt(velocity))
}

func (v *fmVoice) NoteUp(t uint64) {
	v.env.NoteUp(t)
}

func (v *fmVoice) PitchWheel(t uint64, freq float64) {
	v.carrier.SetFreq(t, freq)
	v.modulator.SetFreq(t, freq)
}

// ModulationWheel applies vibrato to the carrier only.
func (v *fmVoice) ModulationWheel(t uint64, value float64) {
	var lfo *graph.AudioChannel
	if value > 0 {
		lfo = v.fm.lfo.Output()
	}
	v.carrier.SetLFO(lfo, value*v.fm.depth)
}

func (v *fmVoice) Releasing() bool {
	return v.env.Active()
}
