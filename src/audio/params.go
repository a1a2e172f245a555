package audio

import (
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
)

// ----- Waveform ----- //

// Waveform selects the periodic shape of an oscillator.
type Waveform int32

const (
	WaveSine Waveform = iota
	WaveSaw
	WaveSquare
)

func (w Waveform) String() string {
	switch w {
	case WaveSine:
		return "sine"
	case WaveSaw:
		return "saw"
	case WaveSquare:
		return "square"
	}
	return fmt.Sprintf("waveform(%d)", int32(w))
}

// ParseWaveform ...
func ParseWaveform(s string) (Waveform, error) {
	switch s {
	case "sine":
		return WaveSine, nil
	case "saw":
		return WaveSaw, nil
	case "square":
		return WaveSquare, nil
	}
	return WaveSine, fmt.Errorf("unknown waveform %q", s)
}

// ----- Ranges ----- //

const (
	// NoNote is stored in current_note while no key has been selected yet.
	NoNote   = -1
	NumNotes = 12

	MaxFreqOffset  = 5.0
	MinCutoff      = 20.0
	MaxCutoff      = 20000.0
	MaxResonance   = 0.99 // Q = 0.5/(1-r) must stay finite
	MaxDelayTime   = 2.0
	defaultAttack  = 0.01
	defaultRelease = 0.5
)

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}
func (f *atomicFloat) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// ----- Params ----- //

// Params is the parameter store shared between the control path and the audio
// path. Every field is its own atomic cell; nothing spans fields, so a reader
// may observe two fields from different write instants.
type Params struct {
	osc1Enabled     atomic.Bool
	osc2Enabled     atomic.Bool
	currentNote     atomic.Int32
	noteOn          atomic.Bool
	mouseOn         atomic.Bool
	osc1FreqOffset  atomicFloat
	osc1Waveform    atomic.Int32
	osc2Waveform    atomic.Int32
	attack          atomicFloat
	release         atomicFloat
	filterCutoff    atomicFloat
	filterResonance atomicFloat
	delayTime       atomicFloat
	delayMix        atomicFloat
}

// NewParams returns a store holding the power-on patch.
func NewParams() *Params {
	p := &Params{}
	p.osc1Enabled.Store(true)
	p.osc2Enabled.Store(false)
	p.currentNote.Store(NoNote)
	p.osc1Waveform.Store(int32(WaveSine))
	p.osc2Waveform.Store(int32(WaveSaw))
	p.attack.Store(defaultAttack)
	p.release.Store(defaultRelease)
	p.filterCutoff.Store(MaxCutoff)
	p.filterResonance.Store(0)
	p.delayTime.Store(0.3)
	p.delayMix.Store(0.5)
	return p
}

func (p *Params) SetOsc1Enabled(v bool) { p.osc1Enabled.Store(v) }
func (p *Params) SetOsc2Enabled(v bool) { p.osc2Enabled.Store(v) }
func (p *Params) SetNoteOn(v bool) { p.noteOn.Store(v) }
func (p *Params) SetMouseOn(v bool) { p.mouseOn.Store(v) }

// SetCurrentNote stores a note index; negative values mean NoNote.
func (p *Params) SetCurrentNote(note int) {
	if note < 0 {
		note = NoNote
	}
	if note >= NumNotes {
		note = NumNotes - 1
	}
	p.currentNote.Store(int32(note))
}

func (p *Params) SetOsc1FreqOffset(hz float64) {
	p.osc1FreqOffset.Store(clamp(hz, -MaxFreqOffset, MaxFreqOffset))
}
func (p *Params) SetOsc1Waveform(w Waveform) { p.osc1Waveform.Store(int32(validWaveform(w))) }
func (p *Params) SetOsc2Waveform(w Waveform) { p.osc2Waveform.Store(int32(validWaveform(w))) }
func (p *Params) SetAttack(sec float64) { p.attack.Store(clamp(sec, 0, math.MaxFloat64)) }
func (p *Params) SetRelease(sec float64) { p.release.Store(clamp(sec, 0, math.MaxFloat64)) }
func (p *Params) SetFilterCutoff(hz float64) {
	p.filterCutoff.Store(clamp(hz, MinCutoff, MaxCutoff))
}
func (p *Params) SetFilterResonance(r float64) {
	p.filterResonance.Store(clamp(r, 0, MaxResonance))
}
func (p *Params) SetDelayTime(sec float64) { p.delayTime.Store(clamp(sec, 0, MaxDelayTime)) }
func (p *Params) SetDelayMix(mix float64) { p.delayMix.Store(clamp(mix, 0, 1)) }

func (p *Params) Osc1Enabled() bool { return p.osc1Enabled.Load() }
func (p *Params) Osc2Enabled() bool { return p.osc2Enabled.Load() }
func (p *Params) CurrentNote() int { return int(p.currentNote.Load()) }
func (p *Params) NoteOn() bool { return p.noteOn.Load() }
func (p *Params) MouseOn() bool { return p.mouseOn.Load() }
func (p *Params) Osc1FreqOffset() float64 { return p.osc1FreqOffset.Load() }
func (p *Params) Osc1Waveform() Waveform { return Waveform(p.osc1Waveform.Load()) }
func (p *Params) Osc2Waveform() Waveform { return Waveform(p.osc2Waveform.Load()) }
func (p *Params) Attack() float64 { return p.attack.Load() }
func (p *Params) Release() float64 { return p.release.Load() }
func (p *Params) FilterCutoff() float64 { return p.filterCutoff.Load() }
func (p *Params) FilterResonance() float64 { return p.filterResonance.Load() }
func (p *Params) DelayTime() float64 { return p.delayTime.Load() }
func (p *Params) DelayMix() float64 { return p.delayMix.Load() }

func validWaveform(w Waveform) Waveform {
	if w < WaveSine || w > WaveSquare {
		return WaveSine
	}
	return w
}

// ----- Snapshot ----- //

// Snapshot is a best-effort copy of every field, loaded one by one.
type Snapshot struct {
	Osc1Enabled     bool
	Osc2Enabled     bool
	CurrentNote     int
	NoteOn          bool
	MouseOn         bool
	Osc1FreqOffset  float64
	Osc1Waveform    Waveform
	Osc2Waveform    Waveform
	Attack          float64
	Release         float64
	FilterCutoff    float64
	FilterResonance float64
	DelayTime       float64
	DelayMix        float64
}

// Gate reports whether the note is sounding.
func (s *Snapshot) Gate() bool {
	return s.NoteOn || s.MouseOn
}

// Snapshot ...
func (p *Params) Snapshot() Snapshot {
	return Snapshot{
		Osc1Enabled:     p.osc1Enabled.Load(),
		Osc2Enabled:     p.osc2Enabled.Load(),
		CurrentNote:     int(p.currentNote.Load()),
		NoteOn:          p.noteOn.Load(),
		MouseOn:         p.mouseOn.Load(),
		Osc1FreqOffset:  p.osc1FreqOffset.Load(),
		Osc1Waveform:    Waveform(p.osc1Waveform.Load()),
		Osc2Waveform:    Waveform(p.osc2Waveform.Load()),
		Attack:          p.attack.Load(),
		Release:         p.release.Load(),
		FilterCutoff:    p.filterCutoff.Load(),
		FilterResonance: p.filterResonance.Load(),
		DelayTime:       p.delayTime.Load(),
		DelayMix:        p.delayMix.Load(),
	}
}

// ----- JSON ----- //

type oscJSON struct {
	Enabled  bool    `json:"enabled"`
	Waveform string  `json:"waveform"`
	Offset   float64 `json:"offset,omitempty"`
}

type paramsJSON struct {
	Oscs      []oscJSON `json:"oscs"`
	Note      int       `json:"note"`
	Gate      bool      `json:"gate"`
	Attack    float64   `json:"attack"`
	Release   float64   `json:"release"`
	Cutoff    float64   `json:"cutoff"`
	Resonance float64   `json:"resonance"`
	DelayTime float64   `json:"delayTime"`
	DelayMix  float64   `json:"delayMix"`
}

// ToJSON renders a snapshot for the state report.
func (p *Params) ToJSON() json.RawMessage {
	s := p.Snapshot()
	return toRawMessage(&paramsJSON{
		Oscs: []oscJSON{
			{Enabled: s.Osc1Enabled, Waveform: s.Osc1Waveform.String(), Offset: s.Osc1FreqOffset},
			{Enabled: s.Osc2Enabled, Waveform: s.Osc2Waveform.String()},
		},
		Note:      s.CurrentNote,
		Gate:      s.Gate(),
		Attack:    s.Attack,
		Release:   s.Release,
		Cutoff:    s.FilterCutoff,
		Resonance: s.FilterResonance,
		DelayTime: s.DelayTime,
		DelayMix:  s.DelayMix,
	})
}

func toRawMessage(v interface{}) json.RawMessage {
	bytes, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return json.RawMessage(bytes)
}
