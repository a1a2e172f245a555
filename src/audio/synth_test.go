package audio

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSynth(t *testing.T) *Synth {
	t.Helper()
	s, err := NewSynth(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSynthUpdateSet(t *testing.T) {
	s := newTestSynth(t)
	p := s.Params

	cases := []struct {
		command []string
		check   func() bool
	}{
		{[]string{"set", "osc", "2", "enabled", "true"}, p.Osc2Enabled},
		{[]string{"set", "osc", "1", "enabled", "false"}, func() bool { return !p.Osc1Enabled() }},
		{[]string{"set", "osc", "1", "waveform", "square"}, func() bool { return p.Osc1Waveform() == WaveSquare }},
		{[]string{"set", "osc", "2", "waveform", "sine"}, func() bool { return p.Osc2Waveform() == WaveSine }},
		{[]string{"set", "osc", "1", "offset", "-2.5"}, func() bool { return p.Osc1FreqOffset() == -2.5 }},
		{[]string{"set", "attack", "0.2"}, func() bool { return p.Attack() == 0.2 }},
		{[]string{"set", "release", "1.5"}, func() bool { return p.Release() == 1.5 }},
		{[]string{"set", "filter", "cutoff", "800"}, func() bool { return p.FilterCutoff() == 800 }},
		{[]string{"set", "filter", "resonance", "1"}, func() bool { return p.FilterResonance() == MaxResonance }},
		{[]string{"set", "delay", "time", "0.75"}, func() bool { return p.DelayTime() == 0.75 }},
		{[]string{"set", "delay", "mix", "0.1"}, func() bool { return p.DelayMix() == 0.1 }},
	}
	for _, c := range cases {
		require.NoError(t, s.Update(c.command), "%v", c.command)
		assert.True(t, c.check(), "%v", c.command)
	}
}

func TestSynthUpdateErrors(t *testing.T) {
	s := newTestSynth(t)

	unknown := [][]string{
		{},
		{"play"},
		{"set", "lfo", "1"},
		{"set", "filter", "type", "1"},
		{"set", "delay", "feedback", "1"},
		{"set", "osc", "1", "detune", "1"},
	}
	for _, command := range unknown {
		assert.ErrorIs(t, s.Update(command), ErrUnknownCommand, "%v", command)
	}

	invalid := [][]string{
		{"set"},
		{"set", "attack", "fast"},
		{"set", "release", "NaN"},
		{"set", "filter", "cutoff"},
		{"set", "osc", "3", "enabled", "true"},
		{"set", "osc", "1", "enabled", "maybe"},
		{"set", "osc", "1", "waveform", "triangle"},
		{"set", "osc", "2", "offset", "1"},
		{"note_on"},
		{"note_on", "12"},
		{"note_on", "-1"},
		{"note_off", "x"},
		{"mouse_on", "1", "2"},
	}
	for _, command := range invalid {
		assert.Error(t, s.Update(command), "%v", command)
	}
	assert.Equal(t, NoNote, s.Params.CurrentNote())
	assert.Equal(t, 0.01, s.Params.Attack())
}

func TestSynthNoteGate(t *testing.T) {
	s := newTestSynth(t)
	p := s.Params

	require.NoError(t, s.Update([]string{"note_on", "3"}))
	assert.Equal(t, 3, p.CurrentNote())
	assert.True(t, p.NoteOn())

	require.NoError(t, s.Update([]string{"note_off", "4"}))
	assert.True(t, p.NoteOn())

	require.NoError(t, s.Update([]string{"note_on", "5"}))
	require.NoError(t, s.Update([]string{"note_off", "3"}))
	assert.True(t, p.NoteOn())
	require.NoError(t, s.Update([]string{"note_off", "5"}))
	assert.False(t, p.NoteOn())
	assert.Equal(t, 5, p.CurrentNote())
}

func TestSynthMouseGate(t *testing.T) {
	s := newTestSynth(t)
	p := s.Params

	require.NoError(t, s.Update([]string{"note_on", "1"}))
	require.NoError(t, s.Update([]string{"mouse_on", "7"}))
	assert.False(t, p.NoteOn())
	assert.True(t, p.MouseOn())
	assert.Equal(t, 7, p.CurrentNote())

	require.NoError(t, s.Update([]string{"mouse_off"}))
	assert.False(t, p.MouseOn())
	assert.Equal(t, 7, p.CurrentNote())
}

func TestSynthChanges(t *testing.T) {
	s := newTestSynth(t)
	assert.True(t, s.Changes.Has(ChangeFilterShape))
	assert.True(t, s.Changes.Has(ChangeData))
	s.Changes.Delete(ChangeFilterShape)
	s.Changes.Delete(ChangeData)

	require.NoError(t, s.Update([]string{"set", "attack", "0.1"}))
	assert.True(t, s.Changes.Has(ChangeData))
	assert.False(t, s.Changes.Has(ChangeFilterShape))

	s.Changes.Delete(ChangeData)
	require.NoError(t, s.Update([]string{"set", "filter", "cutoff", "500"}))
	assert.True(t, s.Changes.Has(ChangeData))
	assert.True(t, s.Changes.Has(ChangeFilterShape))

	s.Changes.Delete(ChangeData)
	require.NoError(t, s.Update([]string{"note_on", "2"}))
	assert.False(t, s.Changes.Has(ChangeData))
}

func TestSynthCommandChannel(t *testing.T) {
	s := newTestSynth(t)
	s.CommandCh <- []string{"set", "delay", "mix", "0.9"}
	assert.Eventually(t, func() bool {
		return s.Params.DelayMix() == 0.9
	}, time.Second, time.Millisecond)
}

func TestSynthMidiNotes(t *testing.T) {
	s := newTestSynth(t)
	p := s.Params

	s.AddMidiEvent([]byte{0x90, 60, 100}) // C4
	assert.Equal(t, 3, p.CurrentNote())
	assert.True(t, p.NoteOn())

	s.AddMidiEvent([]byte{0x80, 61, 0})
	assert.True(t, p.NoteOn())
	s.AddMidiEvent([]byte{0x80, 60, 0})
	assert.False(t, p.NoteOn())

	s.AddMidiEvent([]byte{0x91, 45, 100}) // A2 folds to note 0
	assert.Equal(t, 0, p.CurrentNote())
	assert.True(t, p.NoteOn())
	s.AddMidiEvent([]byte{0x91, 57, 0}) // note-on with zero velocity
	assert.False(t, p.NoteOn())

	s.AddMidiEvent([]byte{0x90, 68}) // short messages are ignored
	assert.False(t, p.NoteOn())
}

func TestMidiNoteToNote(t *testing.T) {
	assert.Equal(t, 0, midiNoteToNote(57))
	assert.Equal(t, 11, midiNoteToNote(68))
	assert.Equal(t, 0, midiNoteToNote(69))
	assert.Equal(t, 11, midiNoteToNote(56))
	assert.Equal(t, 3, midiNoteToNote(0))
}

func TestSynthMidiControlChange(t *testing.T) {
	s := newTestSynth(t)
	p := s.Params
	s.Changes.Delete(ChangeFilterShape)
	s.Changes.Delete(ChangeData)

	s.AddMidiEvent([]byte{0xB0, ccCutoff, 0})
	assert.InDelta(t, MinCutoff, p.FilterCutoff(), 1e-9)
	assert.True(t, s.Changes.Has(ChangeFilterShape))
	s.AddMidiEvent([]byte{0xB0, ccCutoff, 127})
	assert.InDelta(t, MaxCutoff, p.FilterCutoff(), 1e-6)

	s.AddMidiEvent([]byte{0xB0, ccResonance, 127})
	assert.InDelta(t, MaxResonance, p.FilterResonance(), 1e-12)
	s.AddMidiEvent([]byte{0xB0, ccAttack, 127})
	assert.InDelta(t, 1.0, p.Attack(), 1e-12)
	s.AddMidiEvent([]byte{0xB0, ccRelease, 0})
	assert.Equal(t, 0.0, p.Release())
	assert.True(t, s.Changes.Has(ChangeData))

	s.Changes.Delete(ChangeData)
	s.AddMidiEvent([]byte{0xB0, 1, 64}) // mod wheel is not mapped
	assert.False(t, s.Changes.Has(ChangeData))
}

func TestSynthReader(t *testing.T) {
	s := newTestSynth(t)
	require.NoError(t, s.Update([]string{"note_on", "0"}))

	ctx, cancel := context.WithCancel(context.Background())
	r := s.Reader(ctx)
	buf := make([]byte, 1024)
	n, err := io.ReadFull(r, buf)
	require.NoError(t, err)
	assert.Equal(t, 1024, n)

	cancel()
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSynthFilterShape(t *testing.T) {
	s := newTestSynth(t)
	assert.Len(t, s.FilterShape(), filterShapePoints)
	assert.NotEmpty(t, s.ToJSON())
}
