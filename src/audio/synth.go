package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrUnknownCommand is returned by Update for commands it cannot interpret.
var ErrUnknownCommand = errors.New("unknown command")

const (
	ChangeFilterShape = "filter-shape"
	ChangeData        = "data"
	filterShapePoints = 128
)

// ----- Changes ----- //

// Changes collects report keys touched by the control path.
type Changes struct {
	sync.Mutex
	dict map[string]struct{}
}

func newChanges() *Changes {
	return &Changes{dict: make(map[string]struct{})}
}

// Add ...
func (c *Changes) Add(key string) {
	c.Lock()
	c.dict[key] = struct{}{}
	c.Unlock()
}

// Has ...
func (c *Changes) Has(key string) bool {
	c.Lock()
	_, ok := c.dict[key]
	c.Unlock()
	return ok
}

// Delete ...
func (c *Changes) Delete(key string) {
	c.Lock()
	delete(c.dict, key)
	c.Unlock()
}

// ----- Synth ----- //

// Synth ties the parameter store to an engine and interprets control
// commands. It never touches an audio device itself.
type Synth struct {
	Params    *Params
	Changes   *Changes
	CommandCh chan []string
	engine    *Engine
	cfg       Config
}

// NewSynth ...
func NewSynth(cfg Config) (*Synth, error) {
	params := NewParams()
	engine, err := NewEngine(params, cfg)
	if err != nil {
		return nil, err
	}
	s := &Synth{
		Params:    params,
		Changes:   newChanges(),
		CommandCh: make(chan []string, 256),
		engine:    engine,
		cfg:       cfg,
	}
	s.Changes.Add(ChangeFilterShape)
	s.Changes.Add(ChangeData)
	go s.processCommands()
	return s, nil
}

func (s *Synth) processCommands() {
	for command := range s.CommandCh {
		if err := s.Update(command); err != nil {
			logrus.WithFields(logrus.Fields{
				"command": command,
			}).WithError(err).Warn("failed to apply command")
		}
	}
	logrus.Debug("processCommands() ended.")
}

// Process renders one driver buffer.
func (s *Synth) Process(out []float32) bool {
	return s.engine.Process(out)
}

// Reader returns a PCM stream of the engine output until ctx is done.
func (s *Synth) Reader(ctx context.Context) io.Reader {
	return NewBlockReader(ctx, s.Process, s.cfg.FramesPerBlock)
}

// Level is the peak of the latest rendered block.
func (s *Synth) Level() float64 {
	return s.engine.Level()
}

// FilterShape ...
func (s *Synth) FilterShape() []float64 {
	return FilterShape(s.cfg.SampleRate, s.Params.FilterCutoff(), s.Params.FilterResonance(), filterShapePoints)
}

// ToJSON ...
func (s *Synth) ToJSON() json.RawMessage {
	return s.Params.ToJSON()
}

// Update applies one control command, e.g. ["set", "filter", "cutoff", "800"].
func (s *Synth) Update(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("%w: empty", ErrUnknownCommand)
	}
	switch command[0] {
	case "set":
		if err := s.set(command[1:]); err != nil {
			return err
		}
		s.Changes.Add(ChangeData)
	case "note_on":
		note, err := parseNote(command)
		if err != nil {
			return err
		}
		s.Params.SetCurrentNote(note)
		s.Params.SetNoteOn(true)
	case "note_off":
		note, err := parseNote(command)
		if err != nil {
			return err
		}
		if s.Params.CurrentNote() == note {
			s.Params.SetNoteOn(false)
		}
	case "mouse_on":
		note, err := parseNote(command)
		if err != nil {
			return err
		}
		s.Params.SetNoteOn(false)
		s.Params.SetCurrentNote(note)
		s.Params.SetMouseOn(true)
	case "mouse_off":
		s.Params.SetMouseOn(false)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownCommand, command[0])
	}
	return nil
}

func (s *Synth) set(command []string) error {
	if len(command) < 2 {
		return fmt.Errorf("invalid set command %v", command)
	}
	switch command[0] {
	case "osc":
		return s.setOsc(command[1:])
	case "attack", "release":
		value, err := parseFloatArg(command[1:])
		if err != nil {
			return err
		}
		if command[0] == "attack" {
			s.Params.SetAttack(value)
		} else {
			s.Params.SetRelease(value)
		}
	case "filter":
		value, err := parseFloatArg(command[2:])
		if err != nil {
			return err
		}
		switch command[1] {
		case "cutoff":
			s.Params.SetFilterCutoff(value)
		case "resonance":
			s.Params.SetFilterResonance(value)
		default:
			return fmt.Errorf("%w: filter %v", ErrUnknownCommand, command[1])
		}
		s.Changes.Add(ChangeFilterShape)
	case "delay":
		value, err := parseFloatArg(command[2:])
		if err != nil {
			return err
		}
		switch command[1] {
		case "time":
			s.Params.SetDelayTime(value)
		case "mix":
			s.Params.SetDelayMix(value)
		default:
			return fmt.Errorf("%w: delay %v", ErrUnknownCommand, command[1])
		}
	default:
		return fmt.Errorf("%w: set %v", ErrUnknownCommand, command[0])
	}
	return nil
}

func (s *Synth) setOsc(command []string) error {
	if len(command) != 3 {
		return fmt.Errorf("invalid key-value pair %v", command)
	}
	index, key, value := command[0], command[1], command[2]
	if index != "1" && index != "2" {
		return fmt.Errorf("invalid osc index %q", index)
	}
	switch key {
	case "enabled":
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		if index == "1" {
			s.Params.SetOsc1Enabled(enabled)
		} else {
			s.Params.SetOsc2Enabled(enabled)
		}
	case "waveform":
		w, err := ParseWaveform(value)
		if err != nil {
			return err
		}
		if index == "1" {
			s.Params.SetOsc1Waveform(w)
		} else {
			s.Params.SetOsc2Waveform(w)
		}
	case "offset":
		if index != "1" {
			return fmt.Errorf("osc %s has no frequency offset", index)
		}
		hz, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		s.Params.SetOsc1FreqOffset(hz)
	default:
		return fmt.Errorf("%w: osc %v", ErrUnknownCommand, key)
	}
	return nil
}

func parseNote(command []string) (int, error) {
	if len(command) != 2 {
		return 0, fmt.Errorf("%s needs a note", command[0])
	}
	note, err := strconv.ParseInt(command[1], 10, 32)
	if err != nil {
		return 0, err
	}
	if note < 0 || note >= NumNotes {
		return 0, fmt.Errorf("note %d out of range", note)
	}
	return int(note), nil
}

func parseFloatArg(args []string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one value, got %v", args)
	}
	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(value) {
		return 0, fmt.Errorf("value is NaN")
	}
	return value, nil
}

// Close stops the engine and the command loop.
func (s *Synth) Close() {
	s.engine.Stop()
	close(s.CommandCh)
}
