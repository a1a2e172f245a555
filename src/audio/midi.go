package audio

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/rtmididrv"
)

const (
	midiNoteOfNote0 = 57 // A3, 220Hz

	ccResonance = 71
	ccRelease   = 72
	ccAttack    = 73
	ccCutoff    = 74

	maxAttackCC  = 1.0 // s
	maxReleaseCC = 2.0 // s
)

// ListenToMidiIn streams raw messages of the first MIDI input until ctx is done.
func ListenToMidiIn(ctx context.Context) <-chan []byte {
	ch := make(chan []byte, 65536)
	go func() {
		defer close(ch)
		drv, err := rtmididrv.New()
		if err != nil {
			logrus.WithError(err).Error("failed to initialize MIDI driver")
			return
		}
		defer func() {
			if err := drv.Close(); err != nil {
				logrus.WithError(err).Error("failed to close MIDI driver")
			}
		}()
		ins, err := drv.Ins()
		if err != nil {
			logrus.WithError(err).Error("failed to get MIDI IN")
			return
		}
		if len(ins) == 0 {
			logrus.Warn("MIDI IN not found")
			return
		}
		in := ins[0]
		if err := in.Open(); err != nil {
			logrus.WithError(err).Error("failed to open MIDI IN")
			return
		}
		logrus.WithField("port", in.String()).Info("opened MIDI IN")
		defer func() {
			if err := in.Close(); err != nil {
				logrus.WithError(err).Error("failed to close MIDI IN")
			}
		}()
		if err := in.SetListener(func(data []byte, deltaMicroseconds int64) {
			msg := make([]byte, len(data))
			copy(msg, data)
			select {
			case ch <- msg:
			default:
			}
		}); err != nil {
			logrus.WithError(err).Error("failed to set listener")
			return
		}
		defer func() {
			logrus.Info("stop listening MIDI IN...")
			if err := in.StopListening(); err != nil {
				logrus.WithError(err).Error("failed to stop listening")
			}
		}()
		<-ctx.Done()
	}()
	return ch
}

// midiNoteToNote folds any MIDI note onto the 12-note octave starting at A3.
func midiNoteToNote(midiNote int) int {
	return ((midiNote-midiNoteOfNote0)%NumNotes + NumNotes) % NumNotes
}

// AddMidiEvent applies a raw MIDI message to the parameter store.
func (s *Synth) AddMidiEvent(data []byte) {
	if len(data) < 3 {
		return
	}
	status := data[0] >> 4
	switch {
	case status == 8 || status == 9 && data[2] == 0:
		note := midiNoteToNote(int(data[1]))
		if s.Params.CurrentNote() == note {
			s.Params.SetNoteOn(false)
		}
	case status == 9:
		s.Params.SetCurrentNote(midiNoteToNote(int(data[1])))
		s.Params.SetNoteOn(true)
	case status == 11:
		s.controlChange(int(data[1]), float64(data[2])/127)
	}
}

func (s *Synth) controlChange(cc int, value float64) {
	switch cc {
	case ccCutoff:
		s.Params.SetFilterCutoff(MinCutoff * math.Pow(MaxCutoff/MinCutoff, value))
		s.Changes.Add(ChangeFilterShape)
	case ccResonance:
		s.Params.SetFilterResonance(value * MaxResonance)
		s.Changes.Add(ChangeFilterShape)
	case ccAttack:
		s.Params.SetAttack(value * maxAttackCC)
	case ccRelease:
		s.Params.SetRelease(value * maxReleaseCC)
	default:
		return
	}
	s.Changes.Add(ChangeData)
}
