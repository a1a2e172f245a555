package audio

import (
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/oto"
	"github.com/sirupsen/logrus"
)

// ----- Audio ----- //

// Audio plays a Synth on the default output device.
type Audio struct {
	*Synth
	otoContext *oto.Context
	cfg        Config
}

// bufferSizeInBytes keeps oto's buffer at four blocks and never below 4096.
func bufferSizeInBytes(cfg Config) int {
	size := cfg.FramesPerBlock * bytesPerFrame * 4
	if size < 4096 {
		size = 4096
	}
	return size
}

// NewAudio opens the output device. A failure here means no audio output at
// all; the caller decides whether that is fatal.
func NewAudio(cfg Config) (*Audio, error) {
	synth, err := NewSynth(cfg)
	if err != nil {
		return nil, err
	}
	otoContext, err := oto.NewContext(cfg.SampleRate, channelNum, bitDepthInBytes, bufferSizeInBytes(cfg))
	if err != nil {
		synth.Close()
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"sampleRate":     cfg.SampleRate,
		"framesPerBlock": cfg.FramesPerBlock,
	}).Info("audio device opened")
	return &Audio{
		Synth:      synth,
		otoContext: otoContext,
		cfg:        cfg,
	}, nil
}

// Start plays until ctx is cancelled or the engine is stopped.
func (a *Audio) Start(ctx context.Context) error {
	p := a.otoContext.NewPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			logrus.WithError(err).Error("failed to close player")
		}
	}()

	// block until cancel() called
	if _, err := io.CopyBuffer(p, a.Reader(ctx), make([]byte, bufferSizeInBytes(a.cfg))); err != nil {
		return err
	}
	logrus.Info("Start() ended.")
	return nil
}

// Close ...
func (a *Audio) Close() error {
	logrus.Info("Closing Audio...")
	a.Synth.Close()
	return a.otoContext.Close()
}
