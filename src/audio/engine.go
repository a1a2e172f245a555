package audio

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	dsptime "github.com/cwbudde/algo-dsp/stats/time"
)

const (
	DefaultSampleRate     = 44100
	DefaultFramesPerBlock = 256
	channelNum            = 2
	baseFreq              = 220.0 // note 0
)

// ErrInvalidConfig is returned for a non-positive sample rate or block size.
var ErrInvalidConfig = errors.New("invalid audio config")

// Config fixes the stream format for the lifetime of an engine.
type Config struct {
	SampleRate     int
	FramesPerBlock int
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{SampleRate: DefaultSampleRate, FramesPerBlock: DefaultFramesPerBlock}
}

// Validate ...
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	if c.FramesPerBlock <= 0 {
		return fmt.Errorf("%w: frames per block %d", ErrInvalidConfig, c.FramesPerBlock)
	}
	return nil
}

func noteToFreq(note int) float64 {
	return baseFreq * math.Pow(2, float64(note)/12)
}

// ----- Engine ----- //

// Engine renders interleaved stereo blocks from Params. Process is meant to be
// called from the audio driver only: it reads Params without locking and owns
// every piece of DSP state.
type Engine struct {
	params         *Params
	sampleRate     float64
	framesPerBlock int

	osc1    *osc
	osc2    *osc
	env     *envelope
	filterL *lowpass
	filterR *lowpass
	delayL  *delay
	delayR  *delay

	buf1  []float64 // length: framesPerBlock
	buf2  []float64
	mix   []float64
	meter []float64

	// last seen values, so unchanged parameters cost nothing per block
	lastNote      int
	lastFreq      float64
	lastAttack    float64
	lastRelease   float64
	lastCutoff    float64
	lastResonance float64
	lastDelayTime float64
	lastDelayMix  float64

	level   atomicFloat
	stopped atomic.Bool
}

// NewEngine ...
func NewEngine(params *Params, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sampleRate := float64(cfg.SampleRate)
	e := &Engine{
		params:         params,
		sampleRate:     sampleRate,
		framesPerBlock: cfg.FramesPerBlock,
		osc1:           newOsc(sampleRate),
		osc2:           newOsc(sampleRate),
		env:            newEnvelope(sampleRate),
		filterL:        newLowpass(sampleRate),
		filterR:        newLowpass(sampleRate),
		delayL:         newDelay(sampleRate),
		delayR:         newDelay(sampleRate),
		buf1:           make([]float64, cfg.FramesPerBlock),
		buf2:           make([]float64, cfg.FramesPerBlock),
		mix:            make([]float64, cfg.FramesPerBlock),
		meter:          make([]float64, cfg.FramesPerBlock),
		lastNote:       NoNote,
		lastFreq:       0,
		lastAttack:     -1,
		lastRelease:    -1,
		lastCutoff:     -1,
		lastResonance:  -1,
		lastDelayTime:  -1,
		lastDelayMix:   -1,
	}
	e.delayL.reset()
	e.delayR.reset()
	return e, nil
}

// Process fills out with len(out)/2 interleaved stereo frames. It returns
// false once Stop has been called.
func (e *Engine) Process(out []float32) bool {
	for len(out) >= channelNum {
		frames := len(out) / channelNum
		if frames > e.framesPerBlock {
			frames = e.framesPerBlock
		}
		e.processBlock(out[:frames*channelNum], frames)
		out = out[frames*channelNum:]
	}
	return !e.stopped.Load()
}

func (e *Engine) processBlock(out []float32, frames int) {
	s := e.params.Snapshot()

	numOsc := 0
	if s.Osc1Enabled {
		numOsc++
	}
	if s.Osc2Enabled {
		numOsc++
	}
	if numOsc == 0 {
		for i := range out {
			out[i] = 0
		}
		e.level.Store(0)
		return
	}

	if s.CurrentNote != e.lastNote {
		if s.CurrentNote != NoNote {
			e.lastFreq = noteToFreq(s.CurrentNote)
		}
		e.lastNote = s.CurrentNote
	}
	freq1 := e.lastFreq + s.Osc1FreqOffset
	freq2 := e.lastFreq

	if s.FilterCutoff != e.lastCutoff || s.FilterResonance != e.lastResonance {
		e.filterL.setParams(s.FilterCutoff, s.FilterResonance)
		e.filterR.setParams(s.FilterCutoff, s.FilterResonance)
		e.lastCutoff = s.FilterCutoff
		e.lastResonance = s.FilterResonance
	}
	if s.DelayTime != e.lastDelayTime || s.DelayMix != e.lastDelayMix {
		e.delayL.setParams(s.DelayTime, s.DelayMix)
		e.delayR.setParams(s.DelayTime, s.DelayMix)
		e.lastDelayTime = s.DelayTime
		e.lastDelayMix = s.DelayMix
	}
	if s.Attack != e.lastAttack || s.Release != e.lastRelease {
		e.env.setTimes(s.Attack, s.Release)
		e.lastAttack = s.Attack
		e.lastRelease = s.Release
	}

	buf1 := e.buf1[:frames]
	buf2 := e.buf2[:frames]
	mix := e.mix[:frames]
	if s.Osc1Enabled {
		e.osc1.generate(buf1, freq1, s.Osc1Waveform)
	} else {
		zero(buf1)
	}
	if s.Osc2Enabled {
		e.osc2.generate(buf2, freq2, s.Osc2Waveform)
	} else {
		zero(buf2)
	}
	for i := range mix {
		mix[i] = buf1[i] + buf2[i]
	}

	e.env.process(mix, s.Gate())

	gain := 1.0 / float64(numOsc)
	meter := e.meter[:frames]
	for i := 0; i < frames; i++ {
		sample := mix[i] * gain
		left := e.delayL.process(e.filterL.process(sample))
		right := e.delayR.process(e.filterR.process(sample))
		out[channelNum*i] = float32(left)
		out[channelNum*i+1] = float32(right)
		meter[i] = left
	}
	e.level.Store(dsptime.Peak(meter))
}

// Level returns the peak output of the most recent block.
func (e *Engine) Level() float64 {
	return e.level.Load()
}

// Stop makes every following Process call report the stop status.
func (e *Engine) Stop() {
	e.stopped.Store(true)
}

// SampleRate ...
func (e *Engine) SampleRate() int {
	return int(e.sampleRate)
}

// FramesPerBlock ...
func (e *Engine) FramesPerBlock() int {
	return e.framesPerBlock
}

func zero(buf []float64) {
	for i := range buf {
		buf[i] = 0
	}
}
