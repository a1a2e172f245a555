package audio

import (
	dspdelay "github.com/cwbudde/algo-dsp/dsp/delay"
)

// ----- Delay ----- //

const delayCapacitySeconds = 2.0

// delay is a feedback-free echo over a fixed circular buffer. Changing the
// length moves the read position without interpolation, so a jump can click.
type delay struct {
	sampleRate   float64
	line         *dspdelay.Line // capacity: 2s + 1 sample
	delaySamples int
	mix          float64 // [0,1]
	lastTime     float64
	lastMix      float64
	hasParams    bool
}

func newDelay(sampleRate float64) *delay {
	line, err := dspdelay.New(int(sampleRate*delayCapacitySeconds) + 1)
	if err != nil {
		// sampleRate is validated by Config
		panic(err)
	}
	return &delay{
		sampleRate: sampleRate,
		line:       line,
		mix:        0.5,
	}
}

func (d *delay) capacity() int {
	return d.line.Len()
}

func (d *delay) setParams(seconds float64, mix float64) {
	if d.hasParams && seconds == d.lastTime && mix == d.lastMix {
		return
	}
	d.lastTime = seconds
	d.lastMix = mix
	d.hasParams = true

	d.mix = clamp(mix, 0, 1)
	seconds = clamp(seconds, 0, float64(d.capacity())/d.sampleRate)
	length := int(seconds * d.sampleRate)
	if length >= d.capacity() {
		length = d.capacity() - 1
	}
	d.delaySamples = length
}

func (d *delay) reset() {
	d.line.Reset()
}

// process reads before writing, so a zero length returns the sample written
// one full capacity ago.
func (d *delay) process(in float64) float64 {
	delayed := d.line.Read(d.delaySamples)
	d.line.Write(in)
	return in*(1-d.mix) + delayed*d.mix
}
