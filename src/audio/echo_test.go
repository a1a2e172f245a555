package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDelayCapacity(t *testing.T) {
	d := newDelay(44100)
	assert.Equal(t, 2*44100+1, d.capacity())
	assert.Equal(t, 0.5, d.mix)
}

func TestDelayDry(t *testing.T) {
	d := newDelay(1000)
	d.setParams(0.01, 0)
	for i := 0; i < 100; i++ {
		in := float64(i + 1)
		assert.Equal(t, in, d.process(in))
	}
}

func TestDelayWet(t *testing.T) {
	d := newDelay(1000)
	d.setParams(0.05, 1)
	delaySamples := d.delaySamples
	assert.Equal(t, 50, delaySamples)

	for i := 0; i < 200; i++ {
		out := d.process(float64(i + 1))
		if i < delaySamples {
			assert.Equal(t, 0.0, out, "sample %d", i)
		} else {
			assert.Equal(t, float64(i+1-delaySamples), out, "sample %d", i)
		}
	}
}

func TestDelayHalfMix(t *testing.T) {
	d := newDelay(1000)
	d.setParams(0.001, 0.5)
	assert.Equal(t, 0.5, d.process(1))
	assert.Equal(t, 0.5, d.process(0))
	assert.Equal(t, 0.0, d.process(0))
}

func TestDelayClampsParams(t *testing.T) {
	d := newDelay(1000)
	d.setParams(10, 0.5)
	assert.Equal(t, d.capacity()-1, d.delaySamples)
	for i := 0; i < 3*d.capacity(); i++ {
		d.process(1)
	}

	d.setParams(-1, 2)
	assert.Equal(t, 0, d.delaySamples)
	assert.Equal(t, 1.0, d.mix)
}

func TestDelayLazyUpdate(t *testing.T) {
	d := newDelay(1000)
	d.setParams(0.1, 0.5)
	d.delaySamples = 7
	d.setParams(0.1, 0.5)
	assert.Equal(t, 7, d.delaySamples)

	d.setParams(0.2, 0.5)
	assert.Equal(t, 200, d.delaySamples)
}

func TestDelayReset(t *testing.T) {
	d := newDelay(1000)
	d.setParams(0.01, 1)
	for i := 0; i < 20; i++ {
		d.process(1)
	}
	d.reset()
	for i := 0; i < d.capacity(); i++ {
		assert.Equal(t, 0.0, d.line.Read(i))
	}
	assert.Equal(t, 0.0, d.process(1))
}
