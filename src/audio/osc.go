package audio

import "math"

const twoPi = 2.0 * math.Pi

// ----- OSC ----- //

// osc is a mono waveform generator whose phase survives across blocks.
type osc struct {
	sampleRate float64
	phase      float64 // [0, 2π)
}

func newOsc(sampleRate float64) *osc {
	return &osc{sampleRate: sampleRate}
}

// generate fills out with len(out) samples at freq.
//
// The phase wraps by a single subtraction per sample, never by modulo. A
// negative freq walks the phase below zero without wrapping; every waveform
// stays within ±0.5 regardless.
func (o *osc) generate(out []float64, freq float64, kind Waveform) {
	step := twoPi * freq / o.sampleRate
	for i := range out {
		out[i] = waveAtPhase(kind, o.phase)
		o.phase += step
		if o.phase >= twoPi {
			o.phase -= twoPi
		}
	}
}

func waveAtPhase(kind Waveform, phase float64) float64 {
	switch kind {
	case WaveSquare:
		if phase < math.Pi {
			return 0.5
		}
		return -0.5
	case WaveSaw:
		value := 2*(phase/twoPi) - 1
		if value > 0.5 {
			value = 0.5
		}
		if value < -0.5 {
			value = -0.5
		}
		return value
	default:
		return math.Cos(phase) * 0.5
	}
}
