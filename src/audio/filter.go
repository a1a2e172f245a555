package audio

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
)

// ----- Biquad Lowpass ----- //

// lowpass is a resonant second-order lowpass in direct form I. Coefficients
// are only recomputed when cutoff or resonance actually change, and history
// is kept across changes so the signal stays continuous.
type lowpass struct {
	sampleRate     float64
	a0, a1, a2     float64
	b1, b2         float64
	x1, x2         float64
	y1, y2         float64
	cutoff         float64
	resonance      float64
	hasCoefficient bool
}

func newLowpass(sampleRate float64) *lowpass {
	f := &lowpass{sampleRate: sampleRate}
	f.setParams(MaxCutoff, 0)
	return f
}

func (f *lowpass) setParams(cutoff float64, resonance float64) {
	cutoff = clamp(cutoff, MinCutoff, math.Min(MaxCutoff, f.sampleRate*0.49))
	resonance = clamp(resonance, 0, MaxResonance)
	if f.hasCoefficient && cutoff == f.cutoff && resonance == f.resonance {
		return
	}
	f.a0, f.a1, f.a2, f.b1, f.b2 = makeLowpassH(cutoff/f.sampleRate, resonance)
	f.cutoff = cutoff
	f.resonance = resonance
	f.hasCoefficient = true
}

// makeLowpassH follows RBJ's cookbook lowpass with Q derived from resonance.
// fc is normalized by the sample rate.
func makeLowpassH(fc float64, resonance float64) (a0, a1, a2, b1, b2 float64) {
	q := 0.5 / (1 - resonance)
	w0 := 2 * math.Pi * fc
	alpha := math.Sin(w0) / (2 * q)
	cos := math.Cos(w0)
	norm := 1 / (1 + alpha)
	a0 = (1 - cos) * 0.5 * norm
	a1 = (1 - cos) * norm
	a2 = a0
	b1 = -2 * cos * norm
	b2 = (1 - alpha) * norm
	return
}

func (f *lowpass) process(x float64) float64 {
	y := f.a0*x + f.a1*f.x1 + f.a2*f.x2 - f.b1*f.y1 - f.b2*f.y2
	f.x2 = f.x1
	f.x1 = x
	f.y2 = f.y1
	f.y1 = y
	return y
}

func (f *lowpass) reset() {
	f.x1, f.x2 = 0, 0
	f.y1, f.y2 = 0, 0
}

// coefficients maps the section onto algo-dsp's a0-normalized convention.
func (f *lowpass) coefficients() biquad.Coefficients {
	return biquad.Coefficients{B0: f.a0, B1: f.a1, B2: f.a2, A1: f.b1, A2: f.b2}
}

// ----- Filter Shape ----- //

// FilterShape returns the magnitude response in dB at points log-spaced
// frequencies between MinCutoff and MaxCutoff.
func FilterShape(sampleRate int, cutoff float64, resonance float64, points int) []float64 {
	if points < 2 {
		points = 2
	}
	f := newLowpass(float64(sampleRate))
	f.setParams(cutoff, resonance)
	c := f.coefficients()
	shape := make([]float64, points)
	ratio := math.Log(MaxCutoff / MinCutoff)
	nyquist := float64(sampleRate) / 2
	for i := range shape {
		freq := MinCutoff * math.Exp(ratio*float64(i)/float64(points-1))
		if freq >= nyquist {
			freq = nyquist * 0.999
		}
		shape[i] = c.MagnitudeDB(freq, float64(sampleRate))
	}
	return shape
}
