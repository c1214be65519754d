package control

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// LowPass2p is a second-order butterworth low-pass filter over a 3-vector,
// used on the corrected body rates feeding the derivative term. The
// scheduler retunes the cutoff in place when its measured loop rate
// changes; retuning keeps the delay elements so the output stays
// continuous mid-stream. A hard Reset only happens when the cutoff
// parameter itself changes.
type LowPass2p struct {
	cutoff float64
	sample float64

	b0, b1, b2 float64
	a1, a2     float64

	d1, d2 r3.Vec
}

// NewLowPass2p returns a filter tuned for the given sample and cutoff
// frequencies in Hz. A cutoff <= 0 disables filtering; Apply then passes
// input through unchanged.
func NewLowPass2p(sampleFreq, cutoffFreq float64) *LowPass2p {
	f := &LowPass2p{}
	f.SetCutoff(sampleFreq, cutoffFreq)
	return f
}

// SetCutoff recomputes the filter coefficients for a new sample/cutoff
// frequency pair without touching the delay elements.
func (f *LowPass2p) SetCutoff(sampleFreq, cutoffFreq float64) {
	f.cutoff = cutoffFreq
	f.sample = sampleFreq
	if cutoffFreq <= 0 {
		return
	}

	fr := sampleFreq / cutoffFreq
	ohm := math.Tan(math.Pi / fr)
	c := 1.0 + 2.0*math.Cos(math.Pi/4.0)*ohm + ohm*ohm

	f.b0 = ohm * ohm / c
	f.b1 = 2.0 * f.b0
	f.b2 = f.b0
	f.a1 = 2.0 * (ohm*ohm - 1.0) / c
	f.a2 = (1.0 - 2.0*math.Cos(math.Pi/4.0)*ohm + ohm*ohm) / c
}

// Cutoff returns the configured cutoff frequency in Hz.
func (f *LowPass2p) Cutoff() float64 { return f.cutoff }

// Apply filters one sample.
func (f *LowPass2p) Apply(v r3.Vec) r3.Vec {
	if f.cutoff <= 0 {
		return v
	}

	delay := r3.Sub(v, r3.Add(r3.Scale(f.a1, f.d1), r3.Scale(f.a2, f.d2)))
	out := r3.Add(r3.Scale(f.b0, delay), r3.Add(r3.Scale(f.b1, f.d1), r3.Scale(f.b2, f.d2)))

	f.d2 = f.d1
	f.d1 = delay
	return out
}

// Reset seeds the delay elements so the filter output equals v at steady
// state, avoiding a startup transient.
func (f *LowPass2p) Reset(v r3.Vec) {
	denom := f.b0 + f.b1 + f.b2
	if denom == 0 {
		f.d1 = v
		f.d2 = v
		return
	}
	dval := r3.Scale(1.0/denom, v)
	f.d1 = dval
	f.d2 = dval
}
