package control

import "math"

// OnePole is a first-order low-pass filter parameterised by cutoff frequency
// and sampling rate. Channels carry one per configuration even though the
// force path does not currently filter commands, mirroring the reference
// control model.
type OnePole struct {
	a0, b1 float64
	y      float64
}

// NewOnePole returns a one-pole filter with the given cutoff frequency and
// sampling rate in Hz. Non-positive parameters yield a pass-through filter.
func NewOnePole(cutoff, sampleRate float64) OnePole {
	if cutoff <= 0 || sampleRate <= 0 {
		return OnePole{a0: 1}
	}
	b1 := math.Exp(-2 * math.Pi * cutoff / sampleRate)
	return OnePole{a0: 1 - b1, b1: b1}
}

// Process feeds one sample through the filter and returns the filtered value.
func (f *OnePole) Process(x float64) float64 {
	f.y = f.a0*x + f.b1*f.y
	return f.y
}

// Value returns the current filter output without advancing it.
func (f *OnePole) Value() float64 { return f.y }
