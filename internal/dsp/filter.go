package dsp

import (
	"errors"
	"math"
)

// biquad is a single second-order filter section with normalized
// coefficients (a0 == 1), evaluated in direct form II transposed.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func (s biquad) apply(x []float64) []float64 {
	out := make([]float64, len(x))
	var z1, z2 float64
	for i, v := range x {
		y := s.b0*v + z1
		z1 = s.b1*v - s.a1*y + z2
		z2 = s.b2*v - s.a2*y
		out[i] = y
	}
	return out
}

// HighPass is a Butterworth high-pass filter built as a cascade of
// second-order sections.
type HighPass struct {
	sections []biquad
}

// NewHighPass designs a 4th-order Butterworth high-pass at cutoffHz
// via the bilinear transform. The maximally flat response comes from
// the Butterworth pole pair Qs: 1/(2*cos(pi/8)) and 1/(2*cos(3*pi/8)).
func NewHighPass(cutoffHz float64, sampleRate int) (*HighPass, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	nyquist := float64(sampleRate) / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist {
		return nil, errors.New("cutoff must be between 0 and Nyquist")
	}

	qs := []float64{
		1 / (2 * math.Cos(math.Pi/8)),
		1 / (2 * math.Cos(3*math.Pi/8)),
	}

	w0 := 2 * math.Pi * cutoffHz / float64(sampleRate)
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)

	sections := make([]biquad, 0, len(qs))
	for _, q := range qs {
		alpha := sinW0 / (2 * q)
		a0 := 1 + alpha
		sections = append(sections, biquad{
			b0: (1 + cosW0) / 2 / a0,
			b1: -(1 + cosW0) / a0,
			b2: (1 + cosW0) / 2 / a0,
			a1: -2 * cosW0 / a0,
			a2: (1 - alpha) / a0,
		})
	}
	return &HighPass{sections: sections}, nil
}

// Apply runs the filter forward over x and returns a new slice.
func (f *HighPass) Apply(x []float64) []float64 {
	out := x
	for _, s := range f.sections {
		out = s.apply(out)
	}
	return out
}

// ApplyZeroPhase filters forward, reverses, filters again and
// reverses back, cancelling the filter's phase shift so onset times
// are not displaced.
func (f *HighPass) ApplyZeroPhase(x []float64) []float64 {
	out := f.Apply(x)
	reverse(out)
	out = f.Apply(out)
	reverse(out)
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
