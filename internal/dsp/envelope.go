package dsp

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Envelope returns the analytic-signal envelope of x: the magnitude
// of the Hilbert transform, computed in the frequency domain by
// zeroing negative frequencies and doubling positive ones.
func Envelope(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	spectrum := fft.FFTReal(x)

	analytic := make([]complex128, n)
	analytic[0] = spectrum[0]
	if n%2 == 0 {
		for i := 1; i < n/2; i++ {
			analytic[i] = 2 * spectrum[i]
		}
		analytic[n/2] = spectrum[n/2]
	} else {
		for i := 1; i <= (n-1)/2; i++ {
			analytic[i] = 2 * spectrum[i]
		}
	}

	signal := fft.IFFT(analytic)
	env := make([]float64, n)
	for i, c := range signal {
		env[i] = cmplx.Abs(c)
	}
	return env
}

// Smooth applies a centered moving average of the given window length
// with zero-padded edges, matching numpy convolve "same" alignment:
// each output sample averages window inputs around it, with the
// divisor held at the full window length near the edges.
func Smooth(x []float64, window int) []float64 {
	n := len(x)
	if window <= 1 || n == 0 {
		out := make([]float64, n)
		copy(out, x)
		return out
	}

	half := (window - 1) / 2
	lead := window - 1 - half

	out := make([]float64, n)
	inv := 1 / float64(window)
	for i := range out {
		lo := i - lead
		hi := i + half
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		var sum float64
		for j := lo; j <= hi; j++ {
			sum += x[j]
		}
		out[i] = sum * inv
	}
	return out
}
