// Package tapdetect decides whether a finger tap is present in a
// short calibration recording. It is used by the ear-orientation
// check before the tapping trials begin.
package tapdetect

import (
	"errors"

	"github.com/neliav/tapsync/internal/dsp"
)

// ErrInvalidInput is returned for an empty recording or a
// non-positive sample rate.
var ErrInvalidInput = errors.New("tapdetect: empty signal or invalid sample rate")

const (
	highPassCutoffHz = 30.0
	minPeakHeight    = 0.01
	// beatTime is where the test tone nominally starts within the
	// calibration recording. The validity window below is anchored on
	// it with fixed offsets and does not adapt to longer or
	// differently padded recordings; keep it literal.
	beatTime = 0.5
)

// Detect reports whether at least one tap-like transient occurs in
// the recording. The pipeline is fixed: 30 Hz 4th-order Butterworth
// high-pass applied zero-phase, Hilbert envelope, 50 ms moving
// average, then peak picking with a 50 ms refractory distance and a
// 0.01 height floor. A peak counts only if it falls strictly inside
// (0, 3s) in samples.
func Detect(samples []float64, sampleRate int) (bool, error) {
	if len(samples) == 0 || sampleRate <= 0 {
		return false, ErrInvalidInput
	}

	hp, err := dsp.NewHighPass(highPassCutoffHz, sampleRate)
	if err != nil {
		return false, err
	}
	filtered := hp.ApplyZeroPhase(samples)

	envelope := dsp.Envelope(filtered)

	window := int(0.05 * float64(sampleRate))
	smoothed := dsp.Smooth(envelope, window)

	peaks := dsp.FindPeaks(smoothed, dsp.PeakOptions{
		MinHeight:   minPeakHeight,
		MinDistance: window,
	})

	lo := int((beatTime - 0.5) * float64(sampleRate))
	hi := int((beatTime + 2.5) * float64(sampleRate))
	for _, p := range peaks {
		if p > lo && p < hi {
			return true, nil
		}
	}
	return false, nil
}
