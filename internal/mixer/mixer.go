// Package mixer folds the multi-channel trial capture into the single
// normalized waveform handed to onset analysis.
package mixer

import (
	"errors"
	"fmt"
	"math"
)

// Ear identifies which ear the stimulus was routed to for the current
// stimulus block.
type Ear string

const (
	EarLeft  Ear = "left"
	EarRight Ear = "right"
)

// Opposite returns the other ear. The session flips ears between
// stimulus blocks.
func (e Ear) Opposite() Ear {
	if e == EarLeft {
		return EarRight
	}
	return EarLeft
}

// RawChannelSet is one multi-channel capture: equal-length channels
// sampled simultaneously. Channel 0 is the microphone; channels 1 and
// 2 carry the loopback reference for the left and right routing
// respectively.
type RawChannelSet struct {
	Channels   [][]float64
	SampleRate int
}

// Len returns the per-channel sample count.
func (r RawChannelSet) Len() int {
	if len(r.Channels) == 0 {
		return 0
	}
	return len(r.Channels[0])
}

// Mix combines the microphone channel with the ear-appropriate
// loopback channel into one analysis-ready waveform. The loopback
// lives on channel 1 when the stimulus went to the left ear and
// channel 2 otherwise; the stimulus itself was steered to the
// opposite physical index, so this crossed routing is intentional.
// Both channels are peak-normalized independently, summed, and the
// sum peak-normalized again.
func Mix(capture RawChannelSet, ear Ear) ([]float64, error) {
	if ear != EarLeft && ear != EarRight {
		return nil, fmt.Errorf("mixer: unknown ear %q", ear)
	}

	loopbackIdx := 2
	if ear == EarLeft {
		loopbackIdx = 1
	}
	if len(capture.Channels) <= loopbackIdx {
		return nil, fmt.Errorf("mixer: capture has %d channels, need %d", len(capture.Channels), loopbackIdx+1)
	}

	mic := capture.Channels[0]
	loopback := capture.Channels[loopbackIdx]
	if len(mic) != len(loopback) {
		return nil, errors.New("mixer: channel lengths differ")
	}

	micNorm := Normalize(mic)
	loopNorm := Normalize(loopback)

	combined := make([]float64, len(micNorm))
	for i := range combined {
		combined[i] = micNorm[i] + loopNorm[i]
	}
	return Normalize(combined), nil
}

// Normalize scales x so its absolute peak is 1. A fully silent signal
// is returned unchanged rather than dividing by zero.
func Normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		copy(out, x)
		return out
	}
	for i, v := range x {
		out[i] = v / peak
	}
	return out
}
