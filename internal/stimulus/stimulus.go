// Package stimulus prepares rhythm waveforms from inter-onset
// interval patterns and steers them to a single ear for presentation.
package stimulus

import (
	"errors"
	"math"

	"github.com/neliav/tapsync/internal/mixer"
)

// StimInfo carries the timing metadata the onset analyzer needs to
// align a recorded trial against the presented stimulus.
type StimInfo struct {
	Name        string    `json:"name"`
	OnsetsMs    []float64 `json:"onsets_ms"`
	MarkersMs   []float64 `json:"markers_ms"`
	DurationMs  float64   `json:"duration_ms"`
	SampleRate  int       `json:"sample_rate"`
}

// Preparer turns a named IOI pattern into a playable waveform plus
// its timing metadata. Implementations may delegate to an external
// stimulus-generation service.
type Preparer interface {
	Prepare(name string, ioiMs []float64) ([]float64, StimInfo, error)
}

// OnsetsFromIOI converts an inter-onset-interval sequence (leading 0)
// into cumulative onset times, both in milliseconds.
func OnsetsFromIOI(ioiMs []float64) []float64 {
	onsets := make([]float64, len(ioiMs))
	var t float64
	for i, ioi := range ioiMs {
		t += ioi
		onsets[i] = t
	}
	return onsets
}

// ClickTrain is the built-in Preparer: a train of short decaying sine
// clicks at the rhythm onsets, framed by three marker beats at each
// end. Markers use a lower pitch so participants can tell them from
// the rhythm.
type ClickTrain struct {
	SampleRate int

	// ClickMs is the duration of each click burst.
	ClickMs float64
	// MarkerIOIMs is the spacing of the three leading and trailing
	// marker beats.
	MarkerIOIMs float64
	// TailMs is silence appended after the last marker so the
	// recording captures late taps.
	TailMs float64
}

const (
	clickFreqHz  = 1000.0
	markerFreqHz = 500.0
	markerCount  = 3
)

// NewClickTrain returns a ClickTrain with the protocol defaults at
// the given sample rate.
func NewClickTrain(sampleRate int) *ClickTrain {
	return &ClickTrain{
		SampleRate:  sampleRate,
		ClickMs:     30,
		MarkerIOIMs: 500,
		TailMs:      1000,
	}
}

// Prepare synthesizes the waveform for one rhythm. The rhythm onsets
// are shifted past the leading markers; trailing markers follow the
// last rhythm onset.
func (c *ClickTrain) Prepare(name string, ioiMs []float64) ([]float64, StimInfo, error) {
	if c.SampleRate <= 0 {
		return nil, StimInfo{}, errors.New("stimulus: sample rate must be positive")
	}
	if len(ioiMs) == 0 {
		return nil, StimInfo{}, errors.New("stimulus: empty IOI pattern")
	}
	if ioiMs[0] != 0 {
		return nil, StimInfo{}, errors.New("stimulus: IOI pattern must start with 0")
	}

	leadMs := float64(markerCount) * c.MarkerIOIMs
	rhythmOnsets := OnsetsFromIOI(ioiMs)

	var markers []float64
	for i := 0; i < markerCount; i++ {
		markers = append(markers, float64(i)*c.MarkerIOIMs)
	}
	onsets := make([]float64, len(rhythmOnsets))
	for i, o := range rhythmOnsets {
		onsets[i] = leadMs + o
	}
	lastOnset := onsets[len(onsets)-1]
	for i := 1; i <= markerCount; i++ {
		markers = append(markers, lastOnset+float64(i)*c.MarkerIOIMs)
	}

	durationMs := markers[len(markers)-1] + c.ClickMs + c.TailMs
	wave := make([]float64, int(durationMs/1000*float64(c.SampleRate)))

	for _, m := range markers {
		c.addClick(wave, m, markerFreqHz)
	}
	for _, o := range onsets {
		c.addClick(wave, o, clickFreqHz)
	}

	info := StimInfo{
		Name:       name,
		OnsetsMs:   onsets,
		MarkersMs:  markers,
		DurationMs: durationMs,
		SampleRate: c.SampleRate,
	}
	return mixer.Normalize(wave), info, nil
}

// addClick mixes a decaying sine burst into wave at the given onset.
func (c *ClickTrain) addClick(wave []float64, onsetMs, freqHz float64) {
	fs := float64(c.SampleRate)
	start := int(onsetMs / 1000 * fs)
	length := int(c.ClickMs / 1000 * fs)
	for i := 0; i < length && start+i < len(wave); i++ {
		t := float64(i) / fs
		decay := 1 - float64(i)/float64(length)
		wave[start+i] += math.Sin(2*math.Pi*freqHz*t) * decay
	}
}

// SteerToEar places a mono waveform on a single stereo channel. The
// other channel stays silent so the stimulus reaches one ear only.
func SteerToEar(wave []float64, ear mixer.Ear) [2][]float64 {
	silent := make([]float64, len(wave))
	if ear == mixer.EarLeft {
		return [2][]float64{wave, silent}
	}
	return [2][]float64{silent, wave}
}

// EarCheckTone builds the calibration sound for the ear-orientation
// check: 0.75 s of silence, a 1.5 s 440 Hz tone, 0.75 s of silence.
func EarCheckTone(sampleRate int) []float64 {
	fs := float64(sampleRate)
	pad := int(0.75 * fs)
	toneLen := int(1.5 * fs)

	out := make([]float64, pad+toneLen+pad)
	for i := 0; i < toneLen; i++ {
		t := float64(i) / fs
		out[pad+i] = math.Sin(2 * math.Pi * 440 * t)
	}
	return out
}
