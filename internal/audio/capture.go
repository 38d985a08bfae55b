package audio

import (
	"context"
	"strings"

	"github.com/neliav/tapsync/internal/experr"
	"github.com/neliav/tapsync/internal/mixer"
)

// Device describes one audio endpoint reported by the host.
type Device struct {
	ID         int
	Name       string
	MaxInputs  int
	MaxOutputs int
}

// Selection is the resolved device triple the experiment needs: the
// loopback driver carrying the stimulus back as a reference, the
// microphone picking up taps, and the playback output.
type Selection struct {
	Loopback Device
	Input    Device
	Output   Device
}

// SelectDevices scans the host device list for the required endpoints
// by name: a loopback driver ("blackhole"), an input named
// "experiment input" and an output named "experiment output". Any
// missing endpoint is a SetupError, fatal before any participant data
// exists.
func SelectDevices(devices []Device) (Selection, error) {
	var sel Selection
	foundLoopback, foundInput, foundOutput := false, false, false

	for _, d := range devices {
		name := strings.ToLower(d.Name)
		switch {
		case strings.Contains(name, "blackhole"):
			sel.Loopback = d
			foundLoopback = true
		case d.MaxInputs > 0 && strings.Contains(name, "experiment input"):
			sel.Input = d
			foundInput = true
		case d.MaxOutputs > 0 && strings.Contains(name, "experiment output"):
			sel.Output = d
			foundOutput = true
		}
	}

	if !foundLoopback {
		return Selection{}, &experr.SetupError{Missing: "BlackHole loopback device"}
	}
	if !foundInput {
		return Selection{}, &experr.SetupError{Missing: "experiment input device"}
	}
	if !foundOutput {
		return Selection{}, &experr.SetupError{Missing: "experiment output device"}
	}
	return sel, nil
}

// Recorder performs the blocking play-and-record step: it plays the
// stereo stimulus and simultaneously captures the given number of
// input channels for the stimulus duration, returning only once the
// capture completes.
type Recorder interface {
	PlayRec(ctx context.Context, stereo [2][]float64, sampleRate, captureChannels int) (mixer.RawChannelSet, error)
}

// Player plays a stereo buffer to completion.
type Player interface {
	Play(ctx context.Context, stereo [2][]float64, sampleRate int) error
}
