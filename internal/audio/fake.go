package audio

import (
	"context"
	"errors"

	"github.com/neliav/tapsync/internal/mixer"
)

// FakeRecorder satisfies Recorder and Player without touching audio
// hardware. By default it echoes the played stimulus back on every
// captured channel, which is enough for dry runs of the session flow;
// tests can override Response to inject specific captures, or Err to
// simulate a driver failure.
type FakeRecorder struct {
	// Response, when set, produces the capture for a PlayRec call.
	Response func(stereo [2][]float64, sampleRate, captureChannels int) mixer.RawChannelSet
	// Err, when set, is returned from every call.
	Err error

	// Plays counts completed Play calls.
	Plays int
}

func (f *FakeRecorder) PlayRec(ctx context.Context, stereo [2][]float64, sampleRate, captureChannels int) (mixer.RawChannelSet, error) {
	if f.Err != nil {
		return mixer.RawChannelSet{}, f.Err
	}
	if err := ctx.Err(); err != nil {
		return mixer.RawChannelSet{}, err
	}
	if f.Response != nil {
		return f.Response(stereo, sampleRate, captureChannels), nil
	}

	n := len(stereo[0])
	if len(stereo[1]) > n {
		n = len(stereo[1])
	}
	if n == 0 {
		return mixer.RawChannelSet{}, errors.New("fake recorder: empty stimulus")
	}

	channels := make([][]float64, captureChannels)
	for c := range channels {
		ch := make([]float64, n)
		for i := 0; i < n; i++ {
			if i < len(stereo[0]) {
				ch[i] += stereo[0][i]
			}
			if i < len(stereo[1]) {
				ch[i] += stereo[1][i]
			}
		}
		channels[c] = ch
	}
	return mixer.RawChannelSet{Channels: channels, SampleRate: sampleRate}, nil
}

func (f *FakeRecorder) Play(ctx context.Context, stereo [2][]float64, sampleRate int) error {
	if f.Err != nil {
		return f.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Plays++
	return nil
}
