// Package audio provides WAV persistence for trial recordings and
// the capability interfaces for the play-and-record hardware step.
package audio

import (
	"errors"
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV writes a mono float64 waveform in [-1,1] as a 16-bit PCM
// WAV file. Returns the number of bytes written to disk.
func WriteWAV(path string, samples []float64, sampleRate int) (int64, error) {
	if len(samples) == 0 {
		return 0, errors.New("audio: refusing to write empty waveform")
	}
	if sampleRate <= 0 {
		return 0, errors.New("audio: sample rate must be positive")
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	data := make([]int, len(samples))
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * 32767)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		f.Close()
		return 0, fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return 0, fmt.Errorf("closing wav encoder: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// ReadWAV reads a PCM WAV file as mono float64 samples normalized to
// [-1,1], averaging channels if the file is not mono, and returns the
// sample rate.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("audio: %s is not a valid WAV file", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("reading pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels == 0 {
		return nil, 0, errors.New("audio: missing format information")
	}

	scale := 1.0 / float64(int(1)<<(uint(dec.BitDepth)-1))
	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]) * scale
		}
		out[i] = sum / float64(channels)
	}
	return out, buf.Format.SampleRate, nil
}
