package analysis

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/eligwz/spectrogram"

	"github.com/neliav/tapsync/internal/audio"
)

const (
	plotWidth  = 2048
	plotHeight = 512
)

// WriteSpectrogramPlot renders a spectrogram of the trial recording
// as the per-trial diagnostic PNG. FFT with a Hamming window, linear
// magnitude scale.
func WriteSpectrogramPlot(wavPath, pngPath string) error {
	samples, sampleRate, err := audio.ReadWAV(wavPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", wavPath, err)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples in %s", wavPath)
	}

	img := spectrogram.NewImage128(image.Rect(0, 0, plotWidth, plotHeight))
	black := spectrogram.ParseColor("000000")
	draw.Draw(img, img.Bounds(), image.NewUniform(black), image.Point{}, draw.Src)

	spectrogram.Drawfft(
		img,
		samples,
		uint32(sampleRate),
		uint32(plotHeight), // bins
		false,              // use Hamming window
		false,              // FFT, not DFT
		true,               // magnitude
		false,              // linear scale
	)

	if err := spectrogram.SavePng(img, pngPath); err != nil {
		return fmt.Errorf("saving plot %s: %w", pngPath, err)
	}
	return nil
}
