package stimulus

import (
	"math"
	"reflect"
	"testing"

	"github.com/neliav/tapsync/internal/mixer"
)

func TestOnsetsFromIOI(t *testing.T) {
	tests := []struct {
		ioi  []float64
		want []float64
	}{
		{[]float64{0}, []float64{0}},
		{[]float64{0, 520, 520, 260}, []float64{0, 520, 1040, 1300}},
		{[]float64{0, 130, 260, 390}, []float64{0, 130, 390, 780}},
	}
	for _, tt := range tests {
		if got := OnsetsFromIOI(tt.ioi); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("OnsetsFromIOI(%v) = %v, want %v", tt.ioi, got, tt.want)
		}
	}
}

func TestPrepareValidation(t *testing.T) {
	c := NewClickTrain(8000)

	if _, _, err := c.Prepare("r", nil); err == nil {
		t.Error("Expected error for empty pattern")
	}
	if _, _, err := c.Prepare("r", []float64{520, 260}); err == nil {
		t.Error("Expected error for pattern without leading 0")
	}
	bad := &ClickTrain{SampleRate: 0, ClickMs: 30, MarkerIOIMs: 500, TailMs: 1000}
	if _, _, err := bad.Prepare("r", []float64{0, 520}); err == nil {
		t.Error("Expected error for zero sample rate")
	}
}

func TestPrepareTiming(t *testing.T) {
	c := NewClickTrain(8000)
	ioi := []float64{0, 520, 520, 260}

	wave, info, err := c.Prepare("rhythm_1", ioi)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	// rhythm onsets are shifted past the three leading markers
	wantOnsets := []float64{1500, 2020, 2540, 2800}
	if !reflect.DeepEqual(info.OnsetsMs, wantOnsets) {
		t.Errorf("onsets = %v, want %v", info.OnsetsMs, wantOnsets)
	}

	// three markers at each end
	wantMarkers := []float64{0, 500, 1000, 3300, 3800, 4300}
	if !reflect.DeepEqual(info.MarkersMs, wantMarkers) {
		t.Errorf("markers = %v, want %v", info.MarkersMs, wantMarkers)
	}

	// the last marker plus its click and the tail close the waveform
	wantDuration := 4300 + c.ClickMs + c.TailMs
	if info.DurationMs != wantDuration {
		t.Errorf("duration = %g, want %g", info.DurationMs, wantDuration)
	}
	if got := len(wave); got != int(wantDuration/1000*8000) {
		t.Errorf("waveform has %d samples, want %d", got, int(wantDuration/1000*8000))
	}
	if info.Name != "rhythm_1" || info.SampleRate != 8000 {
		t.Errorf("metadata wrong: %+v", info)
	}
}

func TestPrepareWaveformIsNormalized(t *testing.T) {
	c := NewClickTrain(8000)
	wave, _, err := c.Prepare("rhythm_1", []float64{0, 520, 520})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	peak := 0.0
	for _, v := range wave {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if math.Abs(peak-1.0) > 1e-9 {
		t.Errorf("peak = %g, want 1.0", peak)
	}
}

func TestPreparePlacesEnergyAtOnsets(t *testing.T) {
	c := NewClickTrain(8000)
	wave, info, err := c.Prepare("rhythm_1", []float64{0, 520})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	energyAround := func(ms float64) float64 {
		start := int(ms / 1000 * 8000)
		end := start + int(c.ClickMs/1000*8000)
		var sum float64
		for i := start; i < end && i < len(wave); i++ {
			sum += wave[i] * wave[i]
		}
		return sum
	}

	for _, o := range append(append([]float64{}, info.MarkersMs...), info.OnsetsMs...) {
		if energyAround(o) == 0 {
			t.Errorf("no click energy at %g ms", o)
		}
	}
	// silence between the last leading marker's click and the first
	// rhythm onset
	if e := energyAround(1400); e != 0 {
		t.Errorf("unexpected energy in the gap before the rhythm: %g", e)
	}
}

func TestSteerToEar(t *testing.T) {
	wave := []float64{0.1, 0.2, 0.3}

	left := SteerToEar(wave, mixer.EarLeft)
	if !reflect.DeepEqual(left[0], wave) {
		t.Errorf("left steering channel 0 = %v", left[0])
	}
	for i, v := range left[1] {
		if v != 0 {
			t.Errorf("left steering channel 1 sample %d = %g, want 0", i, v)
		}
	}

	right := SteerToEar(wave, mixer.EarRight)
	if !reflect.DeepEqual(right[1], wave) {
		t.Errorf("right steering channel 1 = %v", right[1])
	}
	for i, v := range right[0] {
		if v != 0 {
			t.Errorf("right steering channel 0 sample %d = %g, want 0", i, v)
		}
	}
}

func TestEarCheckTone(t *testing.T) {
	rate := 8000
	tone := EarCheckTone(rate)

	if len(tone) != 3*rate {
		t.Fatalf("tone has %d samples, want %d", len(tone), 3*rate)
	}

	pad := int(0.75 * float64(rate))
	for i := 0; i < pad; i++ {
		if tone[i] != 0 {
			t.Fatalf("leading pad sample %d = %g, want 0", i, tone[i])
		}
	}
	for i := len(tone) - pad; i < len(tone); i++ {
		if tone[i] != 0 {
			t.Fatalf("trailing pad sample %d = %g, want 0", i, tone[i])
		}
	}

	var energy float64
	for i := pad; i < len(tone)-pad; i++ {
		energy += tone[i] * tone[i]
	}
	// a full-scale sine carries half-scale mean square power
	meanSquare := energy / float64(len(tone)-2*pad)
	if math.Abs(meanSquare-0.5) > 0.01 {
		t.Errorf("tone mean square = %g, want 0.5", meanSquare)
	}
}
