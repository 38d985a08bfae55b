package analysis

import (
	"github.com/neliav/tapsync/internal/metrics"
	"github.com/neliav/tapsync/internal/stimulus"
)

// FixtureAnalyzer is the built-in TrialAnalyzer for dry runs without
// the external analysis service: it reports every scheduled onset as
// detected and perfectly aligned, with zero asynchrony. Useful for
// rehearsing the operator flow and validating the output layout; not
// for real data collection.
type FixtureAnalyzer struct{}

func (FixtureAnalyzer) Analyze(info stimulus.StimInfo, wavPath, label, plotPath string) (metrics.AnalysisOutput, metrics.AnalysisResult, metrics.FailureInfo, error) {
	onsets := metrics.Series(append([]float64(nil), info.OnsetsMs...))
	ioi := make(metrics.Series, 0, len(onsets))
	for i := 1; i < len(onsets); i++ {
		ioi = append(ioi, onsets[i]-onsets[i-1])
	}

	output := metrics.AnalysisOutput{
		StimOnsetsInput:    onsets,
		StimOnsetsDetected: onsets,
		StimOnsetsAligned:  onsets,
		RespOnsetsDetected: onsets,
		RespOnsetsAligned:  onsets,
		StimIOI:            ioi,
		RespIOI:            ioi,
	}

	markers := float64(len(info.MarkersMs))
	result := metrics.AnalysisResult{
		"mean_async_all":                     0,
		"sd_async_all":                       0,
		"ratio_resp_to_stim":                 100,
		"percent_resp_aligned_all":           100,
		"num_markers_onsets":                 markers,
		"num_markers_detected":               markers,
		"markers_status":                     1,
		"markers_max_difference":             0,
		"percent_of_bad_taps_all":            0,
		"mean_async_played":                  0,
		"sd_async_played":                    0,
		"percent_response_aligned_played":    100,
		"mean_async_notplayed":               0,
		"sd_async_notplayed":                 0,
		"percent_response_aligned_notplayed": 100,
	}

	if err := WriteSpectrogramPlot(wavPath, plotPath); err != nil {
		return metrics.AnalysisOutput{}, nil, metrics.FailureInfo{}, err
	}

	return output, result, metrics.FailureInfo{}, nil
}
