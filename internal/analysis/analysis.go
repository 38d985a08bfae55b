// Package analysis defines the onset-alignment analyzer boundary and
// the diagnostic plot written alongside every trial.
package analysis

import (
	"github.com/neliav/tapsync/internal/metrics"
	"github.com/neliav/tapsync/internal/stimulus"
)

// TrialAnalyzer aligns the recorded trial waveform against the known
// stimulus onsets. Its three outputs are authoritative: raw timing
// records, named scalar metrics, and the failure flag. Implementations
// typically wrap an external analysis service; tests substitute fakes
// producing fixture outputs.
type TrialAnalyzer interface {
	Analyze(info stimulus.StimInfo, wavPath, label, plotPath string) (metrics.AnalysisOutput, metrics.AnalysisResult, metrics.FailureInfo, error)
}
