// Package metrics derives the per-trial metric record from the onset
// analyzer's output and republishes its scalar results in one stable
// schema.
package metrics

import (
	"bytes"
	"encoding/json"
	"math"
)

// Series is an onset or interval sequence in milliseconds. A NaN
// entry marks a missing event (no corresponding onset was found).
// NaN round-trips through JSON as null, since encoding/json rejects
// NaN literals.
type Series []float64

// MarshalJSON writes NaN entries as null.
func (s Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v) {
			buf.WriteString("null")
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads null entries back as NaN.
func (s *Series) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*s = out
	return nil
}

// CountPresent returns the number of non-missing entries.
func (s Series) CountPresent() int {
	n := 0
	for _, v := range s {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Mean returns the arithmetic mean of the non-missing entries, or NaN
// when every entry is missing. Missing values propagate rather than
// erroring.
func (s Series) Mean() float64 {
	var sum float64
	n := 0
	for _, v := range s {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// AnalysisOutput is the raw timing output of the onset analyzer.
// stim_onsets_input and stim_onsets_aligned are index-aligned, as are
// the two response series.
type AnalysisOutput struct {
	StimOnsetsInput    Series `json:"stim_onsets_input"`
	StimOnsetsDetected Series `json:"stim_onsets_detected"`
	StimOnsetsAligned  Series `json:"stim_onsets_aligned"`
	RespOnsetsDetected Series `json:"resp_onsets_detected"`
	RespOnsetsAligned  Series `json:"resp_onsets_aligned"`
	StimIOI            Series `json:"stim_ioi"`
	RespIOI            Series `json:"resp_ioi"`
}

// AnalysisResult is the analyzer's flat map of named scalar metrics.
// It is authoritative: values are republished, never recomputed.
type AnalysisResult map[string]float64

// FailureInfo says whether the analyzer flagged the trial unusable.
type FailureInfo struct {
	Failed bool   `json:"failed"`
	Reason string `json:"reason"`
}

// TrialMetricRecord is the durable per-trial unit appended to the
// participant ledger. Field order here fixes the ledger column order;
// do not reorder.
type TrialMetricRecord struct {
	TrialNumber    int    `json:"trial_number"`
	StimulusNumber int    `json:"stimulus_number"`
	Allocation     string `json:"allocation"`
	TrialFailed    bool   `json:"trial_failed"`
	FailureReason  string `json:"failure_reason"`

	TotalStimuli     int `json:"total_stimuli"`
	DetectedStimuli  int `json:"detected_stimuli"`
	TotalResponses   int `json:"total_responses"`
	AlignedResponses int `json:"aligned_responses"`

	MeanAsynchrony          float64 `json:"mean_asynchrony"`
	SDAsynchrony            float64 `json:"sd_asynchrony"`
	PercentResponses        float64 `json:"percent_responses"`
	PercentResponsesAligned float64 `json:"percent_responses_aligned"`

	MeanStimulusIOI float64 `json:"mean_stimulus_ioi"`
	MeanResponseIOI float64 `json:"mean_response_ioi"`

	NumMarkers          float64 `json:"num_markers"`
	DetectedMarkers     float64 `json:"detected_markers"`
	MarkerDetectionRate float64 `json:"marker_detection_rate"`
	MaxMarkerError      float64 `json:"max_marker_error"`

	PercentBadTaps float64 `json:"percent_bad_taps"`

	MeanAsyncPlayed       float64 `json:"mean_async_played"`
	SDAsyncPlayed         float64 `json:"sd_async_played"`
	PercentRespPlayed     float64 `json:"percent_resp_played"`
	MeanAsyncNotPlayed    float64 `json:"mean_async_notplayed"`
	SDAsyncNotPlayed      float64 `json:"sd_async_notplayed"`
	PercentRespNotPlayed  float64 `json:"percent_resp_notplayed"`
}

// Columns is the ledger header, in the exact order the record's
// fields are laid out.
func Columns() []string {
	return []string{
		"trial_number",
		"stimulus_number",
		"allocation",
		"trial_failed",
		"failure_reason",
		"total_stimuli",
		"detected_stimuli",
		"total_responses",
		"aligned_responses",
		"mean_asynchrony",
		"sd_asynchrony",
		"percent_responses",
		"percent_responses_aligned",
		"mean_stimulus_ioi",
		"mean_response_ioi",
		"num_markers",
		"detected_markers",
		"marker_detection_rate",
		"max_marker_error",
		"percent_bad_taps",
		"mean_async_played",
		"sd_async_played",
		"percent_resp_played",
		"mean_async_notplayed",
		"sd_async_notplayed",
		"percent_resp_notplayed",
	}
}
