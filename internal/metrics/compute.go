package metrics

import (
	"fmt"
	"math"
	"strconv"
)

// MissingFieldError reports a required scalar absent from the
// analyzer result. The analyzer contract is strict: every named
// scalar must be present.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("analysis result missing required field %q", e.Field)
}

// requiredScalars lists the analyzer result fields republished into
// the record, paired with their destination.
var requiredScalars = []string{
	"mean_async_all",
	"sd_async_all",
	"ratio_resp_to_stim",
	"percent_resp_aligned_all",
	"num_markers_onsets",
	"num_markers_detected",
	"markers_status",
	"markers_max_difference",
	"percent_of_bad_taps_all",
	"mean_async_played",
	"sd_async_played",
	"percent_response_aligned_played",
	"mean_async_notplayed",
	"sd_async_notplayed",
	"percent_response_aligned_notplayed",
}

// Compute assembles the trial metric record. The only derived values
// are the four counts and the two IOI means; everything else is a
// structural republish of the analyzer result and the failure flag.
// Pure: identical inputs yield identical records.
func Compute(output AnalysisOutput, result AnalysisResult, failure FailureInfo, trialNum, stimulusNum int, allocation string) (TrialMetricRecord, error) {
	for _, field := range requiredScalars {
		if _, ok := result[field]; !ok {
			return TrialMetricRecord{}, &MissingFieldError{Field: field}
		}
	}

	return TrialMetricRecord{
		TrialNumber:    trialNum,
		StimulusNumber: stimulusNum,
		Allocation:     allocation,
		TrialFailed:    failure.Failed,
		FailureReason:  failure.Reason,

		TotalStimuli:     len(output.StimOnsetsInput),
		DetectedStimuli:  output.StimOnsetsAligned.CountPresent(),
		TotalResponses:   len(output.RespOnsetsDetected),
		AlignedResponses: output.RespOnsetsAligned.CountPresent(),

		MeanAsynchrony:          result["mean_async_all"],
		SDAsynchrony:            result["sd_async_all"],
		PercentResponses:        result["ratio_resp_to_stim"],
		PercentResponsesAligned: result["percent_resp_aligned_all"],

		MeanStimulusIOI: output.StimIOI.Mean(),
		MeanResponseIOI: output.RespIOI.Mean(),

		NumMarkers:          result["num_markers_onsets"],
		DetectedMarkers:     result["num_markers_detected"],
		MarkerDetectionRate: result["markers_status"],
		MaxMarkerError:      result["markers_max_difference"],

		PercentBadTaps: result["percent_of_bad_taps_all"],

		MeanAsyncPlayed:      result["mean_async_played"],
		SDAsyncPlayed:        result["sd_async_played"],
		PercentRespPlayed:    result["percent_response_aligned_played"],
		MeanAsyncNotPlayed:   result["mean_async_notplayed"],
		SDAsyncNotPlayed:     result["sd_async_notplayed"],
		PercentRespNotPlayed: result["percent_response_aligned_notplayed"],
	}, nil
}

// Row serializes the record in Columns() order. Missing float values
// (NaN) become empty cells.
func (r TrialMetricRecord) Row() []string {
	return []string{
		strconv.Itoa(r.TrialNumber),
		strconv.Itoa(r.StimulusNumber),
		r.Allocation,
		strconv.FormatBool(r.TrialFailed),
		r.FailureReason,
		strconv.Itoa(r.TotalStimuli),
		strconv.Itoa(r.DetectedStimuli),
		strconv.Itoa(r.TotalResponses),
		strconv.Itoa(r.AlignedResponses),
		formatCell(r.MeanAsynchrony),
		formatCell(r.SDAsynchrony),
		formatCell(r.PercentResponses),
		formatCell(r.PercentResponsesAligned),
		formatCell(r.MeanStimulusIOI),
		formatCell(r.MeanResponseIOI),
		formatCell(r.NumMarkers),
		formatCell(r.DetectedMarkers),
		formatCell(r.MarkerDetectionRate),
		formatCell(r.MaxMarkerError),
		formatCell(r.PercentBadTaps),
		formatCell(r.MeanAsyncPlayed),
		formatCell(r.SDAsyncPlayed),
		formatCell(r.PercentRespPlayed),
		formatCell(r.MeanAsyncNotPlayed),
		formatCell(r.SDAsyncNotPlayed),
		formatCell(r.PercentRespNotPlayed),
	}
}

func formatCell(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
