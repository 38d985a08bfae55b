package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/neliav/tapsync/internal/analysis"
	"github.com/neliav/tapsync/internal/audio"
	"github.com/neliav/tapsync/internal/experr"
	"github.com/neliav/tapsync/internal/ledger"
	"github.com/neliav/tapsync/internal/metrics"
	"github.com/neliav/tapsync/internal/mixer"
	"github.com/neliav/tapsync/internal/stimulus"
	"github.com/neliav/tapsync/internal/storage"
	"github.com/neliav/tapsync/internal/tapdetect"
	"github.com/neliav/tapsync/pkg/logger"
)

// captureChannels is the fixed channel layout of a trial capture:
// microphone plus the two loopback routings.
const captureChannels = 3

// Runner executes the experiment protocol for one participant: ear
// checks, practice playback, and the full per-trial pipeline from
// capture through the persisted ledger row.
type Runner struct {
	cfg *Config
	log *logger.Logger

	// prepared stimulus for the current block, set during practice
	// and reused by every trial of the block
	prepared []float64
	stimInfo stimulus.StimInfo

	// practicing is set while the practice playback worker runs. The
	// worker is its sole writer; it clears the flag and hands off via
	// the done callback rather than being polled.
	practicing atomic.Bool
}

// NewRunner builds a Runner. A Recorder and an Analyzer are required;
// the preparer defaults to the built-in click train.
func NewRunner(opts ...Option) (*Runner, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Recorder == nil {
		return nil, errors.New("session: a Recorder is required")
	}
	if cfg.Analyzer == nil {
		return nil, errors.New("session: a TrialAnalyzer is required")
	}
	if cfg.Preparer == nil {
		cfg.Preparer = stimulus.NewClickTrain(cfg.SampleRate)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger()
	}
	return &Runner{cfg: cfg, log: cfg.Logger}, nil
}

// OutputDir is the participant's directory under the output root.
func (r *Runner) OutputDir(participantID string) string {
	return filepath.Join(r.cfg.OutputRoot, participantID)
}

// Register validates the participant ID, creates the participant
// directory and persists the allocation label. The label is written
// once and read back thereafter; an existing label is never
// overwritten. Returns the participant output directory.
func (r *Runner) Register(participantID string, alloc Allocation) (string, error) {
	if err := ValidateParticipantID(participantID); err != nil {
		return "", err
	}

	dir := r.OutputDir(participantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &experr.PersistenceError{Path: dir, Err: err}
	}

	allocPath := filepath.Join(dir, "allocation.txt")
	if _, err := os.Stat(allocPath); os.IsNotExist(err) {
		if err := os.WriteFile(allocPath, []byte(alloc.String()), 0o644); err != nil {
			return "", &experr.PersistenceError{Path: allocPath, Err: err}
		}
	}

	if r.cfg.Registry != nil {
		sessionID, err := r.cfg.Registry.RegisterParticipant(participantID, alloc.String())
		if err != nil {
			return "", &experr.PersistenceError{Path: "registry", Err: err}
		}
		r.log.Infof("Participant %s registered, session %s", participantID, sessionID)
	}

	r.log.Infof("Allocation: %s", alloc)
	return dir, nil
}

// ReadAllocation reads the persisted allocation label back.
func (r *Runner) ReadAllocation(participantID string) (string, error) {
	b, err := os.ReadFile(filepath.Join(r.OutputDir(participantID), "allocation.txt"))
	if err != nil {
		return "", &experr.PersistenceError{Path: "allocation.txt", Err: err}
	}
	return strings.TrimSpace(string(b)), nil
}

// RunEarCheck plays the calibration tone into one ear and reports
// whether a tap was picked up by the microphone.
func (r *Runner) RunEarCheck(ctx context.Context, ear mixer.Ear) (bool, error) {
	tone := stimulus.EarCheckTone(r.cfg.SampleRate)
	stereo := stimulus.SteerToEar(tone, ear)

	capture, err := r.cfg.Recorder.PlayRec(ctx, stereo, r.cfg.SampleRate, 1)
	if err != nil {
		return false, fmt.Errorf("ear check (%s): %w", ear, err)
	}
	if capture.Len() == 0 {
		return false, fmt.Errorf("ear check (%s): empty capture", ear)
	}

	detected, err := tapdetect.Detect(capture.Channels[0], r.cfg.SampleRate)
	if err != nil {
		return false, fmt.Errorf("ear check (%s): %w", ear, err)
	}
	r.log.Infof("Ear check %s: tap detected = %v", ear, detected)
	return detected, nil
}

// PrepareStimulus synthesizes the waveform for the current stimulus
// block and caches it for the practice plays and all its trials.
func (r *Runner) PrepareStimulus(state SessionState) error {
	name := fmt.Sprintf("rhythm_%d", state.Stimulus)
	wave, info, err := r.cfg.Preparer.Prepare(name, state.Allocation.Rhythm(state.Stimulus))
	if err != nil {
		return fmt.Errorf("preparing %s: %w", name, err)
	}
	r.prepared = wave
	r.stimInfo = info
	r.log.Infof("Prepared %s: %d onsets, %.0f ms", name, len(info.OnsetsMs), info.DurationMs)
	return nil
}

// PlayPractice plays the prepared stimulus twice with a one-second
// gap on a worker goroutine, so the operator surface stays responsive
// during the timed delays. done runs on the worker after the last
// play; the worker schedules the next phase instead of being polled.
func (r *Runner) PlayPractice(ctx context.Context, state SessionState, done func(err error)) error {
	if len(r.prepared) == 0 {
		return errors.New("session: no prepared stimulus; call PrepareStimulus first")
	}
	player, ok := r.cfg.Recorder.(audio.Player)
	if r.cfg.Player != nil {
		player, ok = r.cfg.Player, true
	}
	if !ok {
		return errors.New("session: no player available for practice")
	}

	stereo := stimulus.SteerToEar(r.prepared, state.CurrentEar())
	r.practicing.Store(true)

	go func() {
		defer r.practicing.Store(false)
		for i := 0; i < PracticePlays; i++ {
			r.log.Infof("Practice play %d/%d for stimulus %d", i+1, PracticePlays, state.Stimulus)
			if err := player.Play(ctx, stereo, r.cfg.SampleRate); err != nil {
				done(fmt.Errorf("practice playback: %w", err))
				return
			}
			if i < PracticePlays-1 {
				time.Sleep(time.Second)
			}
		}
		done(nil)
	}()
	return nil
}

// Practicing reports whether the practice worker is still playing.
func (r *Runner) Practicing() bool {
	return r.practicing.Load()
}

// RunTrial executes one full trial: blocking play-and-record, mix,
// persist the recording, analyze, derive metrics, append to the
// ledger and index the run. Capture and analysis failures write
// error_log.txt in the trial directory and are surfaced for an
// operator retry; they never advance the trial counter.
func (r *Runner) RunTrial(ctx context.Context, state SessionState) (metrics.TrialMetricRecord, error) {
	trialNum := state.NextTrialNumber()
	outputDir := r.OutputDir(state.ParticipantID)
	trialDir := filepath.Join(outputDir,
		fmt.Sprintf("stimulus_%d", state.Stimulus),
		fmt.Sprintf("trial_%d", trialNum))
	if err := os.MkdirAll(trialDir, 0o755); err != nil {
		return metrics.TrialMetricRecord{}, &experr.PersistenceError{Path: trialDir, Err: err}
	}

	ear := state.CurrentEar()
	r.log.Infof("Trial %d/%d, stimulus %d, %s ear", trialNum, TrialsPerStimulus, state.Stimulus, ear)

	// 1. Blocking play-and-record.
	stereo := stimulus.SteerToEar(r.prepared, ear)
	capture, err := r.cfg.Recorder.PlayRec(ctx, stereo, r.cfg.SampleRate, captureChannels)
	if err != nil {
		cerr := &experr.CaptureError{Trial: trialNum, Err: err}
		r.writeErrorLog(trialDir, cerr)
		return metrics.TrialMetricRecord{}, cerr
	}

	// 2. Mix the microphone and loopback channels.
	combined, err := mixer.Mix(capture, ear)
	if err != nil {
		cerr := &experr.CaptureError{Trial: trialNum, Err: err}
		r.writeErrorLog(trialDir, cerr)
		return metrics.TrialMetricRecord{}, cerr
	}

	// 3. Persist the normalized recording.
	wavPath := filepath.Join(trialDir, fmt.Sprintf("recording_trial_%d.wav", trialNum))
	size, err := audio.WriteWAV(wavPath, combined, r.cfg.SampleRate)
	if err != nil {
		return metrics.TrialMetricRecord{}, &experr.PersistenceError{Path: wavPath, Err: err}
	}
	r.log.Infof("Saved recording (%s)", humanize.Bytes(uint64(size)))

	// 4. Onset alignment analysis.
	plotPath := filepath.Join(trialDir, fmt.Sprintf("plot_trial_%d.png", trialNum))
	label := fmt.Sprintf("trial_%d", trialNum)
	output, result, failure, err := r.cfg.Analyzer.Analyze(r.stimInfo, wavPath, label, plotPath)
	if err != nil {
		aerr := &experr.AnalysisError{Trial: trialNum, Err: err}
		r.writeErrorLog(trialDir, aerr)
		return metrics.TrialMetricRecord{}, aerr
	}
	if _, err := os.Stat(plotPath); os.IsNotExist(err) {
		if perr := analysis.WriteSpectrogramPlot(wavPath, plotPath); perr != nil {
			r.log.Warnf("Diagnostic plot failed: %v", perr)
		}
	}

	// 5. Persist the raw analyzer output.
	jsonPath := filepath.Join(trialDir, fmt.Sprintf("numerical_data_trial_%d.json", trialNum))
	data, err := json.Marshal(output)
	if err != nil {
		return metrics.TrialMetricRecord{}, &experr.PersistenceError{Path: jsonPath, Err: err}
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return metrics.TrialMetricRecord{}, &experr.PersistenceError{Path: jsonPath, Err: err}
	}

	// 6. Derive the trial metric record.
	allocation, err := r.ReadAllocation(state.ParticipantID)
	if err != nil {
		return metrics.TrialMetricRecord{}, err
	}
	record, err := metrics.Compute(output, result, failure, trialNum, state.Stimulus, allocation)
	if err != nil {
		aerr := &experr.AnalysisError{Trial: trialNum, Err: err}
		r.writeErrorLog(trialDir, aerr)
		return metrics.TrialMetricRecord{}, aerr
	}

	// 7. Append to the ledger and index the run.
	if err := ledger.Append(outputDir, record); err != nil {
		return metrics.TrialMetricRecord{}, err
	}
	if r.cfg.Registry != nil {
		err := r.cfg.Registry.RecordTrial(storageTrialRun(state, trialNum, failure, wavPath))
		if err != nil {
			return metrics.TrialMetricRecord{}, &experr.PersistenceError{Path: "registry", Err: err}
		}
	}

	if failure.Failed {
		r.log.Warnf("Trial %d flagged unusable: %s", trialNum, failure.Reason)
	} else {
		r.log.Infof("Trial %d complete: %d/%d responses aligned",
			trialNum, record.AlignedResponses, record.TotalResponses)
	}
	return record, nil
}

func storageTrialRun(state SessionState, trialNum int, failure metrics.FailureInfo, wavPath string) storage.TrialRun {
	return storage.TrialRun{
		ParticipantID:  state.ParticipantID,
		StimulusNumber: state.Stimulus,
		TrialNumber:    trialNum,
		Failed:         failure.Failed,
		FailureReason:  failure.Reason,
		RecordingPath:  wavPath,
	}
}

// writeErrorLog records a recoverable trial failure in the trial
// directory. Nothing is ever silently swallowed: the error is logged
// to disk and returned to block the flow pending operator action.
func (r *Runner) writeErrorLog(trialDir string, trialErr error) {
	path := filepath.Join(trialDir, "error_log.txt")
	if err := os.WriteFile(path, []byte(trialErr.Error()), 0o644); err != nil {
		r.log.Errorf("Could not write %s: %v", path, err)
	}
	r.log.Errorf("%v", trialErr)
}
