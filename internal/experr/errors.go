// Package experr defines the error taxonomy for an experiment session.
// Setup and persistence errors abort or escalate; validation, capture
// and analysis errors are recoverable at their own granularity.
package experr

import "fmt"

// SetupError means a required audio device is absent. Fatal: the
// session aborts before any participant data exists.
type SetupError struct {
	Missing string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("audio setup failed: %s not found", e.Missing)
}

// ValidationError means operator input was malformed. Recoverable by
// re-prompting; nothing has been written yet.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CaptureError wraps a hardware or driver failure during the blocking
// record-and-wait step. Recoverable by retrying the same trial.
type CaptureError struct {
	Trial int
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("recording error in trial %d: %v", e.Trial, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// AnalysisError wraps a failure of the trial analyzer. Recoverable by
// retrying the same trial.
type AnalysisError struct {
	Trial int
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis error in trial %d: %v", e.Trial, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// PersistenceError wraps a failure writing the participant ledger or
// trial artifacts. Escalated to the operator; never retried
// automatically.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
