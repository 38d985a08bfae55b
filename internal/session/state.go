package session

import (
	"fmt"

	"github.com/neliav/tapsync/internal/mixer"
)

// State names one screen of the experiment flow. The flow is a flat
// state machine rather than nested callbacks so it can be tested
// without any rendering surface.
type State int

const (
	StateWelcome State = iota
	StateIDEntry
	StateInstructions
	StateTappingInstructions
	StateEarCheckRight
	StateEarCheckLeft
	StatePractice
	StateTrial
	StateBreak
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateWelcome:
		return "Welcome"
	case StateIDEntry:
		return "IDEntry"
	case StateInstructions:
		return "Instructions"
	case StateTappingInstructions:
		return "TappingInstructions"
	case StateEarCheckRight:
		return "EarCheckRight"
	case StateEarCheckLeft:
		return "EarCheckLeft"
	case StatePractice:
		return "Practice"
	case StateTrial:
		return "Trial"
	case StateBreak:
		return "Break"
	case StateComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Event drives a transition.
type Event int

const (
	EventNext Event = iota
	EventIDAccepted
	EventIDRejected
	EventTapDetected
	EventTapMissed
	EventPracticeDone
	EventTrialDone
	EventTrialFailed
	EventContinue
)

func (e Event) String() string {
	switch e {
	case EventNext:
		return "Next"
	case EventIDAccepted:
		return "IDAccepted"
	case EventIDRejected:
		return "IDRejected"
	case EventTapDetected:
		return "TapDetected"
	case EventTapMissed:
		return "TapMissed"
	case EventPracticeDone:
		return "PracticeDone"
	case EventTrialDone:
		return "TrialDone"
	case EventTrialFailed:
		return "TrialFailed"
	case EventContinue:
		return "Continue"
	default:
		return "Unknown"
	}
}

// Protocol constants.
const (
	TrialsPerStimulus = 12
	MidBreakAfter     = 6
	MidBreakSeconds   = 15
	BlockBreakSeconds = 120
	PracticePlays     = 2
)

// SessionState is the complete mutable state of one session, threaded
// explicitly through transitions. Trial counts completed trials of
// the current stimulus block.
type SessionState struct {
	State         State
	ParticipantID string
	Allocation    Allocation
	Stimulus      int
	Trial         int
	BreakSeconds  int
}

// NewSessionState starts a session at the welcome screen with the
// given allocation, on stimulus block 1.
func NewSessionState(alloc Allocation) SessionState {
	return SessionState{State: StateWelcome, Allocation: alloc, Stimulus: 1}
}

// CurrentEar is the presentation ear for the current stimulus block.
func (s SessionState) CurrentEar() mixer.Ear {
	return s.Allocation.EarFor(s.Stimulus)
}

// NextTrialNumber is the 1-based number of the trial about to run.
func (s SessionState) NextTrialNumber() int {
	return s.Trial + 1
}

// Transition applies one event and returns the next state. Events
// that have no meaning in the current state are rejected, never
// silently swallowed.
func Transition(s SessionState, ev Event) (SessionState, error) {
	switch s.State {
	case StateWelcome:
		if ev == EventNext {
			s.State = StateIDEntry
			return s, nil
		}
	case StateIDEntry:
		switch ev {
		case EventIDAccepted:
			s.State = StateInstructions
			return s, nil
		case EventIDRejected:
			// re-prompt, no partial state written
			return s, nil
		}
	case StateInstructions:
		if ev == EventNext {
			s.State = StateTappingInstructions
			return s, nil
		}
	case StateTappingInstructions:
		if ev == EventNext {
			s.State = StateEarCheckRight
			return s, nil
		}
	case StateEarCheckRight:
		switch ev {
		case EventTapDetected:
			s.State = StateEarCheckLeft
			return s, nil
		case EventTapMissed:
			return s, nil
		}
	case StateEarCheckLeft:
		switch ev {
		case EventTapDetected:
			s.State = StatePractice
			return s, nil
		case EventTapMissed:
			return s, nil
		}
	case StatePractice:
		if ev == EventPracticeDone {
			s.State = StateTrial
			s.Trial = 0
			return s, nil
		}
	case StateTrial:
		switch ev {
		case EventTrialDone:
			s.Trial++
			switch {
			case s.Trial == MidBreakAfter:
				s.State = StateBreak
				s.BreakSeconds = MidBreakSeconds
			case s.Trial == TrialsPerStimulus && s.Stimulus == 1:
				s.State = StateBreak
				s.BreakSeconds = BlockBreakSeconds
			case s.Trial == TrialsPerStimulus:
				s.State = StateComplete
			}
			return s, nil
		case EventTrialFailed:
			// same trial is retried; the counter does not move
			return s, nil
		}
	case StateBreak:
		if ev == EventContinue {
			s.BreakSeconds = 0
			if s.Trial == MidBreakAfter {
				s.State = StateTrial
				return s, nil
			}
			// between stimulus blocks: advance, ear flips via the
			// allocation, practice precedes the next trials
			s.Stimulus = 2
			s.Trial = 0
			s.State = StatePractice
			return s, nil
		}
	case StateComplete:
		// terminal
	}
	return s, fmt.Errorf("session: invalid event %s in state %s", ev, s.State)
}
