package session

import (
	"fmt"
	"math/rand"

	"github.com/neliav/tapsync/internal/experr"
	"github.com/neliav/tapsync/internal/mixer"
)

// Complexity is the rhythm difficulty condition.
type Complexity string

const (
	Simple  Complexity = "simple"
	Complex Complexity = "complex"
)

// The fixed rhythm patterns of the protocol, as inter-onset intervals
// in milliseconds with a leading 0.
var (
	simpleRhythms = [][]float64{
		{0, 520, 520, 520, 260, 260, 520, 520},
		{0, 520, 260, 260, 520, 260, 260, 520, 520},
	}
	complexRhythms = [][]float64{
		{0, 130, 260, 390, 260, 130, 260, 390, 260},
		{0, 390, 130, 260, 520, 260, 130, 390},
	}
)

// Allocation is the condition triple fixed at registration: rhythm
// complexity, which of the two sequences is presented first, and
// which ear hears the first stimulus. Never mutated afterward.
type Allocation struct {
	Complexity    Complexity
	SequenceOrder int // 0 or 1
	Ear           mixer.Ear
}

// NewRandomAllocation draws each part uniformly.
func NewRandomAllocation(r *rand.Rand) Allocation {
	a := Allocation{
		Complexity:    Simple,
		SequenceOrder: r.Intn(2),
		Ear:           mixer.EarRight,
	}
	if r.Intn(2) == 0 {
		a.Complexity = Complex
	}
	if r.Intn(2) == 0 {
		a.Ear = mixer.EarLeft
	}
	return a
}

// String renders the persisted allocation label, e.g.
// "complex-stimulus2-leftear".
func (a Allocation) String() string {
	return fmt.Sprintf("%s-stimulus%d-%sear", a.Complexity, a.SequenceOrder+1, a.Ear)
}

// Rhythm returns the IOI pattern for stimulus block 1 or 2: the
// allocated sequence order picks which pattern comes first.
func (a Allocation) Rhythm(stimulusNum int) []float64 {
	rhythms := simpleRhythms
	if a.Complexity == Complex {
		rhythms = complexRhythms
	}
	idx := a.SequenceOrder
	if stimulusNum != 1 {
		idx = 1 - a.SequenceOrder
	}
	return rhythms[idx]
}

// EarFor returns the presentation ear for a stimulus block; the ear
// flips between blocks.
func (a Allocation) EarFor(stimulusNum int) mixer.Ear {
	if stimulusNum == 1 {
		return a.Ear
	}
	return a.Ear.Opposite()
}

// ValidateParticipantID enforces the 9-digit participant ID format
// before any directory is created.
func ValidateParticipantID(id string) error {
	if len(id) != 9 {
		return &experr.ValidationError{Field: "participant ID", Reason: "must be exactly 9 digits"}
	}
	for _, c := range id {
		if c < '0' || c > '9' {
			return &experr.ValidationError{Field: "participant ID", Reason: "must contain digits only"}
		}
	}
	return nil
}
