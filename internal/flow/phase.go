package flow

import "time"

// Phase is a step of a running flow.
type Phase int

const (
	PhaseCreating Phase = iota
	PhaseVerifying
	PhaseSigning
	PhaseSending
	PhaseDone
	PhaseFailed
)

var phaseLabels = map[Phase]string{
	PhaseCreating:  "Creating a new Yo!",
	PhaseVerifying: "Verifying the Yo!",
	PhaseSigning:   "Signing the Yo!",
	PhaseSending:   "Sending the Yo!",
	PhaseDone:      "Done",
	PhaseFailed:    "Failed",
}

func (p Phase) String() string {
	if label, ok := phaseLabels[p]; ok {
		return label
	}
	return "Unknown"
}

// Terminal reports whether no phase follows p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Event reports a phase transition. Err is set for PhaseFailed.
type Event struct {
	Flow  string    `json:"flow"`
	Phase Phase     `json:"phase"`
	Err   error     `json:"-"`
	At    time.Time `json:"at"`
}
