package models

import "time"

// Step identifies one stage of the product wizard.
type Step int

const (
	StepIdentify Step = iota
	StepBasics
	StepDetails
	StepMedia
	StepOptions
	StepReview
)

// StepCount is the number of wizard steps.
const StepCount = 6

var stepNames = [StepCount]string{"identify", "basics", "details", "media", "options", "review"}

func (s Step) String() string {
	if s < 0 || int(s) >= StepCount {
		return "unknown"
	}
	return stepNames[s]
}

// Valid reports whether s is inside the wizard's step range.
func (s Step) Valid() bool {
	return s >= 0 && int(s) < StepCount
}

// ParseStep resolves a step by name.
func ParseStep(name string) (Step, bool) {
	for i, n := range stepNames {
		if n == name {
			return Step(i), true
		}
	}
	return 0, false
}

// FieldError is a single validation failure.
type FieldError struct {
	Step    Step   `json:"step"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StepState is a read-only view of the sequencer.
type StepState struct {
	Current          Step   `json:"current"`
	CurrentName      string `json:"current_name"`
	FurthestUnlocked Step   `json:"furthest_unlocked"`
	ReturnTo         *Step  `json:"return_to,omitempty"`
}

// SubmissionState is the submission pipeline's lifecycle state.
type SubmissionState string

const (
	SubmissionIdle       SubmissionState = "idle"
	SubmissionSubmitting SubmissionState = "submitting"
	SubmissionSucceeded  SubmissionState = "succeeded"
	SubmissionFailed     SubmissionState = "failed"
)

// FailureReason explains why a submission ended in SubmissionFailed.
type FailureReason string

const (
	FailureValidation FailureReason = "validation"
	FailureCreate     FailureReason = "create"
)

// SubmissionOutcome reports the terminal state of one submission attempt.
type SubmissionOutcome struct {
	State           SubmissionState `json:"state"`
	Reason          FailureReason   `json:"reason,omitempty"`
	Errors          []FieldError    `json:"errors,omitempty"`
	Entity          *CreatedEntity  `json:"entity,omitempty"`
	ContributedCode string          `json:"contributed_code,omitempty"`
	FailureMessage  string          `json:"failure_message,omitempty"`
	CompletedAt     time.Time       `json:"completed_at"`
}

// SessionSnapshot is the externally visible state of a wizard session.
type SessionSnapshot struct {
	SessionID  string             `json:"session_id"`
	OwnerID    string             `json:"owner_id"`
	Draft      Draft              `json:"draft"`
	Steps      StepState          `json:"steps"`
	Errors     []FieldError       `json:"errors"`
	Candidate  *Candidate         `json:"candidate,omitempty"`
	Submission SubmissionState    `json:"submission"`
	LastResult *SubmissionOutcome `json:"last_result,omitempty"`
}
