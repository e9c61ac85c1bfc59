package services

import (
	"errors"

	"product-wizard-service/models"
)

var (
	ErrStepGateFailed = errors.New("current step has validation errors")
	ErrAtLastStep     = errors.New("already at the last step")
	ErrStepLocked     = errors.New("step has not been unlocked yet")
	ErrInvalidStep    = errors.New("invalid step")
	ErrSkipNotAllowed = errors.New("skip to manual entry is only allowed from the identify step")
)

// StepSequencer tracks which wizard step is shown and which ones have been
// reached. furthestUnlocked never decreases until Reset.
type StepSequencer struct {
	engine           *ValidationEngine
	current          models.Step
	furthestUnlocked models.Step
	returnTo         *models.Step
}

func NewStepSequencer(engine *ValidationEngine) *StepSequencer {
	return &StepSequencer{engine: engine}
}

// State returns a snapshot of the sequencer.
func (s *StepSequencer) State() models.StepState {
	st := models.StepState{
		Current:          s.current,
		CurrentName:      s.current.String(),
		FurthestUnlocked: s.furthestUnlocked,
	}
	if s.returnTo != nil {
		r := *s.returnTo
		st.ReturnTo = &r
	}
	return st
}

// Advance moves forward one step if the current step's gate passes. On a
// gate failure the blocking errors are returned along with ErrStepGateFailed.
func (s *StepSequencer) Advance(d models.Draft) ([]models.FieldError, error) {
	if int(s.current) >= models.StepCount-1 {
		return nil, ErrAtLastStep
	}
	if errs := s.engine.ValidateStep(s.current, d); len(errs) > 0 {
		return errs, ErrStepGateFailed
	}
	from := s.current
	s.returnTo = &from
	s.current++
	if s.current > s.furthestUnlocked {
		s.furthestUnlocked = s.current
	}
	return nil, nil
}

// Retreat goes back to returnTo when it lies behind the current step,
// otherwise one step back. It reports whether the step changed.
func (s *StepSequencer) Retreat() bool {
	if s.returnTo != nil && *s.returnTo < s.current {
		s.current = *s.returnTo
		s.returnTo = nil
		return true
	}
	s.returnTo = nil
	if s.current == models.StepIdentify {
		return false
	}
	s.current--
	return true
}

// JumpTo moves directly to any unlocked step.
func (s *StepSequencer) JumpTo(target models.Step) error {
	if !target.Valid() {
		return ErrInvalidStep
	}
	if target > s.furthestUnlocked {
		return ErrStepLocked
	}
	s.current = target
	return nil
}

// SkipToManual leaves identify without running its gate, unlocking the
// first manual step before jumping to target. Retreat afterwards returns to
// identify.
func (s *StepSequencer) SkipToManual(target models.Step) error {
	if s.current != models.StepIdentify {
		return ErrSkipNotAllowed
	}
	if !target.Valid() {
		return ErrInvalidStep
	}
	if s.furthestUnlocked < models.StepBasics {
		s.furthestUnlocked = models.StepBasics
	}
	if err := s.JumpTo(target); err != nil {
		return err
	}
	from := models.StepIdentify
	s.returnTo = &from
	return nil
}

func (s *StepSequencer) Reset() {
	s.current = models.StepIdentify
	s.furthestUnlocked = models.StepIdentify
	s.returnTo = nil
}
