package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"product-wizard-service/models"

	"go.uber.org/zap"
)

var (
	ErrSessionClosed = errors.New("wizard session is closed")
	ErrNoCandidate   = errors.New("no registry candidate is pending")
)

// SessionDeps are the collaborators shared by every session.
type SessionDeps struct {
	Engine      *ValidationEngine
	Registry    Registry
	Creator     EntityCreator
	Contributor RegistryContributor
	Metrics     MetricsRecorder
	Media       MediaStore
	Bus         *EventBus
	Logger      *zap.Logger
	Submission  SubmissionOptions
	Now         func() time.Time
}

// Session is one owner's wizard run. It owns the draft, the step cursor
// and the submission pipeline; every mutation is serialized by mu. Events
// raised while mu is held are published after it is released.
type Session struct {
	id    string
	owner string

	store    *DraftStore
	seq      *StepSequencer
	engine   *ValidationEngine
	lookup   *LookupAdapter
	pipeline *SubmissionPipeline
	media    MediaStore
	bus      *EventBus
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.Mutex
	errs         ErrorSet
	candidate    *models.Candidate
	acceptedCode string
	submitting   bool
	lastResult   *models.SubmissionOutcome
	lastActive   time.Time
	closed       bool
	pending      []Event
}

// NewSession wires a fresh session with an empty draft at the identify step.
func NewSession(id, owner string, deps SessionDeps) *Session {
	if deps.Engine == nil {
		deps.Engine = NewValidationEngine()
	}
	if deps.Bus == nil {
		deps.Bus = NewEventBus()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Media == nil {
		deps.Media = URLOnlyMediaStore{}
	}
	if deps.Registry == nil {
		deps.Registry = NewPrefixRegistry("")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Session{
		id:     id,
		owner:  owner,
		store:  NewDraftStore(),
		seq:    NewStepSequencer(deps.Engine),
		engine: deps.Engine,
		lookup: NewLookupAdapter(deps.Registry),
		pipeline: NewSubmissionPipeline(deps.Engine, deps.Creator, deps.Contributor, deps.Metrics,
			deps.Logger, deps.Submission),
		media:      deps.Media,
		bus:        deps.Bus,
		logger:     deps.Logger.With(zap.String("session_id", id)),
		now:        deps.Now,
		lastActive: deps.Now(),
	}
	s.store.Subscribe(func(models.Draft) {
		s.emit(Event{Type: EventDraftChanged})
	})
	return s
}

func (s *Session) ID() string    { return s.id }
func (s *Session) Owner() string { return s.owner }

// LastActive is the time of the last operation on the session.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// emit queues an event. Callers must hold mu.
func (s *Session) emit(e Event) {
	e.SessionID = s.id
	if e.At.IsZero() {
		e.At = s.now().UTC()
	}
	s.pending = append(s.pending, e)
}

// do runs fn under the lock and publishes whatever it emitted afterwards.
func (s *Session) do(fn func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	err := fn()
	s.lastActive = s.now()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range events {
		s.bus.Publish(e)
	}
	return err
}

// mutate is do for operations that change the draft; they are refused
// while a submission is in flight.
func (s *Session) mutate(fn func() error) error {
	return s.do(func() error {
		if s.submitting {
			return ErrSubmissionInProgress
		}
		return fn()
	})
}

func (s *Session) stepChanged() {
	st := s.seq.State()
	s.emit(Event{Type: EventStepChanged, Step: st.Current, Payload: st})
}

// Snapshot returns the externally visible state.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	snap := models.SessionSnapshot{
		SessionID:  s.id,
		OwnerID:    s.owner,
		Draft:      s.store.Get(),
		Steps:      s.seq.State(),
		Errors:     s.errs.All(),
		Submission: s.pipeline.State(),
	}
	if s.candidate != nil {
		c := cloneCandidate(*s.candidate)
		snap.Candidate = &c
	}
	if s.lastResult != nil {
		r := *s.lastResult
		snap.LastResult = &r
	}
	return snap
}

// ErrorsForStep returns the errors currently shown on step.
func (s *Session) ErrorsForStep(step models.Step) []models.FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs.ForStep(step)
}

// ErrorForField returns the error currently shown for field, or nil.
func (s *Session) ErrorForField(field string) *models.FieldError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs.ForField(field)
}

// Draft returns a copy of the current draft.
func (s *Session) Draft() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get()
}

// Patch merges p into the draft. Moving the identifier code away from an
// accepted registry code turns the draft back into a local record and
// drops any pending lookup. The shared-record flag only changes through
// AcceptCandidate, so a patch cannot set it.
func (s *Session) Patch(p models.DraftPatch) error {
	return s.mutate(func() error {
		if p.Media != nil && len(*p.Media) > models.MaxMediaItems {
			return ErrMediaLimitReached
		}
		p.IsSharedExternalRecord = nil
		if p.IdentifierCode != nil {
			code := strings.TrimSpace(*p.IdentifierCode)
			s.codeChanging(code)
			p.IdentifierCode = &code
		}
		s.store.Patch(p)
		return nil
	})
}

// codeChanging invalidates lookups and shared status when the code moves.
// Callers must hold mu.
func (s *Session) codeChanging(code string) {
	d := s.store.Get()
	current := ""
	if d.IdentifierCode != nil {
		current = *d.IdentifierCode
	}
	if code == current {
		return
	}
	s.lookup.Invalidate()
	s.candidate = nil
	if d.IsSharedExternalRecord && code != s.acceptedCode {
		shared := false
		s.store.Patch(models.DraftPatch{IsSharedExternalRecord: &shared})
		s.acceptedCode = ""
	}
}

// Advance leaves the current step if its gate passes. Gate errors are
// recorded for the step and returned with ErrStepGateFailed.
func (s *Session) Advance() ([]models.FieldError, error) {
	var errs []models.FieldError
	err := s.mutate(func() error {
		step := s.seq.State().Current
		var err error
		errs, err = s.seq.Advance(s.store.Get())
		if errors.Is(err, ErrStepGateFailed) {
			s.errs.ReplaceStep(step, errs)
			s.emit(Event{Type: EventValidationFailed, Step: step, Errors: errs})
			return err
		}
		if err != nil {
			return err
		}
		s.errs.ReplaceStep(step, nil)
		s.stepChanged()
		return nil
	})
	return errs, err
}

func (s *Session) Retreat() error {
	return s.mutate(func() error {
		if s.seq.Retreat() {
			s.stepChanged()
		}
		return nil
	})
}

func (s *Session) JumpTo(step models.Step) error {
	return s.mutate(func() error {
		before := s.seq.State().Current
		if err := s.seq.JumpTo(step); err != nil {
			return err
		}
		if before != step {
			s.stepChanged()
		}
		return nil
	})
}

// SkipToManual abandons the lookup path from the identify step.
func (s *Session) SkipToManual(target models.Step) error {
	return s.mutate(func() error {
		if err := s.seq.SkipToManual(target); err != nil {
			return err
		}
		s.lookup.Invalidate()
		s.candidate = nil
		s.stepChanged()
		return nil
	})
}

// Lookup sets the draft's code and asks the registry about it. The call
// runs without the session lock; if a newer lookup or a code edit happened
// meanwhile the answer is dropped with ErrStaleLookup. Registry failures
// are returned but leave the session usable for manual entry.
func (s *Session) Lookup(ctx context.Context, code string) (models.LookupResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.LookupResult{}, ErrEmptyCode
	}
	var id uint64
	err := s.mutate(func() error {
		s.codeChanging(code)
		s.store.Patch(models.DraftPatch{IdentifierCode: &code})
		s.candidate = nil
		id = s.lookup.Issue()
		return nil
	})
	if err != nil {
		return models.LookupResult{}, err
	}

	res, lookupErr := s.lookup.ResolveWithID(ctx, id, code)

	err = s.do(func() error {
		if !s.lookup.IsLatest(id) {
			return ErrStaleLookup
		}
		switch {
		case lookupErr != nil:
			s.logger.Warn("Registry lookup failed", zap.String("code", code), zap.Error(lookupErr))
			s.emit(Event{Type: EventLookupFailed, Step: models.StepIdentify, Payload: res})
			return lookupErr
		case res.Found:
			c := cloneCandidate(*res.Candidate)
			s.candidate = &c
			s.emit(Event{Type: EventLookupResolved, Step: models.StepIdentify, Payload: res})
		default:
			s.emit(Event{Type: EventLookupNotFound, Step: models.StepIdentify, Payload: res})
		}
		return nil
	})
	return res, err
}

// AcceptCandidate merges the pending candidate into the draft and marks it
// as a shared registry record.
func (s *Session) AcceptCandidate() error {
	return s.mutate(func() error {
		if s.candidate == nil {
			return ErrNoCandidate
		}
		c := *s.candidate
		d := s.store.Get()

		code := c.IdentifierCode
		shared := true
		p := models.DraftPatch{
			IdentifierCode:         &code,
			IsSharedExternalRecord: &shared,
		}
		if c.Name != "" {
			p.Name = &c.Name
		}
		if c.Description != "" {
			p.Description = &c.Description
		}
		if c.Category != "" {
			p.Category = &c.Category
		}
		if c.Price.IsPositive() {
			price := c.Price
			p.Price = &price
		}
		if len(c.Media) > 0 {
			media := mergeMedia(d.Media, c.Media, models.MaxMediaItems)
			p.Media = &media
		}
		if len(c.Keywords) > 0 {
			seo := models.SEO{
				Keywords:       append(append([]string{}, d.SEO.Keywords...), c.Keywords...),
				OptimizedTitle: d.SEO.OptimizedTitle,
			}
			p.SEO = &seo
		}
		s.store.Patch(p)
		s.acceptedCode = code
		s.candidate = nil
		s.emit(Event{Type: EventCandidateAccepted, Step: s.seq.State().Current, Payload: c})
		return nil
	})
}

// RejectCandidate drops the pending candidate without touching the draft.
func (s *Session) RejectCandidate() error {
	return s.mutate(func() error {
		if s.candidate == nil {
			return ErrNoCandidate
		}
		c := *s.candidate
		s.candidate = nil
		s.emit(Event{Type: EventCandidateRejected, Step: s.seq.State().Current, Payload: c})
		return nil
	})
}

// AddMedia stores ref and appends the resulting URL to the draft.
func (s *Session) AddMedia(ctx context.Context, ref MediaRef) (string, error) {
	err := s.mutate(func() error {
		if len(s.store.Get().Media) >= models.MaxMediaItems {
			return ErrMediaLimitReached
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	url, err := s.media.StoreMedia(ctx, ref)
	if err != nil {
		return "", err
	}

	err = s.mutate(func() error {
		return s.store.AppendMedia(url)
	})
	if err != nil {
		if len(ref.Data) > 0 {
			s.logger.Warn("Uploaded media left unreferenced", zap.String("url", url), zap.Error(err))
		}
		return "", err
	}
	return url, nil
}

func (s *Session) RemoveMedia(index int) error {
	return s.mutate(func() error {
		return s.store.RemoveMedia(index)
	})
}

func (s *Session) UpsertVariantGroup(g models.VariantGroup) error {
	return s.mutate(func() error {
		s.store.UpsertVariantGroup(g)
		return nil
	})
}

func (s *Session) RemoveVariantGroup(name string) error {
	return s.mutate(func() error {
		return s.store.RemoveVariantGroup(name)
	})
}

// Submit validates and commits the draft. The create call runs without
// the session lock. On success the draft, errors, candidate and step
// cursor start over; on failure everything is kept for a retry.
func (s *Session) Submit(ctx context.Context) (models.SubmissionOutcome, error) {
	var req SubmitRequest
	err := s.do(func() error {
		if s.submitting {
			return ErrSubmissionInProgress
		}
		s.submitting = true
		req = SubmitRequest{SessionID: s.id, SubmittedBy: s.owner, Draft: s.store.Get()}
		s.emit(Event{Type: EventSubmissionStarted, Step: s.seq.State().Current})
		return nil
	})
	if err != nil {
		return models.SubmissionOutcome{}, err
	}

	outcome, err := s.pipeline.Submit(ctx, req)

	s.mu.Lock()
	s.submitting = false
	if err != nil {
		s.mu.Unlock()
		return outcome, err
	}
	if s.closed {
		// cancelled mid-flight; the product exists but the session is gone
		s.mu.Unlock()
		return outcome, nil
	}
	s.applyOutcome(outcome)
	s.lastActive = s.now()
	events := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, e := range events {
		s.bus.Publish(e)
	}
	return outcome, nil
}

// applyOutcome folds a finished submission into session state. Callers
// must hold mu.
func (s *Session) applyOutcome(o models.SubmissionOutcome) {
	result := o
	s.lastResult = &result
	step := s.seq.State().Current

	switch {
	case o.State == models.SubmissionSucceeded:
		s.store.Reset()
		s.errs.Clear()
		s.seq.Reset()
		s.pipeline.Reset()
		s.lookup.Invalidate()
		s.candidate = nil
		s.acceptedCode = ""
		s.emit(Event{Type: EventSubmissionSucceeded, Step: step, Payload: o.Entity})
		if o.ContributedCode != "" {
			s.emit(Event{Type: EventCodeContributed, Step: step, Payload: o.ContributedCode})
		}
		s.stepChanged()
	case o.Reason == models.FailureValidation:
		s.errs.Set(o.Errors)
		s.emit(Event{Type: EventValidationFailed, Step: step, Errors: o.Errors})
		s.emit(Event{Type: EventSubmissionFailed, Step: step, Errors: o.Errors, Payload: o.Reason})
	default:
		s.emit(Event{Type: EventSubmissionFailed, Step: step, Payload: o.Reason})
	}
}

// Cancel discards the session. Later operations fail with ErrSessionClosed.
func (s *Session) Cancel() error {
	return s.do(func() error {
		s.closed = true
		s.lookup.Invalidate()
		s.emit(Event{Type: EventSessionCancelled, Step: s.seq.State().Current})
		return nil
	})
}

func cloneCandidate(c models.Candidate) models.Candidate {
	c.Media = append([]string{}, c.Media...)
	c.Keywords = append([]string{}, c.Keywords...)
	return c
}
