package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"product-wizard-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSubmissionInProgress = errors.New("submission already in progress")
	ErrDraftInvalid         = errors.New("draft failed validation")
)

// MetricProductsCreated is recorded once per successful submission.
const MetricProductsCreated = "ProductsCreated"

const (
	defaultCreateTimeout     = 15 * time.Second
	defaultContributeTimeout = 10 * time.Second
)

// EntityCreator is the persistence boundary for new products.
type EntityCreator interface {
	CreateEntity(ctx context.Context, p *models.Product) (*models.CreatedEntity, error)
}

// RegistryContributor reports a code the shared registry has not seen.
type RegistryContributor interface {
	Contribute(ctx context.Context, p *models.Product, contributedBy string) error
}

// MetricsRecorder matches the CloudWatch metrics client.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// SubmissionOptions tunes a pipeline. Zero values pick defaults.
type SubmissionOptions struct {
	CreateTimeout     time.Duration
	ContributeTimeout time.Duration
	Now               func() time.Time
	NewID             func() uuid.UUID
	// Background tracks advisory work so shutdown can wait for it.
	Background *sync.WaitGroup
}

// SubmitRequest is one user-initiated submission attempt.
type SubmitRequest struct {
	SessionID   string
	SubmittedBy string
	Draft       models.Draft
}

// SubmissionPipeline commits a draft exactly once per attempt. It owns the
// Idle -> Submitting -> Succeeded|Failed state for one session.
type SubmissionPipeline struct {
	engine      *ValidationEngine
	creator     EntityCreator
	contributor RegistryContributor
	metrics     MetricsRecorder
	logger      *zap.Logger
	opts        SubmissionOptions

	mu    sync.Mutex
	state models.SubmissionState
}

// NewSubmissionPipeline builds a pipeline. contributor and metrics may be nil.
func NewSubmissionPipeline(
	engine *ValidationEngine,
	creator EntityCreator,
	contributor RegistryContributor,
	metrics MetricsRecorder,
	logger *zap.Logger,
	opts SubmissionOptions,
) *SubmissionPipeline {
	if opts.CreateTimeout <= 0 {
		opts.CreateTimeout = defaultCreateTimeout
	}
	if opts.ContributeTimeout <= 0 {
		opts.ContributeTimeout = defaultContributeTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.New
	}
	if opts.Background == nil {
		opts.Background = &sync.WaitGroup{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionPipeline{
		engine:      engine,
		creator:     creator,
		contributor: contributor,
		metrics:     metrics,
		logger:      logger,
		opts:        opts,
		state:       models.SubmissionIdle,
	}
}

func (p *SubmissionPipeline) State() models.SubmissionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// InProgress reports whether a create call is outstanding.
func (p *SubmissionPipeline) InProgress() bool {
	return p.State() == models.SubmissionSubmitting
}

// Reset returns a finished pipeline to Idle. It has no effect while a
// submission is in flight.
func (p *SubmissionPipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != models.SubmissionSubmitting {
		p.state = models.SubmissionIdle
	}
}

// Submit validates the whole draft and, when valid, creates the product.
// A call made while another is in flight returns ErrSubmissionInProgress
// without touching the creator. Every other outcome, including failures,
// is reported through the returned SubmissionOutcome with a nil error.
func (p *SubmissionPipeline) Submit(ctx context.Context, req SubmitRequest) (models.SubmissionOutcome, error) {
	p.mu.Lock()
	if p.state == models.SubmissionSubmitting {
		p.mu.Unlock()
		return models.SubmissionOutcome{State: models.SubmissionSubmitting}, ErrSubmissionInProgress
	}
	p.state = models.SubmissionSubmitting
	p.mu.Unlock()

	outcome := p.run(ctx, req)

	p.mu.Lock()
	p.state = outcome.State
	p.mu.Unlock()
	return outcome, nil
}

func (p *SubmissionPipeline) run(ctx context.Context, req SubmitRequest) models.SubmissionOutcome {
	d := req.Draft
	if errs := p.engine.ValidateAll(d); len(errs) > 0 {
		p.logger.Info("Submission rejected by validation",
			zap.String("session_id", req.SessionID),
			zap.Int("errors", len(errs)))
		return models.SubmissionOutcome{
			State:          models.SubmissionFailed,
			Reason:         models.FailureValidation,
			Errors:         errs,
			FailureMessage: ErrDraftInvalid.Error(),
			CompletedAt:    p.opts.Now().UTC(),
		}
	}

	// decided from the draft as it was when the attempt started
	contribute := d.HasIdentifierCode() && !d.IsSharedExternalRecord

	now := p.opts.Now().UTC()
	product := models.ProductFromDraft(d, p.opts.NewID(), now)

	// once started, the create call outlives the caller's cancellation
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.CreateTimeout)
	start := time.Now()
	entity, err := p.creator.CreateEntity(cctx, product)
	cancel()
	if err != nil {
		p.logger.Error("Product create failed",
			zap.String("session_id", req.SessionID),
			zap.String("product_id", product.ID.String()),
			zap.Error(err))
		return models.SubmissionOutcome{
			State:          models.SubmissionFailed,
			Reason:         models.FailureCreate,
			FailureMessage: err.Error(),
			CompletedAt:    p.opts.Now().UTC(),
		}
	}
	if entity == nil {
		entity = &models.CreatedEntity{ID: product.ID.String(), CreatedAt: now, UpdatedAt: now}
	}

	p.logger.Info("Product created from wizard",
		zap.String("session_id", req.SessionID),
		zap.String("product_id", entity.ID))
	p.recordMetrics(product, time.Since(start))

	outcome := models.SubmissionOutcome{
		State:       models.SubmissionSucceeded,
		Entity:      entity,
		CompletedAt: p.opts.Now().UTC(),
	}
	if contribute && p.contributor != nil {
		outcome.ContributedCode = product.IdentifierCode
		p.contributeAsync(product, req.SubmittedBy)
	}
	return outcome
}

func (p *SubmissionPipeline) contributeAsync(product *models.Product, by string) {
	p.opts.Background.Add(1)
	go func() {
		defer p.opts.Background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.opts.ContributeTimeout)
		defer cancel()
		if err := p.contributor.Contribute(ctx, product, by); err != nil {
			p.logger.Warn("Registry contribution failed",
				zap.String("code", product.IdentifierCode),
				zap.String("product_id", product.ID.String()),
				zap.Error(err))
		}
	}()
}

func (p *SubmissionPipeline) recordMetrics(product *models.Product, took time.Duration) {
	if p.metrics == nil {
		return
	}
	p.opts.Background.Add(1)
	go func() {
		defer p.opts.Background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dims := map[string]string{"Category": product.Category}
		if err := p.metrics.RecordCount(ctx, MetricProductsCreated, dims); err != nil {
			p.logger.Warn("Failed to record products metric", zap.Error(err))
		}
		if err := p.metrics.RecordLatency(ctx, "ProductCreateLatency", took, nil); err != nil {
			p.logger.Warn("Failed to record create latency", zap.Error(err))
		}
	}()
}
