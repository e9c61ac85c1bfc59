package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"product-wizard-service/models"
	aws_pkg "product-wizard-service/pkg/aws"
	"product-wizard-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrContributionNotFound = errors.New("registry contribution not found")

const (
	EventCodeContributedType    = "registry.code_contributed"
	EventContributionStatusType = "registry.contribution_status_changed"
)

// RegistryService records contributed codes and manages their review.
type RegistryService interface {
	RegistryContributor
	ListPending(ctx context.Context, page, limit int) ([]models.RegistryContribution, int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.ContributionStatus) error
	Latest(ctx context.Context, code string) (*models.RegistryContribution, error)
}

type registryServiceImpl struct {
	repo        repository.RegistryRepo
	snsClient   aws_pkg.SNSPublisher
	snsTopicArn string
	logger      *zap.Logger
}

func NewRegistryService(
	repo repository.RegistryRepo,
	snsClient aws_pkg.SNSPublisher,
	snsTopicArn string,
	logger *zap.Logger,
) RegistryService {
	return &registryServiceImpl{
		repo:        repo,
		snsClient:   snsClient,
		snsTopicArn: snsTopicArn,
		logger:      logger,
	}
}

// Contribute stores the code as pending verification and announces it.
// The SNS publish is best effort.
func (s *registryServiceImpl) Contribute(ctx context.Context, p *models.Product, contributedBy string) error {
	if p.IdentifierCode == "" {
		return ErrEmptyCode
	}
	c := &models.RegistryContribution{
		ID:             uuid.New(),
		IdentifierCode: p.IdentifierCode,
		ProductID:      p.ID.String(),
		ProductName:    p.Name,
		Category:       p.Category,
		Status:         models.ContributionPending,
		ContributedBy:  contributedBy,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return fmt.Errorf("record contribution: %w", err)
	}
	s.logger.Info("Registry code contributed",
		zap.String("code", c.IdentifierCode),
		zap.String("product_id", c.ProductID))

	s.publish(ctx, models.CodeContributedEvent{
		EventType:      EventCodeContributedType,
		ContributionID: c.ID.String(),
		IdentifierCode: c.IdentifierCode,
		ProductID:      c.ProductID,
		ProductName:    c.ProductName,
		Status:         string(c.Status),
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

func (s *registryServiceImpl) ListPending(ctx context.Context, page, limit int) ([]models.RegistryContribution, int64, error) {
	return s.repo.FindPending(ctx, page, limit)
}

// Latest returns the newest contribution recorded for code.
func (s *registryServiceImpl) Latest(ctx context.Context, code string) (*models.RegistryContribution, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContributionNotFound
		}
		return nil, fmt.Errorf("find contribution: %w", err)
	}
	return c, nil
}

// SetStatus moves a contribution out of pending verification.
func (s *registryServiceImpl) SetStatus(ctx context.Context, id uuid.UUID, status models.ContributionStatus) error {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrContributionNotFound
		}
		return fmt.Errorf("update contribution status: %w", err)
	}
	s.publish(ctx, models.CodeContributedEvent{
		EventType:      EventContributionStatusType,
		ContributionID: id.String(),
		Status:         string(status),
		Timestamp:      time.Now().UTC(),
	})
	return nil
}

func (s *registryServiceImpl) publish(ctx context.Context, evt models.CodeContributedEvent) {
	if s.snsClient == nil || s.snsTopicArn == "" {
		return
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		s.logger.Warn("Failed to marshal registry event", zap.Error(err))
		return
	}
	if ep, ok := s.snsClient.(aws_pkg.EventPublisher); ok {
		err = ep.PublishEvent(ctx, s.snsTopicArn, evt.EventType, msg)
	} else {
		err = s.snsClient.Publish(ctx, s.snsTopicArn, msg)
	}
	if err != nil {
		s.logger.Warn("Failed to publish registry event",
			zap.String("event_type", evt.EventType),
			zap.String("contribution_id", evt.ContributionID),
			zap.Error(err))
	}
}
