package services

import (
	"context"
	"fmt"

	"product-wizard-service/models"
	"product-wizard-service/repository"

	"go.uber.org/zap"
)

// ProductCreator is the EntityCreator backed by the product table.
type ProductCreator struct {
	repo   repository.ProductRepo
	logger *zap.Logger
}

func NewProductCreator(repo repository.ProductRepo, logger *zap.Logger) *ProductCreator {
	return &ProductCreator{repo: repo, logger: logger}
}

// CreateEntity stores p and reads it back so the returned timestamps are
// the persisted ones. A failed read-back is logged; the write already
// happened, so the in-memory values are returned instead.
func (c *ProductCreator) CreateEntity(ctx context.Context, p *models.Product) (*models.CreatedEntity, error) {
	if err := c.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product %s: %w", p.ID, err)
	}
	c.logger.Debug("Product stored", zap.String("product_id", p.ID.String()), zap.String("category", p.Category))

	stored, err := c.repo.FindByID(ctx, p.ID)
	if err != nil {
		c.logger.Warn("Product read-back failed", zap.String("product_id", p.ID.String()), zap.Error(err))
		stored = p
	}
	return &models.CreatedEntity{
		ID:        stored.ID.String(),
		CreatedAt: stored.CreatedAt,
		UpdatedAt: stored.UpdatedAt,
	}, nil
}
