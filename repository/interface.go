package repository

import (
	"context"
	"errors"

	"product-wizard-service/models"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("record not found")
	ErrProductExists   = errors.New("product already exists")
)

// ProductRepo persists products created by the wizard. It uses plain Go
// types so the storage adapter can be swapped.
type ProductRepo interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// RegistryRepo stores codes contributed to the shared registry.
type RegistryRepo interface {
	Create(ctx context.Context, c *models.RegistryContribution) error
	FindByCode(ctx context.Context, code string) (*models.RegistryContribution, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.ContributionStatus) error
	FindPending(ctx context.Context, page, limit int) ([]models.RegistryContribution, int64, error)
}
