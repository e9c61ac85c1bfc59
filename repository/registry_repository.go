package repository

import (
	"context"

	"product-wizard-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormRegistryRepository implements RegistryRepo using GORM.
type GormRegistryRepository struct {
	db *gorm.DB
}

func NewGormRegistryRepository(db *gorm.DB) RegistryRepo {
	return &GormRegistryRepository{db: db}
}

func (r *GormRegistryRepository) Create(ctx context.Context, c *models.RegistryContribution) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(c).Error
}

// FindByCode returns the newest contribution for code.
func (r *GormRegistryRepository) FindByCode(ctx context.Context, code string) (*models.RegistryContribution, error) {
	var c models.RegistryContribution
	err := r.db.WithContext(ctx).
		Where("identifier_code = ?", code).
		Order("created_at DESC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormRegistryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ContributionStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.RegistryContribution{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindPending pages through contributions still awaiting verification.
func (r *GormRegistryRepository) FindPending(ctx context.Context, page, limit int) ([]models.RegistryContribution, int64, error) {
	var out []models.RegistryContribution
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.RegistryContribution{}).
		Where("status = ?", models.ContributionPending)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
