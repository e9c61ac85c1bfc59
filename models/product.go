package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the record handed to the persistence boundary once a draft
// passes whole-form validation.
type Product struct {
	ID                     uuid.UUID        `json:"id"`
	IdentifierCode         string           `json:"identifier_code,omitempty"`
	Name                   string           `json:"name"`
	Description            string           `json:"description"`
	Category               string           `json:"category"`
	Price                  decimal.Decimal  `json:"price"`
	DiscountPrice          *decimal.Decimal `json:"discount_price,omitempty"`
	Quantity               int              `json:"quantity"`
	Images                 []string         `json:"images"`
	VariantGroups          []VariantGroup   `json:"variant_groups"`
	SellingModes           SellingModes     `json:"selling_modes"`
	SEO                    SEO              `json:"seo"`
	ScheduleWindow         ScheduleWindow   `json:"schedule_window"`
	IsSharedExternalRecord bool             `json:"is_shared_external_record"`
	IsActive               bool             `json:"is_active"`
	IsFeatured             bool             `json:"is_featured"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// CreatedEntity is what the persistence boundary reports back.
type CreatedEntity struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProductFromDraft maps a validated draft onto a new product record.
func ProductFromDraft(d Draft, id uuid.UUID, now time.Time) *Product {
	d = d.Clone()
	p := &Product{
		ID:                     id,
		Name:                   d.Name,
		Description:            d.Description,
		Category:               d.Category,
		Price:                  d.Price,
		DiscountPrice:          d.DiscountPrice,
		Quantity:               d.InventoryCount,
		Images:                 d.Media,
		VariantGroups:          d.VariantGroups,
		SellingModes:           d.SellingModes,
		SEO:                    d.SEO,
		ScheduleWindow:         d.ScheduleWindow,
		IsSharedExternalRecord: d.IsSharedExternalRecord,
		IsActive:               d.IsActive,
		IsFeatured:             d.IsFeatured,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if d.IdentifierCode != nil {
		p.IdentifierCode = *d.IdentifierCode
	}
	return p
}
