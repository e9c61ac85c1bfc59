package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxMediaItems caps the number of media references a draft may carry.
const MaxMediaItems = 10

// VariantOption is a single selectable value inside a variant group.
type VariantOption struct {
	Value         string           `json:"value" validate:"required"`
	PriceOverride *decimal.Decimal `json:"price_override,omitempty"`
	StockOverride *int             `json:"stock_override,omitempty"`
}

// VariantGroup groups options of one variant type (size, color, ...).
type VariantGroup struct {
	Name    string          `json:"name" validate:"required"`
	Options []VariantOption `json:"options" validate:"min=1,dive"`
}

// SellingModes are independent toggles; any combination is accepted.
type SellingModes struct {
	OnlinePurchase  bool `json:"online_purchase"`
	ReservationOnly bool `json:"reservation_only"`
	InStoreOnly     bool `json:"in_store_only"`
}

// SEO holds search metadata. Keywords behave as a set.
type SEO struct {
	Keywords       []string `json:"keywords"`
	OptimizedTitle string   `json:"optimized_title"`
}

// ScheduleWindow bounds when a product is visible in the storefront.
type ScheduleWindow struct {
	PublishAt *time.Time `json:"publish_at,omitempty"`
	ExpireAt  *time.Time `json:"expire_at,omitempty"`
}

// Draft is the product under construction inside a wizard session.
type Draft struct {
	IdentifierCode         *string          `json:"identifier_code,omitempty"`
	Name                   string           `json:"name"`
	Description            string           `json:"description"`
	Category               string           `json:"category"`
	Price                  decimal.Decimal  `json:"price"`
	InventoryCount         int              `json:"inventory_count"`
	Media                  []string         `json:"media"`
	VariantGroups          []VariantGroup   `json:"variant_groups"`
	SellingModes           SellingModes     `json:"selling_modes"`
	SEO                    SEO              `json:"seo"`
	ScheduleWindow         ScheduleWindow   `json:"schedule_window"`
	IsSharedExternalRecord bool             `json:"is_shared_external_record"`
	IsActive               bool             `json:"is_active"`
	IsFeatured             bool             `json:"is_featured"`
	DiscountPrice          *decimal.Decimal `json:"discount_price,omitempty"`
}

// NewDraft returns the empty draft a session starts with.
func NewDraft() Draft {
	return Draft{
		Media:         []string{},
		VariantGroups: []VariantGroup{},
		SEO:           SEO{Keywords: []string{}},
		IsActive:      true,
	}
}

// HasIdentifierCode reports whether a non-empty external code is set.
func (d Draft) HasIdentifierCode() bool {
	return d.IdentifierCode != nil && *d.IdentifierCode != ""
}

// Clone returns a deep copy so callers cannot mutate store-owned slices.
func (d Draft) Clone() Draft {
	out := d
	if d.IdentifierCode != nil {
		code := *d.IdentifierCode
		out.IdentifierCode = &code
	}
	if d.DiscountPrice != nil {
		dp := *d.DiscountPrice
		out.DiscountPrice = &dp
	}
	out.Media = append([]string{}, d.Media...)
	out.SEO.Keywords = append([]string{}, d.SEO.Keywords...)
	out.ScheduleWindow = d.ScheduleWindow.clone()
	out.VariantGroups = make([]VariantGroup, 0, len(d.VariantGroups))
	for _, g := range d.VariantGroups {
		out.VariantGroups = append(out.VariantGroups, g.Clone())
	}
	return out
}

// Clone returns a deep copy of the group.
func (g VariantGroup) Clone() VariantGroup {
	out := VariantGroup{Name: g.Name, Options: make([]VariantOption, 0, len(g.Options))}
	for _, o := range g.Options {
		c := VariantOption{Value: o.Value}
		if o.PriceOverride != nil {
			p := *o.PriceOverride
			c.PriceOverride = &p
		}
		if o.StockOverride != nil {
			s := *o.StockOverride
			c.StockOverride = &s
		}
		out.Options = append(out.Options, c)
	}
	return out
}

func (w ScheduleWindow) clone() ScheduleWindow {
	out := ScheduleWindow{}
	if w.PublishAt != nil {
		t := *w.PublishAt
		out.PublishAt = &t
	}
	if w.ExpireAt != nil {
		t := *w.ExpireAt
		out.ExpireAt = &t
	}
	return out
}

// DraftPatch carries a partial update. Nil fields are left untouched and
// collections replace the existing value wholesale.
type DraftPatch struct {
	IdentifierCode         *string          `json:"identifier_code,omitempty"`
	Name                   *string          `json:"name,omitempty"`
	Description            *string          `json:"description,omitempty"`
	Category               *string          `json:"category,omitempty"`
	Price                  *decimal.Decimal `json:"price,omitempty"`
	InventoryCount         *int             `json:"inventory_count,omitempty"`
	Media                  *[]string        `json:"media,omitempty"`
	VariantGroups          *[]VariantGroup  `json:"variant_groups,omitempty"`
	SellingModes           *SellingModes    `json:"selling_modes,omitempty"`
	SEO                    *SEO             `json:"seo,omitempty"`
	ScheduleWindow         *ScheduleWindow  `json:"schedule_window,omitempty"`
	IsSharedExternalRecord *bool            `json:"-"`
	IsActive               *bool            `json:"is_active,omitempty"`
	IsFeatured             *bool            `json:"is_featured,omitempty"`
	DiscountPrice          *decimal.Decimal `json:"discount_price,omitempty"`
	ClearDiscountPrice     bool             `json:"clear_discount_price,omitempty"`
}
