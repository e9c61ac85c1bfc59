package services

import (
	"errors"

	"product-wizard-service/models"
)

var (
	ErrMediaLimitReached  = errors.New("media limit reached")
	ErrMediaIndexRange    = errors.New("media index out of range")
	ErrVariantGroupAbsent = errors.New("variant group not found")
)

// DraftStore holds the single in-progress draft. It performs no validation
// and is not safe for concurrent use; the owning session serializes access.
type DraftStore struct {
	draft     models.Draft
	observers []func(models.Draft)
}

func NewDraftStore() *DraftStore {
	return &DraftStore{draft: models.NewDraft()}
}

// Subscribe registers fn to be called after every mutation.
func (s *DraftStore) Subscribe(fn func(models.Draft)) {
	s.observers = append(s.observers, fn)
}

// Get returns a copy of the current draft.
func (s *DraftStore) Get() models.Draft {
	return s.draft.Clone()
}

// Patch shallow-merges the non-nil top-level fields of p.
func (s *DraftStore) Patch(p models.DraftPatch) {
	d := &s.draft
	if p.IdentifierCode != nil {
		if *p.IdentifierCode == "" {
			d.IdentifierCode = nil
		} else {
			code := *p.IdentifierCode
			d.IdentifierCode = &code
		}
	}
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Category != nil {
		d.Category = *p.Category
	}
	if p.Price != nil {
		d.Price = *p.Price
	}
	if p.InventoryCount != nil {
		d.InventoryCount = *p.InventoryCount
	}
	if p.Media != nil {
		d.Media = append([]string{}, (*p.Media)...)
	}
	if p.VariantGroups != nil {
		groups := make([]models.VariantGroup, 0, len(*p.VariantGroups))
		for _, g := range *p.VariantGroups {
			groups = append(groups, g.Clone())
		}
		d.VariantGroups = groups
	}
	if p.SellingModes != nil {
		d.SellingModes = *p.SellingModes
	}
	if p.SEO != nil {
		d.SEO = models.SEO{
			Keywords:       uniqueStrings(p.SEO.Keywords),
			OptimizedTitle: p.SEO.OptimizedTitle,
		}
	}
	if p.ScheduleWindow != nil {
		d.ScheduleWindow = *p.ScheduleWindow
	}
	if p.IsSharedExternalRecord != nil {
		d.IsSharedExternalRecord = *p.IsSharedExternalRecord
	}
	if p.IsActive != nil {
		d.IsActive = *p.IsActive
	}
	if p.IsFeatured != nil {
		d.IsFeatured = *p.IsFeatured
	}
	if p.ClearDiscountPrice {
		d.DiscountPrice = nil
	} else if p.DiscountPrice != nil {
		dp := *p.DiscountPrice
		d.DiscountPrice = &dp
	}
	s.changed()
}

// AppendMedia adds a media reference, refusing to exceed MaxMediaItems.
func (s *DraftStore) AppendMedia(ref string) error {
	if len(s.draft.Media) >= models.MaxMediaItems {
		return ErrMediaLimitReached
	}
	s.draft.Media = append(s.draft.Media, ref)
	s.changed()
	return nil
}

// RemoveMedia drops the media reference at index, keeping order.
func (s *DraftStore) RemoveMedia(index int) error {
	if index < 0 || index >= len(s.draft.Media) {
		return ErrMediaIndexRange
	}
	media := make([]string, 0, len(s.draft.Media)-1)
	media = append(media, s.draft.Media[:index]...)
	media = append(media, s.draft.Media[index+1:]...)
	s.draft.Media = media
	s.changed()
	return nil
}

// UpsertVariantGroup replaces the group with the same name (case-insensitive)
// or appends it, so a variant type never appears twice.
func (s *DraftStore) UpsertVariantGroup(g models.VariantGroup) {
	g = g.Clone()
	key := normalizeKey(g.Name)
	for i, existing := range s.draft.VariantGroups {
		if normalizeKey(existing.Name) == key {
			s.draft.VariantGroups[i] = g
			s.changed()
			return
		}
	}
	s.draft.VariantGroups = append(s.draft.VariantGroups, g)
	s.changed()
}

// RemoveVariantGroup deletes the group with the given name.
func (s *DraftStore) RemoveVariantGroup(name string) error {
	key := normalizeKey(name)
	for i, existing := range s.draft.VariantGroups {
		if normalizeKey(existing.Name) == key {
			s.draft.VariantGroups = append(s.draft.VariantGroups[:i], s.draft.VariantGroups[i+1:]...)
			s.changed()
			return nil
		}
	}
	return ErrVariantGroupAbsent
}

// Reset discards the draft and starts over with an empty one.
func (s *DraftStore) Reset() {
	s.draft = models.NewDraft()
	s.changed()
}

func (s *DraftStore) changed() {
	if len(s.observers) == 0 {
		return
	}
	snapshot := s.draft.Clone()
	for _, fn := range s.observers {
		fn(snapshot)
	}
}
