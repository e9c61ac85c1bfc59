package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"product-wizard-service/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Per-step views. Each carries the fields its step owns, already trimmed.

type basicsView struct {
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price" validate:"gt=0"`
	Category string          `json:"category" validate:"required"`
}

type detailsView struct {
	InventoryCount int              `json:"inventory_count" validate:"gte=0"`
	DiscountPrice  *decimal.Decimal `json:"discount_price" validate:"omitempty,gt=0"`
}

type mediaView struct {
	Media []string `json:"media" validate:"min=1,max=10,dive,required"`
}

type optionsView struct {
	VariantGroups []models.VariantGroup `json:"variant_groups" validate:"dive"`
}

type reviewView struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"gt=0"`
}

// ValidationEngine computes field errors for a draft. It is stateless and
// safe for concurrent use.
type ValidationEngine struct {
	validate *validator.Validate
}

func NewValidationEngine() *ValidationEngine {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return &ValidationEngine{validate: v}
}

// ValidateStep returns the errors that block leaving step.
func (e *ValidationEngine) ValidateStep(step models.Step, d models.Draft) []models.FieldError {
	switch step {
	case models.StepBasics:
		return e.check(step, basicsView{
			Name:     strings.TrimSpace(d.Name),
			Price:    d.Price,
			Category: strings.TrimSpace(d.Category),
		})
	case models.StepDetails:
		errs := e.check(step, detailsView{InventoryCount: d.InventoryCount, DiscountPrice: d.DiscountPrice})
		return append(errs, detailRules(d)...)
	case models.StepMedia:
		return e.check(step, mediaView{Media: d.Media})
	case models.StepOptions:
		errs := e.check(step, optionsView{VariantGroups: d.VariantGroups})
		return append(errs, variantGroupRules(d)...)
	case models.StepReview:
		return e.check(step, reviewView{Name: strings.TrimSpace(d.Name), Price: d.Price})
	default:
		// identify has no required fields
		return nil
	}
}

// ValidateAll runs every step's rules and keeps one error per field, the
// earliest step winning.
func (e *ValidationEngine) ValidateAll(d models.Draft) []models.FieldError {
	var out []models.FieldError
	seen := make(map[string]bool)
	for s := models.Step(0); int(s) < models.StepCount; s++ {
		for _, fe := range e.ValidateStep(s, d) {
			if seen[fe.Field] {
				continue
			}
			seen[fe.Field] = true
			out = append(out, fe)
		}
	}
	return out
}

func (e *ValidationEngine) check(step models.Step, view interface{}) []models.FieldError {
	err := e.validate.Struct(view)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []models.FieldError{{Step: step, Field: "draft", Message: err.Error()}}
	}
	out := make([]models.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		out = append(out, models.FieldError{Step: step, Field: field, Message: messageFor(field, fe)})
	}
	return out
}

// fieldPath strips the view's type name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageFor(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s item(s)", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s allows at most %s items", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s check", field, fe.Tag())
	}
}

func detailRules(d models.Draft) []models.FieldError {
	var out []models.FieldError
	if d.DiscountPrice != nil && d.DiscountPrice.IsPositive() && d.Price.IsPositive() && !d.DiscountPrice.LessThan(d.Price) {
		out = append(out, models.FieldError{
			Step:    models.StepDetails,
			Field:   "discount_price",
			Message: "discount_price must be lower than price",
		})
	}
	w := d.ScheduleWindow
	if w.PublishAt != nil && w.ExpireAt != nil && !w.ExpireAt.After(*w.PublishAt) {
		out = append(out, models.FieldError{
			Step:    models.StepDetails,
			Field:   "schedule_window.expire_at",
			Message: "schedule_window.expire_at must be after publish_at",
		})
	}
	return out
}

func variantGroupRules(d models.Draft) []models.FieldError {
	var out []models.FieldError
	seen := make(map[string]bool)
	for i, g := range d.VariantGroups {
		key := normalizeKey(g.Name)
		if key == "" {
			continue
		}
		if seen[key] {
			field := fmt.Sprintf("variant_groups[%d].name", i)
			out = append(out, models.FieldError{
				Step:    models.StepOptions,
				Field:   field,
				Message: fmt.Sprintf("variant group %q is defined more than once", g.Name),
			})
			continue
		}
		seen[key] = true
	}
	return out
}

// ErrorSet holds the errors last reported to the user.
type ErrorSet struct {
	errs []models.FieldError
}

// ReplaceStep swaps the errors recorded for step with errs.
func (s *ErrorSet) ReplaceStep(step models.Step, errs []models.FieldError) {
	kept := s.errs[:0:0]
	for _, fe := range s.errs {
		if fe.Step != step {
			kept = append(kept, fe)
		}
	}
	s.errs = append(kept, errs...)
}

// Set replaces every recorded error.
func (s *ErrorSet) Set(errs []models.FieldError) {
	s.errs = append([]models.FieldError(nil), errs...)
}

// ForField returns the first error recorded for field, or nil.
func (s *ErrorSet) ForField(field string) *models.FieldError {
	for i := range s.errs {
		if s.errs[i].Field == field {
			fe := s.errs[i]
			return &fe
		}
	}
	return nil
}

// ForStep returns every error recorded for step.
func (s *ErrorSet) ForStep(step models.Step) []models.FieldError {
	out := []models.FieldError{}
	for _, fe := range s.errs {
		if fe.Step == step {
			out = append(out, fe)
		}
	}
	return out
}

// All returns a copy of every recorded error.
func (s *ErrorSet) All() []models.FieldError {
	return append([]models.FieldError{}, s.errs...)
}

func (s *ErrorSet) Clear() {
	s.errs = nil
}
