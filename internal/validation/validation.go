// Package validation evaluates declarative field constraints.
//
// Constraints are written as `validate` struct tags (required, min, max, gt, sport).
// Validate returns every violated constraint instead of stopping at the first one.
package validation

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fenggwsx/SportChat/internal/apperr"
)

// Validator evaluates struct-tag constraints.
type Validator struct {
	validate *validator.Validate
	sports   map[string]struct{}
}

// New returns a Validator whose "sport" rule accepts the given sports.
func New(sports []string) *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		sports:   make(map[string]struct{}, len(sports)),
	}
	for _, sport := range sports {
		v.sports[normalizeSport(sport)] = struct{}{}
	}
	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// RegisterValidation only fails for an empty tag or a nil func.
	_ = v.validate.RegisterValidation("sport", func(fl validator.FieldLevel) bool {
		return v.Sport(fl.Field().String())
	})
	return v
}

// Validate returns the violations of s, or nil when every constraint holds.
func (v *Validator) Validate(s interface{}) []apperr.Violation {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []apperr.Violation{{Field: "", Rule: "struct", Message: err.Error()}}
	}
	violations := make([]apperr.Violation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, apperr.Violation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: messageFor(fe.Field(), fe),
		})
	}
	return violations
}

// Field is one entry of a validation descriptor: a named value and its rules,
// written in struct-tag syntax ("required,min=6").
type Field struct {
	Name  string
	Value interface{}
	Rules string
}

// Fields evaluates a descriptor and returns every violation in field order.
func (v *Validator) Fields(fields ...Field) []apperr.Violation {
	var violations []apperr.Violation
	for _, f := range fields {
		err := v.validate.Var(f.Value, f.Rules)
		if err == nil {
			continue
		}
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			violations = append(violations, apperr.Violation{Field: f.Name, Rule: f.Rules, Message: err.Error()})
			continue
		}
		for _, fe := range fieldErrs {
			violations = append(violations, apperr.Violation{
				Field:   f.Name,
				Rule:    fe.Tag(),
				Message: messageFor(f.Name, fe),
			})
		}
	}
	return violations
}

// CheckFields is Fields reported as an error matching apperr.ErrInvalidInput.
func (v *Validator) CheckFields(fields ...Field) error {
	if violations := v.Fields(fields...); len(violations) > 0 {
		return apperr.Invalid(violations...)
	}
	return nil
}

// Check is Validate reported as an error matching apperr.ErrInvalidInput.
func (v *Validator) Check(s interface{}) error {
	if violations := v.Validate(s); len(violations) > 0 {
		return apperr.Invalid(violations...)
	}
	return nil
}

// Sport reports whether sport is accepted by the "sport" rule.
func (v *Validator) Sport(sport string) bool {
	if len(v.sports) == 0 {
		return true
	}
	_, ok := v.sports[normalizeSport(sport)]
	return ok
}

func messageFor(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must have at most %s characters", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "sport":
		return fmt.Sprintf("%s is not a supported sport", field)
	default:
		return fmt.Sprintf("%s has an invalid format", field)
	}
}

func normalizeSport(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}
