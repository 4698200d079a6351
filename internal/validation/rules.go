// Package validation evaluates data-driven rule sets: an ordered list of
// {field, required, range, length, enumeration} rules checked by one generic
// validator backed by go-playground/validator.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"streamhub/internal/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator instance.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Rule constrains one field. Zero values mean "no constraint".
type Rule struct {
	Field    string
	Required bool
	Min      *float64 // numeric lower bound, inclusive
	Max      *float64 // numeric upper bound, inclusive
	MaxLen   int      // string length upper bound
	OneOf    []string // enumeration
	Format   string   // extra validator tag, e.g. "email" or "url"
}

func Bound(v float64) *float64 { return &v }

// tag renders the rule as a validator tag for a present (non-nil) value.
// Presence of non-string values is decided before the tag is evaluated, so
// only strings get required/omitempty (an empty optional enum means unset).
func (r Rule) tag(val any) string {
	var parts []string
	if _, isString := val.(string); isString {
		if r.Required {
			parts = append(parts, "required")
		} else {
			parts = append(parts, "omitempty")
		}
	}
	if r.Min != nil {
		parts = append(parts, "min="+formatBound(*r.Min))
	}
	if r.Max != nil {
		parts = append(parts, "max="+formatBound(*r.Max))
	}
	if r.MaxLen > 0 {
		parts = append(parts, "max="+strconv.Itoa(r.MaxLen))
	}
	if len(r.OneOf) > 0 {
		parts = append(parts, "oneof="+strings.Join(r.OneOf, " "))
	}
	if r.Format != "" {
		parts = append(parts, r.Format)
	}
	return strings.Join(parts, ",")
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RuleSet is evaluated in order so error output is stable.
type RuleSet struct {
	Entity string
	Rules  []Rule
}

// Validate checks values (field name -> value; nil or missing means absent)
// and returns *apperr.ValidationError listing every failing field.
func (rs RuleSet) Validate(values map[string]any) error {
	v := Get()
	var violations []apperr.FieldViolation

	for _, r := range rs.Rules {
		val, ok := values[r.Field]
		if !ok || val == nil {
			if r.Required {
				violations = append(violations, apperr.FieldViolation{
					Field: r.Field, Rule: "required", Message: "is required",
				})
			}
			continue
		}

		tag := r.tag(val)
		if tag == "" {
			continue
		}
		err := v.Var(val, tag)
		if err == nil {
			continue
		}
		fieldErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate %s.%s: %w", rs.Entity, r.Field, err)
		}
		for _, fe := range fieldErrs {
			violations = append(violations, apperr.FieldViolation{
				Field:   r.Field,
				Rule:    fe.Tag(),
				Message: message(r, fe),
			})
		}
	}

	if len(violations) > 0 {
		return &apperr.ValidationError{Entity: rs.Entity, Fields: violations}
	}
	return nil
}

func message(r Rule, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.Join(r.OneOf, ", ")
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		if r.MaxLen > 0 {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	default:
		return "must be a valid " + fe.Tag()
	}
}

// Opt turns a nil pointer into an absent value and dereferences the rest.
func Opt[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
