// Package validation checks session records and remote-control request bodies
// using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/listenupapp/listenup-player/internal/domain"
	domainerrors "github.com/listenupapp/listenup-player/internal/errors"
)

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for our domain.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	v.RegisterStructValidation(validateSession, domain.PlaySession{})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// validateSession enforces the ordering rules of a persisted session.
func validateSession(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(domain.PlaySession)
	if !ok {
		return
	}

	if s.EndTime != nil && s.EndTime.Before(s.StartTime) {
		sl.ReportError(s.EndTime, "end_time", "EndTime", "gtefield", "start_time")
	}
	if s.EndPosition != nil && *s.EndPosition <= s.StartPosition {
		sl.ReportError(s.EndPosition, "end_position", "EndPosition", "gtfield", "start_position")
	}

	for i := range s.Segments {
		seg := &s.Segments[i]
		if seg.EndTime != nil && seg.EndTime.Before(seg.StartTime) {
			sl.ReportError(seg.EndTime, fmt.Sprintf("segments[%d].end_time", i), "EndTime", "gtefield", "start_time")
		}
		if i == 0 {
			continue
		}
		prev := &s.Segments[i-1]
		if prev.EndTime == nil || seg.StartTime.Before(*prev.EndTime) {
			sl.ReportError(seg.StartTime, fmt.Sprintf("segments[%d].start_time", i), "StartTime", "ordered", "")
		}
	}
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	return domainerrors.ValidationWithDetails("validation failed", fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "gt":
		return "must be greater than " + e.Param()
	case "lt":
		return "must be less than " + e.Param()
	case "gtefield":
		return "must not be before " + e.Param()
	case "gtfield":
		return "must be greater than " + e.Param()
	case "ordered":
		return "must not start before the previous segment ends"
	default:
		return "is invalid"
	}
}
