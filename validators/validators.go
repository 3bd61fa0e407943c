package validators

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

var global = New()

const (
	ErrInvalidFormat      = "invalid format"
	ErrFieldRequired      = "field is required"
	ErrFieldExceedsMaxLen = "field exceeds maximum length"
	ErrFieldBelowMinLen   = "field is below minimum length"
	ErrFieldExceedsMaxVal = "field exceeds maximum value"
	ErrFieldBelowMinVal   = "field is below minimum value"
	ErrUnknownValidation  = "unknown validation error"
)

func New() *validator.Validate {
	return validator.New()
}

// Validate checks struct tags and reports the first violation with a
// humanized message naming the field.
func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(global.StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) || len(vErrors) == 0 {
		return err
	}
	ve := vErrors[0]
	var msg string
	switch ve.Tag() {
	case "required":
		msg = ErrFieldRequired
	case "email":
		msg = ErrInvalidFormat
	case "max":
		msg = ErrFieldExceedsMaxLen
	case "min":
		msg = ErrFieldBelowMinLen
	case "lt", "lte":
		msg = ErrFieldExceedsMaxVal
	case "gt", "gte":
		msg = ErrFieldBelowMinVal
	default:
		msg = ErrUnknownValidation
	}
	return errors.New(msg + ": " + ve.Namespace())
}
