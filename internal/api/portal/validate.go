package portal

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate checks request payloads before they are sent.
//
//nolint:gochecknoglobals // validator caches struct metadata; one instance per process.
var validate = newValidator()

// newValidator builds a validator that reports JSON field names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}

		return name
	})

	return v
}

// validateRequest validates req and converts failures into ErrInvalidRequest.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, describe(fe))
	}

	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(messages, "; "))
}

// describe renders one field error.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "alphanum":
		return fe.Field() + " must contain only letters and digits"
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", fe.Field(), fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
