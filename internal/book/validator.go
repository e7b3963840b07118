package book

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("field", validateField)
}

func validateField(fl validator.FieldLevel) bool {
	return Field(fl.Field().String()).Valid()
}

// Validate checks a request value against its struct tags and wraps any failure in ErrInvalidRequest.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		var message string
		switch fe.Tag() {
		case "field":
			message = fmt.Sprintf("%s: unknown field %q", field, fe.Value())
		case "oneof":
			message = fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
		case "gte":
			message = fmt.Sprintf("%s must be >= %s", field, fe.Param())
		case "min":
			message = fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
		default:
			message = fmt.Sprintf("%s is invalid", field)
		}
		messages = append(messages, message)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(messages, "; "))
}

// ValidatePatch rejects empty and malformed updates.
func ValidatePatch(p Patch) error {
	if p.IsEmpty() {
		return ErrEmptyPatch
	}
	return Validate(p)
}
