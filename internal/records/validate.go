package records

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/registramood/moodtracker/internal/db"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct reports the first failing field as a *db.ValidationError.
func validateStruct(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return db.NewValidationError(fe.Field(), fieldMessage(fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("validating input: %w", err)
}

func fieldMessage(field, tag string) string {
	switch tag {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "url":
		return field + " must be a valid URL"
	default:
		return field + " is invalid"
	}
}

// patchString validates an optional patch field. Present values are trimmed
// and must not be empty.
func patchString(field string, v *string) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil, db.NewValidationError(field, field+" must not be empty")
	}
	return &s, nil
}

// patchVar is patchString plus a validator tag check on the trimmed value.
func patchVar(field string, v *string, tag string) (*string, error) {
	s, err := patchString(field, v)
	if err != nil || s == nil {
		return s, err
	}
	if err := validate.Var(*s, tag); err != nil {
		return nil, db.NewValidationError(field, fieldMessage(field, tag))
	}
	return s, nil
}

func trim(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}
