package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/icco/animeportal/lib/apperr"
)

var trPhoneRegex = regexp.MustCompile(`^\+90\d{10}$`)

// Validator wraps go-playground/validator and reports failures as
// apperr validation errors keyed by JSON field name.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	// Turkish mobile numbers in +90XXXXXXXXXX form
	_ = v.RegisterValidation("trphone", func(fl validator.FieldLevel) bool {
		return trPhoneRegex.MatchString(fl.Field().String())
	})

	return &Validator{v: v}
}

// Validate checks s and returns a *apperr.Error with per-field details.
func (v *Validator) Validate(s any) error {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make(map[string]string, len(verrs))
	for _, e := range verrs {
		fields[e.Field()] = friendlyMessage(e)
	}
	return apperr.ValidationWithDetails("validation failed", fields)
}

func friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", e.Param())
	case "oneof":
		return "must be one of: " + e.Param()
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	case "alphanum":
		return "must contain only letters and digits"
	case "numeric":
		return "must contain only digits"
	case "url":
		return "must be a valid URL"
	case "trphone":
		return "must look like +90XXXXXXXXXX"
	case "eqfield":
		return "must match " + e.Param()
	default:
		return "is invalid"
	}
}
