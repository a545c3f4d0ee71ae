package services

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?1?\d{9,15}$`)

const (
	minGraduationYear   = 1900
	graduationYearAhead = 5
)

// newValidator registers the custom tags used on input types.
func newValidator(now func() time.Time) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("gradyear", func(fl validator.FieldLevel) bool {
		year := int(fl.Field().Int())
		return year >= minGraduationYear && year <= now().Year()+graduationYearAhead
	})
	return v
}

// validationError turns validator output into a single readable message.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return invalid(err.Error())
	}
	fe := errs[0]
	field := fieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return invalid(fmt.Sprintf("%s is required", field))
	case "min":
		return invalid(fmt.Sprintf("%s must not be empty", field))
	case "max":
		return invalid(fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	case "email":
		return invalid(fmt.Sprintf("%s must be a valid email address", field))
	case "phone":
		return invalid(fmt.Sprintf("%s must be a valid phone number", field))
	case "oneof":
		return invalid(fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
	case "gradyear":
		return invalid(fmt.Sprintf("%s is out of range", field))
	default:
		return invalid(fmt.Sprintf("%s is invalid", field))
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
