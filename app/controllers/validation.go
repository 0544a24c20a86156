package controllers

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	validate      = newValidator()
	inMobileRegex = regexp.MustCompile(`^[6-9]\d{9}$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("in_mobile", validateIndianMobile)
	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateIndianMobile accepts ten digit mobile numbers starting with 6-9
func validateIndianMobile(fl validator.FieldLevel) bool {
	return inMobileRegex.MatchString(fl.Field().String())
}

// validateStruct returns the failed fields with a message each, or nil
func validateStruct(data interface{}) map[string]string {
	err := validate.Struct(data)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return map[string]string{"general": err.Error()}
	}
	out := make(map[string]string, len(validationErrs))
	for _, fieldErr := range validationErrs {
		out[fieldErr.Field()] = errorMessage(fieldErr)
	}
	return out
}

func errorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", err.Field())
	case "email":
		return "Invalid email"
	case "in_mobile":
		return "Invalid mobile number"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", err.Field(), err.Param())
	case "len":
		return fmt.Sprintf("%s must be %s characters long", err.Field(), err.Param())
	case "hexadecimal":
		return fmt.Sprintf("%s must be hexadecimal", err.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param())
	default:
		return fmt.Sprintf("%s is invalid", err.Field())
	}
}
