// Package validation wraps go-playground/validator with the custom tags used
// by subscription requests and broker configuration.
package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"stripe-webhook-router/internal/common/errors"
)

var (
	endpointPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
	eventTypePattern = regexp.MustCompile(`^(\*|[a-z0-9_]+(\.[a-z0-9_]+)*(\.\*)?)$`)
	brokerTypes      = []string{"none", "rabbitmq", "redis", "kafka", "aws", "gcp"}
)

// Validator validates structs using tags
type Validator struct {
	validate *validator.Validate
}

// FieldError describes one failed rule. Field values are deliberately absent
// because request structs carry credentials.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// New creates a validator with the custom tags registered
func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("endpoint_slug", func(fl validator.FieldLevel) bool {
		return endpointPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		return eventTypePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("cron_spec", func(fl validator.FieldLevel) bool {
		return ValidCronSpec(fl.Field().String())
	})
	_ = v.RegisterValidation("broker_type", func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, t := range brokerTypes {
			if value == t {
				return true
			}
		}
		return false
	})

	return &Validator{validate: v}
}

// ValidCronSpec reports whether spec parses with the standard parser,
// including descriptors such as "@every 1h"
func ValidCronSpec(spec string) bool {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	_, err := parser.Parse(spec)
	return err == nil
}

// Struct validates s and returns a validation AppError listing every failure
func (v *Validator) Struct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	fieldErrors := v.FieldErrors(err)
	messages := make([]string, len(fieldErrors))
	for i, fe := range fieldErrors {
		messages[i] = fe.Message
	}

	appErr := errors.ValidationError(strings.Join(messages, "; ")).WithCode("invalid_request")
	return appErr.WithContext("fields", fieldErrors)
}

// FieldErrors converts validator errors into FieldError values
func (v *Validator) FieldErrors(err error) []FieldError {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "unknown", Tag: "error", Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(validationErrs))
	for _, fe := range validationErrs {
		out = append(out, FieldError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Message: message(fe),
		})
	}
	return out
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("field '%s' is required", field)
	case "min":
		return fmt.Sprintf("field '%s' must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("field '%s' must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("field '%s' must be one of: %s", field, fe.Param())
	case "hostname_port":
		return fmt.Sprintf("field '%s' must be host:port", field)
	case "endpoint_slug":
		return fmt.Sprintf("field '%s' may only contain letters, digits, '-' and '_'", field)
	case "event_type":
		return fmt.Sprintf("field '%s' must be an event type such as 'checkout.session.completed'", field)
	case "cron_spec":
		return fmt.Sprintf("field '%s' must be a valid cron schedule", field)
	case "broker_type":
		return fmt.Sprintf("field '%s' must be one of: %s", field, strings.Join(brokerTypes, ", "))
	default:
		return fmt.Sprintf("field '%s' failed validation: %s", field, fe.Tag())
	}
}

var defaultValidator = New()

// ValidateStruct validates s with the shared validator
func ValidateStruct(s interface{}) error {
	return defaultValidator.Struct(s)
}
