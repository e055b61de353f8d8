package middleware

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var licenseKeyPattern = regexp.MustCompile(`^[0-9A-F]{5}-[0-9A-F]{5}-[0-9A-F]{4}-[0-9A-F]{7}-[0-9A-F]{7}$`)

// Validator wraps go-playground/validator with the custom rules the
// provisioning endpoints rely on.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a validator that reports field names from json
// tags and understands the derived license key format.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("licensekey", validateLicenseKey)
	_ = v.RegisterValidation("subscriptionid", validateSubscriptionID)

	return &Validator{validate: v}
}

// ValidateStruct validates a request payload, flattening validator
// errors into a single human-readable message.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "licensekey":
		return fmt.Sprintf("%s is not a valid license key", fe.Field())
	case "subscriptionid":
		return fmt.Sprintf("%s is not a valid subscription id", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func validateLicenseKey(fl validator.FieldLevel) bool {
	return licenseKeyPattern.MatchString(fl.Field().String())
}

// Subscription ids arrive from the billing platform as opaque tokens;
// reject anything with whitespace or path separators before it reaches
// a URL.
func validateSubscriptionID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, " \t/\\")
}
