package utils

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ttacon/libphonenumber"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// NormalizeEmail lowercases and trims, so lookups and the unique index agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidatePhoneNumber accepts anything libphonenumber can parse for the region.
// Local numbers that are not dialable on their own (e.g. "555-0001") still pass;
// only strings that are not phone numbers at all are rejected.
func ValidatePhoneNumber(phoneNumber, countryCode string) error {
	if _, err := libphonenumber.Parse(phoneNumber, countryCode); err != nil {
		return err
	}
	return nil
}

// ProcessValidationErrors turns binding errors into a ValidationError keyed by
// field name. Non-validator errors (bad JSON) are reported under "body".
func ProcessValidationErrors(err error) *ValidationError {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return NewValidationError("body", err.Error())
	}

	result := &ValidationError{}
	for _, ve := range validationErrors {
		result.Add(LowercaseFirst(ve.Field()), ve.Tag())
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// turn ExpectedCloseDate to expectedCloseDate
func LowercaseFirst(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = []rune(strings.ToLower(string(runes[0])))[0]
	return string(runes)
}
