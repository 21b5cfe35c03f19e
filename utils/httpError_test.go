package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPError_Taxonomy(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{ErrUnauthenticated, http.StatusUnauthorized, "access token required"},
		{fmt.Errorf("%w: token expired", ErrInvalidToken), http.StatusUnauthorized, "invalid or expired token"},
		{ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{fmt.Errorf("%w: manager cannot create", ErrForbidden), http.StatusForbidden, "access denied"},
		{NotFound("lead"), http.StatusNotFound, "lead not found"},
		{ErrConflict, http.StatusBadRequest, "user already exists"},
		{NewValidationError("name", "required"), http.StatusBadRequest, "validation failed"},
		{errors.New("connection reset"), http.StatusInternalServerError, "Server error"},
	}
	for _, tc := range cases {
		status, body := HTTPError(tc.err)
		if status != tc.status || body.Error != tc.message {
			t.Fatalf("HTTPError(%v) = %d %q, expected %d %q", tc.err, status, body.Error, tc.status, tc.message)
		}
	}
}

func TestHTTPError_ValidationFields(t *testing.T) {
	v := &ValidationError{}
	v.Add("name", "required")
	v.Add("probability", "must be between 0 and 100")
	_, body := HTTPError(v.OrNil())
	if body.Fields["name"] != "required" || len(body.Fields) != 2 {
		t.Fatalf("unexpected fields: %v", body.Fields)
	}
	if got := v.Error(); got != "invalid input: name required, probability must be between 0 and 100" {
		t.Fatalf("unexpected message: %s", got)
	}
}

func TestValidationError_OrNil(t *testing.T) {
	v := &ValidationError{}
	if v.OrNil() != nil {
		t.Fatalf("expected nil for empty validation error")
	}
	if !errors.Is(NotFound("opportunity"), ErrorRecordNotFound) {
		t.Fatalf("NotFound must wrap ErrorRecordNotFound")
	}
}

func TestValidatePhoneNumber(t *testing.T) {
	for _, ok := range []string{"555-0001", "+1 415 555 2671", "(212) 555-1234"} {
		if err := ValidatePhoneNumber(ok, "US"); err != nil {
			t.Fatalf("ValidatePhoneNumber(%q): %v", ok, err)
		}
	}
	for _, bad := range []string{"hello", "x"} {
		if err := ValidatePhoneNumber(bad, "US"); err == nil {
			t.Fatalf("ValidatePhoneNumber(%q) expected error", bad)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("rep@example.com") {
		t.Fatalf("expected valid email")
	}
	for _, bad := range []string{"", "rep", "rep@", "rep@example"} {
		if IsValidEmail(bad) {
			t.Fatalf("IsValidEmail(%q) expected false", bad)
		}
	}
	if NormalizeEmail("  Rep@Example.COM ") != "rep@example.com" {
		t.Fatalf("NormalizeEmail did not lowercase and trim")
	}
}
