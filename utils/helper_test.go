package utils

import "testing"

func TestValidatePhoneNumber_DefaultRegion(t *testing.T) {
	// vendor phone numbers are validated against the default region
	if err := ValidatePhoneNumber("(212) 555-0143", CountryCode); err != nil {
		t.Fatalf("expected a valid number for region %s, got %v", CountryCode, err)
	}
	if err := ValidatePhoneNumber("12", CountryCode); err == nil {
		t.Fatalf("expected an error for a malformed number")
	}
}
