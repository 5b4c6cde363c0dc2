package util

import (
	"github.com/google/uuid"
)

const canonicalUUIDLength = 36

// IsValidUUID accepts only the canonical 8-4-4-4-12 form.
func IsValidUUID(s string) bool {
	if len(s) != canonicalUUIDLength {
		return false
	}
	return uuid.Validate(s) == nil
}

// IsValidEnum reports whether value is one of validValues. Empty values pass
// so callers can apply their own default.
func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
