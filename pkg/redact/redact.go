// Package redact holds the masking rule shared by every surface that reports
// configuration or secret-derived values.
package redact

import (
	"fmt"
	"strings"
)

// Placeholder replaces the value of a sensitive entry.
const Placeholder = "******"

var sensitiveMarkers = []string{"PASSWORD", "SECRET", "TOKEN"}

// IsSensitive reports whether a variable or attribute name marks its value as
// secret material. Matching is case-insensitive.
func IsSensitive(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Mask returns the placeholder plus the length of value.
func Mask(value string) string {
	return fmt.Sprintf("%s (length: %d)", Placeholder, len(value))
}

// Value masks value when name is sensitive and returns it unchanged otherwise.
func Value(name, value string) string {
	if IsSensitive(name) {
		return Mask(value)
	}
	return value
}
