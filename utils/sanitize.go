package utils

import "github.com/microcosm-cc/bluemonday"

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips HTML from externally supplied display fields.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
