package defects

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer turns user input into plain text
type Sanitizer interface {
	Sanitize(s string) string
}

// NewTextSanitizer strips every HTML element
func NewTextSanitizer() Sanitizer {
	return bluemonday.StrictPolicy()
}

func sanitizeText(s Sanitizer, in string) string {
	if s == nil {
		s = NewTextSanitizer()
	}
	return strings.TrimSpace(s.Sanitize(in))
}
