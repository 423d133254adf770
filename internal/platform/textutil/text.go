package textutil

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var plainTextPolicy = bluemonday.StrictPolicy()

// CleanLine normalises free-form user text for storage: markup is stripped, the result is NFKC
// normalised, control characters are dropped and whitespace runs collapse to a single space.
func CleanLine(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	stripped := html.UnescapeString(plainTextPolicy.Sanitize(value))
	normalized := norm.NFKC.String(stripped)

	var b strings.Builder
	b.Grow(len(normalized))
	space := false
	for _, r := range normalized {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsControl(r):
		default:
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanCode normalises short identifiers such as postal or size codes: CleanLine plus upper case.
func CleanCode(value string) string {
	return strings.ToUpper(CleanLine(value))
}

// NormalizeStringMap trims keys and values, removing entries with empty keys.
func NormalizeStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		result[trimmedKey] = strings.TrimSpace(value)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
