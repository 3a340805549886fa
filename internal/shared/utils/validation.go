package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Descriptor field limits, counted in runes
const (
	MaxIDLength          = 128
	MaxNameLength        = 256
	MaxVersionLength     = 64
	MaxDescriptionLength = 2048
	MaxPathLength        = 512
	MaxTagLength         = 32
	MaxTagCount          = 20
)

// ComponentIDPattern matches identifiers that are safe as a single directory
// name: alphanumerics, dots, hyphens and underscores, never a leading dot.
var ComponentIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-][a-zA-Z0-9._-]*$`)

// ValidateString checks a descriptor field's length and rejects control
// characters other than tab and newline.
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}

	switch n := utf8.RuneCountInString(value); {
	case n < minLen:
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	case n > maxLen:
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if i := strings.IndexFunc(value, isForbiddenControl); i >= 0 {
		return fmt.Errorf("%s contains a control character at byte %d", fieldName, i)
	}
	return nil
}

func isForbiddenControl(r rune) bool {
	return unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r'
}

// ValidateComponentID checks an identifier that becomes an install directory
func ValidateComponentID(id, fieldName string) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, true); err != nil {
		return err
	}
	if !ComponentIDPattern.MatchString(id) {
		return fmt.Errorf("%s %q may only contain letters, digits, dots, hyphens and underscores", fieldName, id)
	}
	return nil
}

// ValidateTags bounds the tag count and each tag's length
func ValidateTags(tags []string) error {
	if len(tags) > MaxTagCount {
		return fmt.Errorf("too many tags: %d (maximum %d)", len(tags), MaxTagCount)
	}
	for i, tag := range tags {
		if err := ValidateString(tag, fmt.Sprintf("tag[%d]", i), 1, MaxTagLength, false); err != nil {
			return err
		}
	}
	return nil
}
