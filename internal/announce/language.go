// Package announce decides when a recognized gesture should be spoken and
// what phrase should be spoken for it.
package announce

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLanguage is returned when a language name is not supported.
var ErrInvalidLanguage = errors.New("invalid language")

// Language identifies the announcement language.
type Language int

const (
	// English is the default language.
	English Language = iota
	// Hindi uses the translation table for known labels.
	Hindi
)

// String returns the lowercase wire name used by the HTTP API.
func (l Language) String() string {
	switch l {
	case Hindi:
		return "hindi"
	default:
		return "english"
	}
}

// DisplayName returns the name shown to users.
func (l Language) DisplayName() string {
	switch l {
	case Hindi:
		return "Hindi"
	default:
		return "English"
	}
}

// Code returns the two letter ISO 639-1 code.
func (l Language) Code() string {
	switch l {
	case Hindi:
		return "hi"
	default:
		return "en"
	}
}

// ParseLanguage accepts "english", "en", "hindi" or "hi" in any case.
func ParseLanguage(s string) (Language, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "english", "en":
		return English, nil
	case "hindi", "hi":
		return Hindi, nil
	default:
		return English, fmt.Errorf("%w: %q", ErrInvalidLanguage, s)
	}
}

// Available returns the supported languages by display name.
func Available() []string {
	return []string{English.DisplayName(), Hindi.DisplayName()}
}
