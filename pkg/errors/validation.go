package errors

import (
	"strings"
	"unicode"
)

// maxTextLength bounds every free-text field on a card (title, stats, footer, name).
const maxTextLength = 256

// ValidateText validates a free-text card field for safety.
// Empty text is allowed; fields are optional unless the caller says otherwise.
//
// The validation rules are intentionally conservative:
//   - Maximum length of 256 characters
//   - No control characters (newlines included, cards draw single lines)
func ValidateText(field, text string) error {
	if len([]rune(text)) > maxTextLength {
		return New(ErrCodeInvalidInput, "%s too long (max %d characters)", field, maxTextLength)
	}
	for _, r := range text {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "%s contains invalid control characters", field)
		}
	}
	return nil
}

// ValidateImageURL validates the footer flag location.
// It accepts http(s) URLs, data URLs, file URLs and plain relative or absolute paths.
func ValidateImageURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "image URL cannot be empty")
	}
	if strings.ContainsRune(rawURL, '\x00') {
		return New(ErrCodeInvalidInput, "image URL contains invalid characters")
	}

	if i := strings.Index(rawURL, ":"); i > 1 {
		switch strings.ToLower(rawURL[:i]) {
		case "http", "https", "data", "file":
			return nil
		default:
			return New(ErrCodeInvalidInput, "image URL must use http, https, data or file scheme")
		}
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
