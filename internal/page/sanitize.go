package page

import (
	"fmt"
	"regexp"
	"strings"
)

const maxSelectorLength = 1000

// selectorAllowed covers identifiers, whitespace and CSS selector punctuation,
// including attribute values and escaped characters.
var selectorAllowed = regexp.MustCompile(`^[a-zA-Z0-9\s\-_#.\[\]="':(),>+~*^$|/\\@?&%!]+$`)

// eventHandlerAssignment matches inline handlers such as onclick= or onload =.
var eventHandlerAssignment = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)

var dangerousSubstrings = []string{"javascript:", "<script", "</script", "vbscript:", "data:text/html"}

// SanitizeSelector trims selector and rejects anything outside the CSS
// selector alphabet or carrying script injection.
func SanitizeSelector(selector string) (string, error) {
	s := strings.TrimSpace(selector)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidSelector)
	}
	if len(s) > maxSelectorLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidSelector, maxSelectorLength)
	}

	lower := strings.ToLower(s)
	for _, bad := range dangerousSubstrings {
		if strings.Contains(lower, bad) {
			return "", fmt.Errorf("%w: contains %q", ErrInvalidSelector, bad)
		}
	}
	if eventHandlerAssignment.MatchString(s) {
		return "", fmt.Errorf("%w: contains an event handler", ErrInvalidSelector)
	}
	if !selectorAllowed.MatchString(s) {
		return "", fmt.Errorf("%w: unsupported characters", ErrInvalidSelector)
	}
	return s, nil
}
