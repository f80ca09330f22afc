// Package normalize canonicalizes user input before it is stored or compared.
package normalize

import (
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// Email trims and case-folds an email address so it can serve as a key.
func Email(s string) string {
	return text.Fold(strings.TrimSpace(s))
}

// Name trims surrounding whitespace and preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Role trims and lowercases a role name.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
