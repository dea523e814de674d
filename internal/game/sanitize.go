// internal/game/sanitize.go
package game

import (
	"strings"
)

// Charset lists the characters allowed in names and group ids.
const Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_ ."

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// MaxStringLength bounds names and group ids (exclusive).
const MaxStringLength = 32

// SanitizeString drops invalid UTF-8 and trims surrounding whitespace.
func SanitizeString(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, ""))
}

// ValidateString reports whether s is 1-31 characters from Charset.
func ValidateString(s string) bool {
	if len(s) == 0 || len(s) >= MaxStringLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune(Charset, r) {
			return false
		}
	}
	return true
}
