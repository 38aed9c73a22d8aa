package utils

import (
	"strings"
	"unicode/utf8"
)

// MaxClaimLength caps identity claim strings stored on the user row.
const MaxClaimLength = 255

// CleanText drops NUL bytes and invalid UTF-8, which Postgres text columns
// reject, and trims surrounding whitespace. The boolean reports whether
// anything other than whitespace was removed.
func CleanText(input string) (string, bool) {
	needsCleaning := strings.Contains(input, "\x00") || !utf8.ValidString(input)

	cleaned := input
	if needsCleaning {
		cleaned = strings.ToValidUTF8(cleaned, "")
		cleaned = strings.ReplaceAll(cleaned, "\x00", "")
	}

	return strings.TrimSpace(cleaned), needsCleaning
}

// CleanClaim is CleanText truncated to MaxClaimLength runes.
func CleanClaim(input string) string {
	cleaned, _ := CleanText(input)
	if utf8.RuneCountInString(cleaned) <= MaxClaimLength {
		return cleaned
	}

	runes := []rune(cleaned)
	return strings.TrimSpace(string(runes[:MaxClaimLength]))
}
