package document

import (
	"strings"
	"unicode"
)

// NormalizeGender canonicalizes a gender string into the fixed vocabulary.
// Single-letter vendor codes are mapped first, then a case-insensitive
// substring match over the open-ended vocabulary. Unrecognized values pass
// through unchanged. Idempotent.
func NormalizeGender(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	// Vendor exports frequently carry single-letter codes.
	switch strings.ToUpper(s) {
	case "M":
		return GenderMale
	case "F":
		return GenderFemale
	case "T", "O":
		return GenderOthers
	}

	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "female"):
		return GenderFemale
	case strings.Contains(lower, "male"):
		return GenderMale
	case strings.Contains(lower, "other"), strings.Contains(lower, "transgender"):
		return GenderOthers
	}
	return raw
}

// NormalizeName strips everything but letters, digits, and spaces, collapses
// whitespace runs, trims, and upper-cases.
func NormalizeName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeIdentityNumber strips whitespace and every character that is
// neither a digit nor a mask character. Mask characters ('x', 'X', '*') are
// canonicalized to 'X' so masked vendor exports compare stably.
func NormalizeIdentityNumber(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X' || r == '*':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// NormalizeBirthDate trims surrounding whitespace. The three accepted literal
// formats are compared as-is; format validation happens in the attribute gate.
func NormalizeBirthDate(raw string) string {
	return strings.TrimSpace(raw)
}

// digitCount counts ASCII digits in a normalized identity number.
func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
