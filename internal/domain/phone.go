package domain

import (
	"regexp"
	"strings"
)

var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// NormalizePhone converts a phone number to country-coded E.164 ("+5511987654321").
// Numbers already carrying "+" or "00" keep their country code; local numbers get
// countryCode prepended after dropping a trunk "0".
func NormalizePhone(raw, countryCode string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '/':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	if cleaned == "" {
		return "", &ErrValidation{Field: "phone", Message: "required"}
	}

	var out string
	switch {
	case strings.HasPrefix(cleaned, "+"):
		out = cleaned
	case strings.HasPrefix(cleaned, "00"):
		out = "+" + cleaned[2:]
	case countryCode != "" && strings.HasPrefix(cleaned, countryCode) && len(cleaned) > 11:
		out = "+" + cleaned
	default:
		out = "+" + strings.TrimPrefix(countryCode, "+") + strings.TrimPrefix(cleaned, "0")
	}

	if !e164.MatchString(out) {
		return "", &ErrValidation{Field: "phone", Message: "invalid phone number: " + raw}
	}
	return out, nil
}
