package utils

import "strings"

// NormalizePlate upper-cases a license plate and collapses inner whitespace.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.Join(strings.Fields(plate), " "))
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCurrency returns the upper-case ISO code and whether it has three letters.
func NormalizeCurrency(currency string) (string, bool) {
	c := strings.ToUpper(strings.TrimSpace(currency))
	if len(c) != 3 {
		return c, false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return c, false
		}
	}
	return c, true
}
