// Package phone normalizes phone numbers returned by lookup providers.
package phone

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a number carries no country prefix.
const DefaultRegion = "US"

const (
	minDigits = 7
	maxLength = 20
)

var phoneLike = regexp.MustCompile(`^\+?[\d\s\-().x]+$`)

// Normalize formats raw to E.164 when it parses as a valid number for region.
// Otherwise it returns the trimmed input if it still looks like a phone number.
// ok is false for blank or unusable values.
func Normalize(raw, region string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	if region == "" {
		region = DefaultRegion
	}

	if number, err := phonenumbers.Parse(trimmed, region); err == nil && phonenumbers.IsValidNumber(number) {
		return phonenumbers.Format(number, phonenumbers.E164), true
	}

	if !Plausible(trimmed) {
		return "", false
	}
	return trimmed, true
}

// Plausible reports whether s is made of phone characters and carries enough digits.
func Plausible(s string) bool {
	if len(s) > maxLength || !phoneLike.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= minDigits
}

// Same reports whether a and b normalize to the same number.
func Same(a, b, region string) bool {
	na, okA := Normalize(a, region)
	nb, okB := Normalize(b, region)
	if !okA || !okB {
		return strings.TrimSpace(a) == strings.TrimSpace(b)
	}
	return na == nb
}
