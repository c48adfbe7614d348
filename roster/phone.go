package roster

import (
	"strings"

	"github.com/hirevox/hirevox/errors"
)

// DefaultRegionPrefix is prepended to bare national numbers. The scraping
// targets are Chinese recruiting platforms, so numbers arrive without a
// country code.
const DefaultRegionPrefix = "+86"

// NormalizePhone converts a raw phone string into a stable E.164-like form
// used as the durable dedup key. Separators are stripped; bare national
// numbers get the default region prefix after dropping leading zeros.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.NewValidationError("phone number is empty")
	}

	hasPlus := strings.HasPrefix(trimmed, "+")
	var digits strings.Builder
	for _, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '+':
			// separator noise from scraped pages
		default:
			return "", errors.NewValidationError("phone %q contains invalid character %q", raw, r)
		}
	}

	num := digits.String()
	if !hasPlus {
		num = strings.TrimLeft(num, "0")
		if num == "" {
			return "", errors.NewValidationError("phone %q has no significant digits", raw)
		}
		num = strings.TrimPrefix(DefaultRegionPrefix, "+") + num
	}

	// The bound applies to the full number including the region code, so
	// bare national input cannot sneak past it.
	if len(num) < 5 || len(num) > 15 {
		return "", errors.NewValidationError("phone %q has implausible length %d", raw, len(num))
	}
	return "+" + num, nil
}

// IsCNMobile reports whether a normalized number looks like a mainland
// mobile number (11 digits starting 1[3-9] after the +86 prefix).
func IsCNMobile(normalized string) bool {
	national, ok := strings.CutPrefix(normalized, DefaultRegionPrefix)
	if !ok || len(national) != 11 {
		return false
	}
	if national[0] != '1' || national[1] < '3' || national[1] > '9' {
		return false
	}
	for _, r := range national {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
