package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// DefaultCountryCode replaces the trunk prefix "0" of local numbers.
const DefaultCountryCode = "62"

var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a phone-like string into canonical international
// digits: separators and a leading "+" or "00" are dropped, a single
// leading "0" becomes the country code and a bare subscriber number
// starting with "8" is prefixed with it. Normalizing an already normalized value is a no-op.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", errors.Wrapf(ErrInvalidPhone, "unexpected character %q", r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "00"):
		digits = digits[2:]
	case strings.HasPrefix(digits, "0"):
		digits = DefaultCountryCode + digits[1:]
	case strings.HasPrefix(digits, "8"):
		digits = DefaultCountryCode + digits
	}
	if len(digits) < 9 || len(digits) > 15 {
		return "", errors.Wrapf(ErrInvalidPhone, "%q has %d digits", raw, len(digits))
	}
	return digits, nil
}
