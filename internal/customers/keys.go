package customers

import (
	"strings"
	"unicode"
)

// AnonymousRef is the customer reference of walk-in sales. It never aggregates.
const AnonymousRef = "0"

const phoneKeyPrefix = "phone:"

// KeyFor resolves the identity a sale is attributed to. Known customers are
// keyed by their id; anonymous buyers fall back to their phone digits. The
// second return is false when the sale aggregates into no customer.
func KeyFor(ref, phone string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref != "" && ref != AnonymousRef {
		return ref, true
	}
	if digits := phoneDigits(phone); digits != "" {
		return phoneKeyPrefix + digits, true
	}
	return "", false
}

func phoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
