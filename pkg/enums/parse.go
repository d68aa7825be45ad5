// Package enums holds the string-backed value sets stored in Postgres
// enum columns and accepted on the API.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

// parse matches value against valid after trimming surrounding space.
// Matching is exact: stored values are lower snake case and callers are
// expected to send them as-is.
func parse[T ~string](value string, valid []T, kind string) (T, error) {
	candidate := T(strings.TrimSpace(value))
	if slices.Contains(valid, candidate) {
		return candidate, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
