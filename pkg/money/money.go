// Package money converts between decimal amounts on the wire and integer cents in storage.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Cents is an amount in the smallest currency unit.
type Cents int64

// FromDecimal rounds a decimal amount half-up to whole cents.
func FromDecimal(amount decimal.Decimal) Cents {
	return Cents(amount.Mul(hundred).Round(0).IntPart())
}

// Parse reads "110", "110.5" or "110,50" into cents. Negative amounts are rejected.
func Parse(raw string) (Cents, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("amount is required")
	}
	if strings.Count(value, ",") == 1 && !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	return FromDecimal(amount), nil
}

// FromFloat is for values that already crossed JSON as numbers.
func FromFloat(value float64) Cents {
	return FromDecimal(decimal.NewFromFloat(value))
}

func (c Cents) Decimal() decimal.Decimal {
	return decimal.New(int64(c), -2)
}

// Float returns the amount in currency units, for JSON responses.
func (c Cents) Float() float64 {
	f, _ := c.Decimal().Float64()
	return f
}

// String renders the amount with two fixed decimals.
func (c Cents) String() string {
	return c.Decimal().StringFixed(2)
}

// Mul multiplies a unit price by a quantity.
func (c Cents) Mul(qty int) Cents {
	return c * Cents(qty)
}

// MaxCents bounds any amount the system stores: one hundred billion currency
// units, far below the int64 limit.
const MaxCents Cents = 10_000_000_000_000

// MulChecked multiplies a unit price by a quantity. It reports false when
// either input is negative or the result exceeds MaxCents.
func (c Cents) MulChecked(qty int) (Cents, bool) {
	if c < 0 || qty < 0 || c > MaxCents {
		return 0, false
	}
	if qty != 0 && c > MaxCents/Cents(qty) {
		return 0, false
	}
	return c * Cents(qty), true
}

// AddChecked adds two non-negative amounts, reporting false past MaxCents.
func (c Cents) AddChecked(other Cents) (Cents, bool) {
	if c < 0 || other < 0 || c > MaxCents-other {
		return 0, false
	}
	return c + other, true
}

// Sum adds amounts.
func Sum(values ...Cents) Cents {
	var total Cents
	for _, v := range values {
		total += v
	}
	return total
}

// Percent returns part/whole*100 rounded to two decimals; zero when whole is zero.
func Percent(part, whole Cents) float64 {
	if whole == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(part)).Mul(hundred).Div(decimal.NewFromInt(int64(whole))).Round(2)
	f, _ := pct.Float64()
	return f
}
