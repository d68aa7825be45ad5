package enums

import "slices"

// SaleOrigin distinguishes counter sales from storefront orders.
type SaleOrigin string

const (
	SaleOriginPresencial SaleOrigin = "presencial"
	SaleOriginOnline     SaleOrigin = "online"
)

var validSaleOrigins = []SaleOrigin{
	SaleOriginPresencial,
	SaleOriginOnline,
}

// String implements fmt.Stringer.
func (s SaleOrigin) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleOrigin.
func (s SaleOrigin) IsValid() bool {
	return slices.Contains(validSaleOrigins, s)
}

// ParseSaleOrigin converts raw input into a SaleOrigin.
func ParseSaleOrigin(value string) (SaleOrigin, error) {
	return parse(value, validSaleOrigins, "sale origin")
}
