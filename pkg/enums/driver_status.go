package enums

import "slices"

// DriverStatus reports a delivery driver's availability.
type DriverStatus string

const (
	DriverStatusAvailable  DriverStatus = "available"
	DriverStatusDelivering DriverStatus = "delivering"
	DriverStatusOffline    DriverStatus = "offline"
)

var validDriverStatuses = []DriverStatus{
	DriverStatusAvailable,
	DriverStatusDelivering,
	DriverStatusOffline,
}

// String implements fmt.Stringer.
func (d DriverStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DriverStatus.
func (d DriverStatus) IsValid() bool {
	return slices.Contains(validDriverStatuses, d)
}

// ParseDriverStatus converts raw input into a DriverStatus.
func ParseDriverStatus(value string) (DriverStatus, error) {
	return parse(value, validDriverStatuses, "driver status")
}
