package enums

import "slices"

type CustomerStatus string

const (
	CustomerStatusActive CustomerStatus = "active"
	CustomerStatusDebtor CustomerStatus = "debtor"
)

var validCustomerStatuses = []CustomerStatus{
	CustomerStatusActive,
	CustomerStatusDebtor,
}

func (c CustomerStatus) String() string {
	return string(c)
}

func (c CustomerStatus) IsValid() bool {
	return slices.Contains(validCustomerStatuses, c)
}

func ParseCustomerStatus(value string) (CustomerStatus, error) {
	return parse(value, validCustomerStatuses, "customer status")
}
