package enums

import "slices"

// LedgerEntryType is the direction of a ledger entry.
type LedgerEntryType string

const (
	LedgerEntryIncome  LedgerEntryType = "income"
	LedgerEntryExpense LedgerEntryType = "expense"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntryIncome,
	LedgerEntryExpense,
}

// String implements fmt.Stringer.
func (l LedgerEntryType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (l LedgerEntryType) IsValid() bool {
	return slices.Contains(validLedgerEntryTypes, l)
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	return parse(value, validLedgerEntryTypes, "ledger entry type")
}
