package sales

import "github.com/loggas/loggas-backend/pkg/enums"

// transitions is the fulfillment graph. Completed and cancelled have no exits.
var transitions = map[enums.SaleStatus][]enums.SaleStatus{
	enums.SaleStatusPending:   {enums.SaleStatusPreparing, enums.SaleStatusCancelled},
	enums.SaleStatusPreparing: {enums.SaleStatusShipped, enums.SaleStatusCancelled},
	enums.SaleStatusShipped:   {enums.SaleStatusCompleted},
}

// CanTransition reports whether a sale may move directly from one status to another.
func CanTransition(from, to enums.SaleStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses reachable from the given one.
func NextStatuses(from enums.SaleStatus) []enums.SaleStatus {
	return append([]enums.SaleStatus(nil), transitions[from]...)
}

// InitialStatus is where a new sale starts: counter sales are handed over on
// the spot, online orders enter fulfillment.
func InitialStatus(origin enums.SaleOrigin) enums.SaleStatus {
	if origin == enums.SaleOriginOnline {
		return enums.SaleStatusPending
	}
	return enums.SaleStatusCompleted
}
