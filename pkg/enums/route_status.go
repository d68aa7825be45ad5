package enums

import "slices"

type RouteStatus string

const (
	RouteStatusPending    RouteStatus = "pending"
	RouteStatusInProgress RouteStatus = "in_progress"
	RouteStatusCompleted  RouteStatus = "completed"
)

var validRouteStatuses = []RouteStatus{
	RouteStatusPending,
	RouteStatusInProgress,
	RouteStatusCompleted,
}

func (r RouteStatus) String() string {
	return string(r)
}

func (r RouteStatus) IsValid() bool {
	return slices.Contains(validRouteStatuses, r)
}

func ParseRouteStatus(value string) (RouteStatus, error) {
	return parse(value, validRouteStatuses, "route status")
}
