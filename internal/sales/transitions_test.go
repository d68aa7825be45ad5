package sales

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loggas/loggas-backend/pkg/enums"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to enums.SaleStatus
		ok       bool
	}{
		{enums.SaleStatusPending, enums.SaleStatusPreparing, true},
		{enums.SaleStatusPending, enums.SaleStatusCancelled, true},
		{enums.SaleStatusPreparing, enums.SaleStatusShipped, true},
		{enums.SaleStatusPreparing, enums.SaleStatusCancelled, true},
		{enums.SaleStatusShipped, enums.SaleStatusCompleted, true},
		{enums.SaleStatusPending, enums.SaleStatusCompleted, false},
		{enums.SaleStatusPending, enums.SaleStatusShipped, false},
		{enums.SaleStatusShipped, enums.SaleStatusCancelled, false},
		{enums.SaleStatusCompleted, enums.SaleStatusPending, false},
		{enums.SaleStatusCancelled, enums.SaleStatusPreparing, false},
		{enums.SaleStatusPending, enums.SaleStatusPending, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.ok, CanTransition(tc.from, tc.to))
		})
	}
}

func TestInitialStatus(t *testing.T) {
	assert.Equal(t, enums.SaleStatusCompleted, InitialStatus(enums.SaleOriginPresencial))
	assert.Equal(t, enums.SaleStatusPending, InitialStatus(enums.SaleOriginOnline))
	assert.Empty(t, NextStatuses(enums.SaleStatusCompleted))
}
