package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/pagination"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages the customer directory of a distributor.
type Service interface {
	CreateCustomer(ctx context.Context, tenantID uuid.UUID, input CreateCustomerInput) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, tenantID, customerID uuid.UUID, input UpdateCustomerInput) (*models.Customer, error)
	GetCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*models.Customer, error)
	ListCustomers(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error)
	ComputeReorderIntervals(ctx context.Context, since time.Time) (int, error)
}

type CreateCustomerInput struct {
	Name             string
	Document         *string
	Address          *string
	Phone            *string
	CreditLimitCents int64
	Status           enums.CustomerStatus
}

type UpdateCustomerInput struct {
	Name             *string
	Document         *string
	Address          *string
	Phone            *string
	CreditLimitCents *int64
	Status           *enums.CustomerStatus
}

type ListParams struct {
	Status *enums.CustomerStatus
	Search string
	Limit  int
	Cursor string
}

type ListResult struct {
	Customers  []models.Customer `json:"customers"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

type service struct {
	repo *Repository
}

// NewService constructs a customer service instance.
func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("customer repository required")
	}
	return &service{repo: repo}, nil
}

// CreateCustomer registers a customer keyed by its own id, so later sales that
// reference the id aggregate into this record.
func (s *service) CreateCustomer(ctx context.Context, tenantID uuid.UUID, input CreateCustomerInput) (*models.Customer, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	status := input.Status
	if status == "" {
		status = enums.CustomerStatusActive
	}

	id := uuid.New()
	customer := &models.Customer{
		ID:               id,
		TenantID:         tenantID,
		CustomerKey:      id.String(),
		Name:             strings.TrimSpace(input.Name),
		Document:         trimmed(input.Document),
		Address:          trimmed(input.Address),
		Phone:            trimmed(input.Phone),
		CreditLimitCents: input.CreditLimitCents,
		Status:           status,
	}
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert customer")
	}
	return customer, nil
}

// UpdateCustomer edits contact data, credit limit and status. Purchase
// statistics are owned by the sale workflow and never edited here.
func (s *service) UpdateCustomer(ctx context.Context, tenantID, customerID uuid.UUID, input UpdateCustomerInput) (*models.Customer, error) {
	customer, err := s.load(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		customer.Name = strings.TrimSpace(*input.Name)
	}
	if input.Document != nil {
		customer.Document = trimmed(input.Document)
	}
	if input.Address != nil {
		customer.Address = trimmed(input.Address)
	}
	if input.Phone != nil {
		customer.Phone = trimmed(input.Phone)
	}
	if input.CreditLimitCents != nil {
		customer.CreditLimitCents = *input.CreditLimitCents
	}
	if input.Status != nil {
		customer.Status = *input.Status
	}
	if err := validateCustomer(customer); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateContact(ctx, customer); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer")
	}
	return s.load(ctx, tenantID, customerID)
}

func (s *service) GetCustomer(ctx context.Context, tenantID, customerID uuid.UUID) (*models.Customer, error) {
	return s.load(ctx, tenantID, customerID)
}

func (s *service) ListCustomers(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *params.Status))
	}

	limit := pagination.NormalizeLimit(params.Limit)
	customers, err := s.repo.List(ctx, tenantID, ListFilter{
		Status: params.Status,
		Search: params.Search,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customers")
	}

	page, next := pagination.Split(customers, limit, func(c models.Customer) pagination.Cursor {
		return pagination.Cursor{At: c.CreatedAt, ID: c.ID}
	})
	return &ListResult{Customers: page, NextCursor: next}, nil
}

// ComputeReorderIntervals refreshes the average days between purchases of
// every customer with at least two sales since the cutoff. It returns how many
// customers were updated.
func (s *service) ComputeReorderIntervals(ctx context.Context, since time.Time) (int, error) {
	rows, err := s.repo.PurchaseHistory(ctx, since)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase history")
	}

	updated := 0
	for _, group := range groupByCustomer(rows) {
		days, ok := averageIntervalDays(group.dates)
		if !ok {
			continue
		}
		if err := s.repo.SetAverageInterval(ctx, group.tenantID, group.key, days); err != nil {
			return updated, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store reorder interval")
		}
		updated++
	}
	return updated, nil
}

type purchaseGroup struct {
	tenantID uuid.UUID
	key      string
	dates    []time.Time
}

// groupByCustomer relies on rows being ordered by tenant and key.
func groupByCustomer(rows []PurchaseRow) []purchaseGroup {
	var groups []purchaseGroup
	for _, row := range rows {
		n := len(groups)
		if n == 0 || groups[n-1].tenantID != row.TenantID || groups[n-1].key != row.CustomerKey {
			groups = append(groups, purchaseGroup{tenantID: row.TenantID, key: row.CustomerKey})
			n++
		}
		groups[n-1].dates = append(groups[n-1].dates, row.CreatedAt)
	}
	return groups
}

// averageIntervalDays is the mean gap between consecutive purchases, rounded
// to one decimal place.
func averageIntervalDays(dates []time.Time) (float64, bool) {
	if len(dates) < 2 {
		return 0, false
	}
	span := dates[len(dates)-1].Sub(dates[0])
	mean := decimal.NewFromFloat(span.Hours()).
		Div(decimal.NewFromInt(24)).
		Div(decimal.NewFromInt(int64(len(dates) - 1))).
		Round(1)
	return mean.InexactFloat64(), true
}

func (s *service) load(ctx context.Context, tenantID, customerID uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, tenantID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	return customer, nil
}

func validateCustomer(c *models.Customer) error {
	switch {
	case c.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case c.CreditLimitCents < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "credit limit cannot be negative")
	case !c.Status.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", c.Status))
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
