package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/money"
	"github.com/loggas/loggas-backend/pkg/pagination"
)

const (
	CategorySales = "Sales"
	CategoryStock = "Stock"
)

// Service defines the ledger operations exposed to controllers and reports.
type Service interface {
	Append(ctx context.Context, tenantID uuid.UUID, input AppendInput) (*models.LedgerEntry, error)
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error)
	Report(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*Report, error)
	RevenueByPaymentMethod(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]PaymentMethodTotal, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// AppendInput is a manually posted entry.
type AppendInput struct {
	Description string
	Type        enums.LedgerEntryType
	AmountCents int64
	Category    string
	OccurredAt  *time.Time
}

// ListParams filters a ledger page.
type ListParams struct {
	From   *time.Time
	To     *time.Time
	Type   *enums.LedgerEntryType
	Limit  int
	Cursor string
}

// ListResult is one page of entries, newest first.
type ListResult struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor string               `json:"next_cursor,omitempty"`
}

// Report aggregates a date range. To is exclusive.
type Report struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	IncomeCents  int64     `json:"income_cents"`
	ExpenseCents int64     `json:"expense_cents"`
	NetCents     int64     `json:"net_cents"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Append(ctx context.Context, tenantID uuid.UUID, input AppendInput) (*models.LedgerEntry, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", input.Type))
	}
	if input.AmountCents < 0 || money.Cents(input.AmountCents) > money.MaxCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount out of range")
	}
	category := strings.TrimSpace(input.Category)
	if category == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category is required")
	}

	occurredAt := s.now().UTC()
	if input.OccurredAt != nil {
		occurredAt = input.OccurredAt.UTC()
	}

	entry := &models.LedgerEntry{
		TenantID:    tenantID,
		OccurredAt:  occurredAt,
		Description: description,
		Type:        input.Type,
		AmountCents: input.AmountCents,
		Category:    category,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return entry, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Type != nil && !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid ledger entry type %q", *params.Type))
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.List(ctx, tenantID, ListFilter{
		From:   params.From,
		To:     params.To,
		Type:   params.Type,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger entries")
	}

	page, next := pagination.Split(entries, limit, func(e models.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{At: e.OccurredAt, ID: e.ID}
	})
	return &ListResult{Entries: page, NextCursor: next}, nil
}

func (s *service) Report(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*Report, error) {
	from, to, err := NormalizeRange(from, to, s.now())
	if err != nil {
		return nil, err
	}
	totals, err := s.repo.Totals(ctx, tenantID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger entries")
	}
	return &Report{
		From:         from,
		To:           to,
		IncomeCents:  totals.IncomeCents,
		ExpenseCents: totals.ExpenseCents,
		NetCents:     totals.IncomeCents - totals.ExpenseCents,
	}, nil
}

func (s *service) RevenueByPaymentMethod(ctx context.Context, tenantID uuid.UUID, from, to time.Time) ([]PaymentMethodTotal, error) {
	from, to, err := NormalizeRange(from, to, s.now())
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.RevenueByPaymentMethod(ctx, tenantID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revenue by payment method")
	}
	return rows, nil
}

// NormalizeRange defaults an empty range to the current calendar month.
func NormalizeRange(from, to, now time.Time) (time.Time, time.Time, error) {
	now = now.UTC()
	if from.IsZero() {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if to.IsZero() {
		to = from.AddDate(0, 1, 0)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "range end must be after start")
	}
	return from.UTC(), to.UTC(), nil
}

// NewSaleIncome builds the income entry recorded when a sale commits.
func NewSaleIncome(sale *models.Sale) *models.LedgerEntry {
	saleID := sale.ID
	return &models.LedgerEntry{
		TenantID:    sale.TenantID,
		OccurredAt:  sale.CreatedAt.UTC(),
		Description: fmt.Sprintf("Sale %s #%s - %s", sale.Origin, sale.ID, sale.CustomerName),
		Type:        enums.LedgerEntryIncome,
		AmountCents: sale.TotalCents,
		Category:    CategorySales,
		SaleID:      &saleID,
	}
}

// NewRestockExpense builds the expense entry recorded when stock is received.
func NewRestockExpense(product *models.Product, quantity int, unitCostCents int64, at time.Time) *models.LedgerEntry {
	productID := product.ID
	return &models.LedgerEntry{
		TenantID:    product.TenantID,
		OccurredAt:  at.UTC(),
		Description: fmt.Sprintf("Restock: %s (+%d)", product.Name, quantity),
		Type:        enums.LedgerEntryExpense,
		AmountCents: unitCostCents * int64(quantity),
		Category:    CategoryStock,
		ProductID:   &productID,
	}
}
