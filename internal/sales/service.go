package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/ledger"
	"github.com/loggas/loggas-backend/pkg/db"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/money"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
	"github.com/loggas/loggas-backend/pkg/pagination"
	"gorm.io/gorm"
)

// WalkInName is recorded when a counter sale names no customer.
const WalkInName = "Walk-in customer"

// Service commits sales and drives them through fulfillment.
type Service interface {
	ProcessSale(ctx context.Context, input SaleInput) (*models.Sale, error)
	AdvanceStatus(ctx context.Context, tenantID, saleID uuid.UUID, next enums.SaleStatus) (*models.Sale, error)
	GetSale(ctx context.Context, tenantID, saleID uuid.UUID) (*models.Sale, error)
	ListSales(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error)
	ListCustomerOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Sale, error)
}

// SaleInput is a cart ready to commit.
type SaleInput struct {
	TenantID       uuid.UUID
	Lines          []LineInput
	Customer       CustomerInfo
	BuyerUserID    *uuid.UUID
	PaymentMethod  enums.PaymentMethod
	Origin         enums.SaleOrigin
	IdempotencyKey string
}

// LineInput is one cart line. UnitPriceCents is the price captured when the
// line entered the cart; nil falls back to the product's current price.
type LineInput struct {
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents *int64
}

// CustomerInfo identifies the buyer. Ref is a customer id or AnonymousRef.
type CustomerInfo struct {
	Ref     string
	Name    string
	Address string
	Phone   string
}

type ListParams struct {
	Origin *enums.SaleOrigin
	Status *enums.SaleStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Cursor string
}

type ListResult struct {
	Sales      []models.Sale `json:"sales"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

type salesMetrics interface {
	ObserveSale(origin string, totalCents int64)
	IncRejected(code string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveSale(string, int64) {}
func (noopMetrics) IncRejected(string)        {}

// ServiceParams wires the sales service.
type ServiceParams struct {
	Repo         *Repository
	DB           *db.Client
	CatalogRepo  *catalog.Repository
	LedgerRepo   ledger.Repository
	CustomerRepo *customers.Repository
	Outbox       outbox.Emitter
	Logger       *logger.Logger
	Metrics      salesMetrics
}

type service struct {
	repo         *Repository
	db           *db.Client
	catalogRepo  *catalog.Repository
	ledgerRepo   ledger.Repository
	customerRepo *customers.Repository
	outbox       outbox.Emitter
	logg         *logger.Logger
	metrics      salesMetrics
	now          func() time.Time
}

// NewService constructs the sales service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("sales repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("db client required")
	case params.CatalogRepo == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.LedgerRepo == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.CustomerRepo == nil:
		return nil, fmt.Errorf("customer repository required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	metrics := params.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &service{
		repo:         params.Repo,
		db:           params.DB,
		catalogRepo:  params.CatalogRepo,
		ledgerRepo:   params.LedgerRepo,
		customerRepo: params.CustomerRepo,
		outbox:       params.Outbox,
		logg:         params.Logger,
		metrics:      metrics,
		now:          time.Now,
	}, nil
}

// ProcessSale commits a cart. Stock decrements, the sale, its ledger income,
// the customer statistics and the sale_created event are written in one
// transaction; any rejection leaves no trace.
func (s *service) ProcessSale(ctx context.Context, input SaleInput) (*models.Sale, error) {
	if err := validateSaleInput(input); err != nil {
		s.metrics.IncRejected(string(pkgerrors.CodeValidation))
		return nil, err
	}

	idemKey := strings.TrimSpace(input.IdempotencyKey)
	if idemKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, input.TenantID, idemKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotency key")
		}
		if existing != nil {
			return existing, nil
		}
	}

	var sale *models.Sale
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		sale, err = s.commit(ctx, tx, input, idemKey)
		return err
	})
	if err != nil {
		if idemKey != "" && db.IsUniqueViolation(err, idempotencyConstraint) {
			existing, lookupErr := s.repo.FindByIdempotencyKey(ctx, input.TenantID, idemKey)
			if lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncRejected(string(typed.Code()))
			return nil, err
		}
		s.metrics.IncRejected(string(pkgerrors.CodeDependency))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "commit sale")
	}

	s.metrics.ObserveSale(string(sale.Origin), sale.TotalCents)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"tenant_id": sale.TenantID.String(),
		"sale_id":   sale.ID.String(),
		"origin":    string(sale.Origin),
	})
	s.logg.Info(ctx, fmt.Sprintf("sale committed: %d lines, total %d cents", len(sale.Items), sale.TotalCents))
	return sale, nil
}

func (s *service) commit(ctx context.Context, tx *gorm.DB, input SaleInput, idemKey string) (*models.Sale, error) {
	catalogRepo := s.catalogRepo.WithTx(tx)

	products, err := catalogRepo.FindByIDs(ctx, input.TenantID, lineProductIDs(input.Lines))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	now := s.now().UTC()
	items := make([]models.SaleItem, 0, len(input.Lines))
	var total money.Cents
	var lowStock []models.Product

	for i, line := range input.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]string{"product_id": line.ProductID.String()})
		}
		if !product.Active {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not for sale", product.Name))
		}
		if input.Origin == enums.SaleOriginOnline && !product.ShowOnline {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not sold online", product.Name))
		}

		price := product.SellPriceCents
		if line.UnitPriceCents != nil {
			price = *line.UnitPriceCents
		}
		lineTotal, ok := money.Cents(price).MulChecked(line.Quantity)
		if ok {
			total, ok = total.AddChecked(lineTotal)
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale total out of range")
		}

		remaining, decremented, err := catalogRepo.DecrementStock(ctx, input.TenantID, product.ID, line.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !decremented {
			return nil, s.shortage(ctx, catalogRepo, input.TenantID, product.ID, line.Quantity)
		}

		product.Stock = remaining
		products[product.ID] = product
		if crossedMinimum(remaining+line.Quantity, remaining, product.MinStock) {
			lowStock = append(lowStock, product)
		}

		items = append(items, models.SaleItem{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: price,
			Position:       i,
		})
	}

	customerName := strings.TrimSpace(input.Customer.Name)
	if customerName == "" {
		customerName = WalkInName
	}
	ref := strings.TrimSpace(input.Customer.Ref)
	if ref == "" {
		ref = customers.AnonymousRef
	}
	key, aggregate := customers.KeyFor(ref, input.Customer.Phone)

	sale := &models.Sale{
		TenantID:        input.TenantID,
		CustomerRef:     ref,
		CustomerName:    customerName,
		CustomerAddress: optional(input.Customer.Address),
		CustomerPhone:   optional(input.Customer.Phone),
		BuyerUserID:     input.BuyerUserID,
		TotalCents:      int64(total),
		PaymentMethod:   input.PaymentMethod,
		Status:          InitialStatus(input.Origin),
		Origin:          input.Origin,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if aggregate {
		sale.CustomerKey = &key
	}
	if idemKey != "" {
		sale.IdempotencyKey = &idemKey
	}
	if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
		return nil, err
	}

	if err := s.ledgerRepo.WithTx(tx).Create(ctx, ledger.NewSaleIncome(sale)); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append sale income")
	}

	if aggregate {
		if err := s.customerRepo.WithTx(tx).UpsertStats(ctx, customers.PurchaseStats{
			TenantID:    sale.TenantID,
			Key:         key,
			Name:        strings.TrimSpace(input.Customer.Name),
			Address:     sale.CustomerAddress,
			Phone:       sale.CustomerPhone,
			AmountCents: sale.TotalCents,
			PurchasedAt: now,
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update customer stats")
		}
	}

	if err := s.emitSaleCreated(ctx, tx, sale, key); err != nil {
		return nil, err
	}
	for _, product := range lowStock {
		if err := s.emitLowStock(ctx, tx, product, now); err != nil {
			return nil, err
		}
	}
	return sale, nil
}

// shortage builds the rejection for a line the stock could not cover.
func (s *service) shortage(ctx context.Context, repo *catalog.Repository, tenantID, productID uuid.UUID, requested int) error {
	available := 0
	if current, err := repo.FindByID(ctx, tenantID, productID); err == nil {
		available = current.Stock
	}
	return pkgerrors.InsufficientStock(pkgerrors.StockShortage{
		ProductID: productID.String(),
		Requested: requested,
		Available: available,
	})
}

// AdvanceStatus applies one fulfillment transition. The write only lands if
// the sale is still in the status the transition was validated against.
func (s *service) AdvanceStatus(ctx context.Context, tenantID, saleID uuid.UUID, next enums.SaleStatus) (*models.Sale, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", next))
	}

	var advanced *models.Sale
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		advanced, err = AdvanceInTx(ctx, tx, s.repo, s.outbox, tenantID, saleID, next, s.now().UTC())
		return err
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance sale status")
	}
	return advanced, nil
}

// AdvanceInTx validates and persists one transition inside tx and emits
// sale_status_changed. Delivery routes call it to move several sales at once.
func AdvanceInTx(ctx context.Context, tx *gorm.DB, repo *Repository, emitter outbox.Emitter, tenantID, saleID uuid.UUID, next enums.SaleStatus, at time.Time) (*models.Sale, error) {
	txRepo := repo.WithTx(tx)
	sale, err := txRepo.FindByID(ctx, tenantID, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}

	from := sale.Status
	if !CanTransition(from, next) {
		return nil, pkgerrors.InvalidTransition(string(from), string(next))
	}

	ok, err := txRepo.UpdateStatus(ctx, tenantID, saleID, from, next, at)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sale status")
	}
	if !ok {
		// Another writer moved the sale after it was read.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "sale status changed concurrently").
			WithDetails(pkgerrors.Transition{From: string(from), To: string(next)})
	}

	tid := tenantID
	if err := emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleStatusChanged,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		TenantID:      &tid,
		Data: payloads.SaleStatusChangedEvent{
			SaleID:    sale.ID,
			TenantID:  tenantID,
			From:      from,
			To:        next,
			ChangedAt: at,
		},
	}); err != nil {
		return nil, err
	}

	sale.Status = next
	sale.UpdatedAt = at.UTC()
	return sale, nil
}

func (s *service) GetSale(ctx context.Context, tenantID, saleID uuid.UUID) (*models.Sale, error) {
	sale, err := s.repo.FindByID(ctx, tenantID, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
}

func (s *service) ListSales(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Origin != nil && !params.Origin.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid origin %q", *params.Origin))
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *params.Status))
	}

	limit := pagination.NormalizeLimit(params.Limit)
	sales, err := s.repo.List(ctx, tenantID, ListFilter{
		Origin: params.Origin,
		Status: params.Status,
		From:   params.From,
		To:     params.To,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}

	page, next := pagination.Split(sales, limit, func(sale models.Sale) pagination.Cursor {
		return pagination.Cursor{At: sale.CreatedAt, ID: sale.ID}
	})
	return &ListResult{Sales: page, NextCursor: next}, nil
}

func (s *service) ListCustomerOrders(ctx context.Context, userID uuid.UUID, limit int) ([]models.Sale, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer account required")
	}
	sales, err := s.repo.ListByBuyer(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	return sales, nil
}

func (s *service) emitSaleCreated(ctx context.Context, tx *gorm.DB, sale *models.Sale, customerKey string) error {
	lines := make([]payloads.SaleLine, len(sale.Items))
	for i, item := range sale.Items {
		lines[i] = payloads.SaleLine{
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		}
	}
	tid := sale.TenantID
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSaleCreated,
		AggregateType: enums.AggregateSale,
		AggregateID:   sale.ID,
		TenantID:      &tid,
		Data: payloads.SaleCreatedEvent{
			SaleID:        sale.ID,
			TenantID:      sale.TenantID,
			CustomerKey:   customerKey,
			CustomerName:  sale.CustomerName,
			TotalCents:    sale.TotalCents,
			PaymentMethod: sale.PaymentMethod,
			Origin:        sale.Origin,
			Status:        sale.Status,
			Lines:         lines,
			CreatedAt:     sale.CreatedAt,
		},
	})
}

func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, product models.Product, at time.Time) error {
	tid := product.TenantID
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventLowStockDetected,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		TenantID:      &tid,
		Data: payloads.LowStockDetectedEvent{
			ProductID:   product.ID,
			TenantID:    product.TenantID,
			ProductName: product.Name,
			Stock:       product.Stock,
			MinStock:    product.MinStock,
			DetectedAt:  at,
		},
	})
}

func validateSaleInput(input SaleInput) error {
	if input.TenantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for _, line := range input.Lines {
		if line.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
		}
		if line.UnitPriceCents != nil && *line.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "unit price cannot be negative")
		}
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}
	if !input.Origin.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid origin %q", input.Origin))
	}
	return nil
}

// crossedMinimum reports whether a decrement took stock from above the reorder
// threshold to at or below it.
func crossedMinimum(before, after, minStock int) bool {
	return before > minStock && after <= minStock
}

func lineProductIDs(lines []LineInput) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}
	return ids
}

func optional(value string) *string {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	return &v
}
