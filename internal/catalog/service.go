package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
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

const skuConstraint = "products_tenant_sku_key"

// Service exposes catalog management for a distributor.
type Service interface {
	CreateProduct(ctx context.Context, tenantID uuid.UUID, input CreateProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, tenantID, productID uuid.UUID, input UpdateProductInput) (*models.Product, error)
	DeactivateProduct(ctx context.Context, tenantID, productID uuid.UUID) error
	GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error)
	ListStorefrontProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
	ListCriticalStock(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error)
	ToggleOnline(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	Restock(ctx context.Context, tenantID, productID uuid.UUID, input RestockInput) (*models.Product, error)
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name           string
	Category       enums.ProductCategory
	SKU            string
	Stock          int
	MinStock       int
	CostPriceCents int64
	SellPriceCents int64
	Unit           string
	Active         bool
	ShowOnline     bool
}

// UpdateProductInput holds optional mutation values for a product.
type UpdateProductInput struct {
	Name           *string
	Category       *enums.ProductCategory
	SKU            *string
	Stock          *int
	MinStock       *int
	CostPriceCents *int64
	SellPriceCents *int64
	Unit           *string
	Active         *bool
	ShowOnline     *bool
}

// RestockInput is one receipt of goods.
type RestockInput struct {
	Quantity      int
	UnitCostCents int64
}

// ListParams filters a catalog page.
type ListParams struct {
	Category     *enums.ProductCategory
	Active       *bool
	OnlineOnly   bool
	LowStockOnly bool
	Search       string
	Limit        int
	Cursor       string
}

// ListResult is one page of products, newest first.
type ListResult struct {
	Products   []models.Product `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Repo       *Repository
	DB         *db.Client
	LedgerRepo ledger.Repository
	Outbox     outbox.Emitter
	Logger     *logger.Logger
}

type service struct {
	repo       *Repository
	db         *db.Client
	ledgerRepo ledger.Repository
	outbox     outbox.Emitter
	logg       *logger.Logger
	now        func() time.Time
}

// NewService constructs a catalog service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.LedgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       params.Repo,
		db:         params.DB,
		ledgerRepo: params.LedgerRepo,
		outbox:     params.Outbox,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

func (s *service) CreateProduct(ctx context.Context, tenantID uuid.UUID, input CreateProductInput) (*models.Product, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id is required")
	}
	product := &models.Product{
		TenantID:       tenantID,
		Name:           strings.TrimSpace(input.Name),
		Category:       input.Category,
		SKU:            strings.TrimSpace(input.SKU),
		Stock:          input.Stock,
		MinStock:       input.MinStock,
		CostPriceCents: input.CostPriceCents,
		SellPriceCents: input.SellPriceCents,
		Unit:           strings.TrimSpace(input.Unit),
		Active:         input.Active,
		ShowOnline:     input.ShowOnline,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, mapWriteError(err, "insert product")
	}
	return product, nil
}

func (s *service) UpdateProduct(ctx context.Context, tenantID, productID uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	product, err := s.load(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}

	columns := applyUpdate(product, input)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.write(ctx, tenantID, productID, columns, "update product"); err != nil {
		return nil, err
	}
	return s.load(ctx, tenantID, productID)
}

// DeactivateProduct hides a product from sale. Sold products stay referenced by
// their sale lines, so rows are never removed.
func (s *service) DeactivateProduct(ctx context.Context, tenantID, productID uuid.UUID) error {
	product, err := s.load(ctx, tenantID, productID)
	if err != nil {
		return err
	}
	if !product.Active && !product.ShowOnline {
		return nil
	}
	return s.write(ctx, tenantID, productID, map[string]any{"active": false, "show_online": false}, "deactivate product")
}

func (s *service) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	return s.load(ctx, tenantID, productID)
}

func (s *service) ListProducts(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Category != nil && !params.Category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", *params.Category))
	}

	limit := pagination.NormalizeLimit(params.Limit)
	products, err := s.repo.List(ctx, tenantID, ListFilter{
		Category:     params.Category,
		Active:       params.Active,
		OnlineOnly:   params.OnlineOnly,
		LowStockOnly: params.LowStockOnly,
		Search:       params.Search,
		Limit:        limit,
		Cursor:       cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page, next := pagination.Split(products, limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{At: p.CreatedAt, ID: p.ID}
	})
	return &ListResult{Products: page, NextCursor: next}, nil
}

func (s *service) ListStorefrontProducts(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	products, err := s.repo.ListStorefront(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list storefront products")
	}
	return products, nil
}

func (s *service) ListCriticalStock(ctx context.Context, tenantID uuid.UUID) ([]models.Product, error) {
	products, err := s.repo.ListCritical(ctx, &tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list critical stock")
	}
	return products, nil
}

func (s *service) ToggleOnline(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	ok, err := s.repo.ToggleOnline(ctx, tenantID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "toggle online")
	}
	if !ok {
		if _, err := s.load(ctx, tenantID, productID); err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inactive products cannot be shown online")
	}
	return s.load(ctx, tenantID, productID)
}

// Restock adds stock, records the unit cost as the new cost basis and appends
// the matching ledger expense, all in one transaction.
func (s *service) Restock(ctx context.Context, tenantID, productID uuid.UUID, input RestockInput) (*models.Product, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.UnitCostCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unit cost cannot be negative")
	}
	if _, ok := money.Cents(input.UnitCostCents).MulChecked(input.Quantity); !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock cost out of range")
	}

	var restocked *models.Product
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		ok, err := txRepo.ApplyRestock(ctx, tenantID, productID, input.Quantity, input.UnitCostCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply restock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		product, err := txRepo.FindByID(ctx, tenantID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload product")
		}

		now := s.now().UTC()
		entry := ledger.NewRestockExpense(product, input.Quantity, input.UnitCostCents, now)
		if err := s.ledgerRepo.WithTx(tx).Create(ctx, entry); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append restock expense")
		}

		tid := tenantID
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductRestocked,
			AggregateType: enums.AggregateProduct,
			AggregateID:   product.ID,
			TenantID:      &tid,
			Data: payloads.ProductRestockedEvent{
				ProductID:     product.ID,
				TenantID:      tenantID,
				ProductName:   product.Name,
				Quantity:      input.Quantity,
				UnitCostCents: input.UnitCostCents,
				StockAfter:    product.Stock,
				RestockedAt:   now,
			},
		}); err != nil {
			return err
		}

		restocked = product
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock product")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"tenant_id": tenantID.String(), "product_id": productID.String()})
	s.logg.Info(ctx, fmt.Sprintf("restocked +%d, stock now %d", input.Quantity, restocked.Stock))
	return restocked, nil
}

func (s *service) write(ctx context.Context, tenantID, productID uuid.UUID, columns map[string]any, op string) error {
	ok, err := s.repo.Update(ctx, tenantID, productID, columns)
	if err != nil {
		return mapWriteError(err, op)
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, tenantID, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case p.SKU == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	case !p.Category.IsValid():
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", p.Category))
	case p.Unit == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "unit is required")
	case p.Stock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	case p.MinStock < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "min stock cannot be negative")
	case p.CostPriceCents < 0 || p.SellPriceCents < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "prices cannot be negative")
	case !p.Active && p.ShowOnline:
		return pkgerrors.New(pkgerrors.CodeValidation, "inactive products cannot be shown online")
	}
	return nil
}

// applyUpdate merges input into p for validation and returns the columns the
// input touched.
func applyUpdate(p *models.Product, input UpdateProductInput) map[string]any {
	columns := map[string]any{}
	if input.Name != nil {
		p.Name = strings.TrimSpace(*input.Name)
		columns["name"] = p.Name
	}
	if input.Category != nil {
		p.Category = *input.Category
		columns["category"] = p.Category
	}
	if input.SKU != nil {
		if sku := strings.TrimSpace(*input.SKU); sku != "" {
			p.SKU = sku
			columns["sku"] = sku
		}
	}
	if input.Stock != nil {
		p.Stock = *input.Stock
		columns["stock"] = p.Stock
	}
	if input.MinStock != nil {
		p.MinStock = *input.MinStock
		columns["min_stock"] = p.MinStock
	}
	if input.CostPriceCents != nil {
		p.CostPriceCents = *input.CostPriceCents
		columns["cost_price_cents"] = p.CostPriceCents
	}
	if input.SellPriceCents != nil {
		p.SellPriceCents = *input.SellPriceCents
		columns["sell_price_cents"] = p.SellPriceCents
	}
	if input.Unit != nil {
		p.Unit = strings.TrimSpace(*input.Unit)
		columns["unit"] = p.Unit
	}
	if input.Active != nil {
		p.Active = *input.Active
		columns["active"] = p.Active
		if !p.Active && input.ShowOnline == nil {
			p.ShowOnline = false
			columns["show_online"] = false
		}
	}
	if input.ShowOnline != nil {
		p.ShowOnline = *input.ShowOnline
		columns["show_online"] = p.ShowOnline
	}
	return columns
}

func mapWriteError(err error, op string) error {
	if db.IsUniqueViolation(err, skuConstraint) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "sku already exists")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
