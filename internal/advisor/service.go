package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/ledger"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/pkg/db/models"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/genai"
	"github.com/loggas/loggas-backend/pkg/logger"
)

const (
	FallbackInsights   = "Could not generate insights right now."
	FallbackProjection = "No projection available right now."
	FallbackRoute      = "Could not optimize the route right now."
)

// Service produces narrative advice. Generation failures never surface as
// errors; callers receive the fallback text instead. Errors are returned only
// for bad input, such as an unknown customer.
type Service interface {
	FinancialInsights(ctx context.Context, tenantID uuid.UUID) (string, error)
	CustomerProjection(ctx context.Context, tenantID, customerID uuid.UUID) (string, error)
	OptimizeRoute(ctx context.Context, tenantID uuid.UUID, saleIDs []uuid.UUID) (string, error)
}

type ServiceParams struct {
	Generator    genai.TextGenerator
	CatalogRepo  *catalog.Repository
	LedgerRepo   ledger.Repository
	SalesRepo    *sales.Repository
	CustomerRepo *customers.Repository
	Logger       *logger.Logger
	Enabled      bool
}

type service struct {
	gen       genai.TextGenerator
	catalog   *catalog.Repository
	ledger    ledger.Repository
	sales     *sales.Repository
	customers *customers.Repository
	logg      *logger.Logger
	enabled   bool
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Generator == nil:
		return nil, fmt.Errorf("text generator required")
	case params.CatalogRepo == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.LedgerRepo == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.SalesRepo == nil:
		return nil, fmt.Errorf("sales repository required")
	case params.CustomerRepo == nil:
		return nil, fmt.Errorf("customer repository required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		gen:       params.Generator,
		catalog:   params.CatalogRepo,
		ledger:    params.LedgerRepo,
		sales:     params.SalesRepo,
		customers: params.CustomerRepo,
		logg:      params.Logger,
		enabled:   params.Enabled,
	}, nil
}

func (s *service) FinancialInsights(ctx context.Context, tenantID uuid.UUID) (string, error) {
	products, err := s.catalog.List(ctx, tenantID, catalog.ListFilter{Limit: maxPromptProducts})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	entries, err := s.ledger.List(ctx, tenantID, ledger.ListFilter{Limit: recentEntries})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ledger")
	}
	recent, err := s.sales.List(ctx, tenantID, sales.ListFilter{Limit: recentSales})
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
	}
	return s.generate(ctx, "financial_insights", financialPrompt(products, head(entries, recentEntries), head(recent, recentSales)), FallbackInsights), nil
}

func (s *service) CustomerProjection(ctx context.Context, tenantID, customerID uuid.UUID) (string, error) {
	customer, err := s.customers.FindByID(ctx, tenantID, customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}
	history, err := s.sales.ListByCustomerKey(ctx, tenantID, customer.CustomerKey, customerHistory)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer sales")
	}
	return s.generate(ctx, "customer_projection", projectionPrompt(customer, history), FallbackProjection), nil
}

func (s *service) OptimizeRoute(ctx context.Context, tenantID uuid.UUID, saleIDs []uuid.UUID) (string, error) {
	if len(saleIDs) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "select at least one order")
	}
	found, err := s.sales.FindByIDs(ctx, tenantID, saleIDs)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sales")
	}
	if len(found) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
	}
	return s.generate(ctx, "optimize_route", routePrompt(orderLike(found, saleIDs)), FallbackRoute), nil
}

func (s *service) generate(ctx context.Context, kind, prompt, fallback string) string {
	if !s.enabled {
		return fallback
	}
	started := time.Now()
	text, err := s.gen.Generate(ctx, prompt)
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = genai.ErrEmptyResponse
	}
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"advice":      kind,
			"duration_ms": time.Since(started).Milliseconds(),
			"error":       err.Error(),
		})
		s.logg.Warn(logCtx, "advisor generation failed, using fallback")
		return fallback
	}
	return text
}

// orderLike returns sales in the order their ids were requested.
func orderLike(found []models.Sale, ids []uuid.UUID) []models.Sale {
	byID := make(map[uuid.UUID]models.Sale, len(found))
	for _, sale := range found {
		byID[sale.ID] = sale
	}
	out := make([]models.Sale, 0, len(found))
	for _, id := range ids {
		if sale, ok := byID[id]; ok {
			out = append(out, sale)
			delete(byID, id)
		}
	}
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
