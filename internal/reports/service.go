package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/ledger"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
)

const topProductsLimit = 5

// Health summarizes platform dependencies for the super-admin panel.
type Health string

const (
	HealthPerfect  Health = "perfect"
	HealthWarning  Health = "warning"
	HealthCritical Health = "critical"
)

// Pinger is any dependency that can answer a liveness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Service interface {
	Dashboard(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*Dashboard, error)
	PlatformMetrics(ctx context.Context) (*PlatformMetrics, error)
}

type Dashboard struct {
	From               time.Time                   `json:"from"`
	To                 time.Time                   `json:"to"`
	RevenueCents       int64                       `json:"revenue_cents"`
	ExpenseCents       int64                       `json:"expense_cents"`
	NetCents           int64                       `json:"net_cents"`
	SaleCount          int64                       `json:"sale_count"`
	AverageTicketCents int64                       `json:"average_ticket_cents"`
	StockValueCents    int64                       `json:"stock_value_cents"`
	CriticalStock      []models.Product            `json:"critical_stock"`
	ByPaymentMethod    []ledger.PaymentMethodTotal `json:"by_payment_method"`
	TopProducts        []sales.ProductVolume       `json:"top_products"`
}

type PlatformMetrics struct {
	TotalDistributors   int64                    `json:"total_distributors"`
	ActiveSubscriptions int64                    `json:"active_subscriptions"`
	MRRCents            int64                    `json:"mrr_cents"`
	TenantsByPlan       map[enums.PlanTier]int64 `json:"tenants_by_plan"`
	Health              Health                   `json:"system_health"`
}

type ServiceParams struct {
	LedgerRepo  ledger.Repository
	SalesRepo   *sales.Repository
	CatalogRepo *catalog.Repository
	TenantRepo  *tenants.Repository
	DB          Pinger
	Redis       Pinger
	Logger      *logger.Logger
}

type service struct {
	ledger  ledger.Repository
	sales   *sales.Repository
	catalog *catalog.Repository
	tenants *tenants.Repository
	db      Pinger
	redis   Pinger
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.LedgerRepo == nil:
		return nil, fmt.Errorf("ledger repository required")
	case params.SalesRepo == nil:
		return nil, fmt.Errorf("sales repository required")
	case params.CatalogRepo == nil:
		return nil, fmt.Errorf("catalog repository required")
	case params.TenantRepo == nil:
		return nil, fmt.Errorf("tenant repository required")
	case params.DB == nil:
		return nil, fmt.Errorf("db pinger required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledger:  params.LedgerRepo,
		sales:   params.SalesRepo,
		catalog: params.CatalogRepo,
		tenants: params.TenantRepo,
		db:      params.DB,
		redis:   params.Redis,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// Dashboard aggregates one tenant's activity over [from, to). Zero bounds
// default to the current month.
func (s *service) Dashboard(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*Dashboard, error) {
	from, to, err := ledger.NormalizeRange(from, to, s.now())
	if err != nil {
		return nil, err
	}

	totals, err := s.ledger.Totals(ctx, tenantID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum ledger")
	}
	summary, err := s.sales.Summarize(ctx, tenantID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize sales")
	}
	byMethod, err := s.ledger.RevenueByPaymentMethod(ctx, tenantID, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revenue by payment method")
	}
	top, err := s.sales.TopProducts(ctx, tenantID, from, to, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "top products")
	}
	critical, err := s.catalog.ListCritical(ctx, &tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "critical stock")
	}
	stockValue, err := s.catalog.StockValueCents(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stock value")
	}

	return &Dashboard{
		From:               from,
		To:                 to,
		RevenueCents:       totals.IncomeCents,
		ExpenseCents:       totals.ExpenseCents,
		NetCents:           totals.IncomeCents - totals.ExpenseCents,
		SaleCount:          summary.Count,
		AverageTicketCents: averageTicket(summary),
		StockValueCents:    stockValue,
		CriticalStock:      critical,
		ByPaymentMethod:    byMethod,
		TopProducts:        top,
	}, nil
}

func (s *service) PlatformMetrics(ctx context.Context) (*PlatformMetrics, error) {
	rows, err := s.tenants.CountByPlan(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count tenants")
	}

	out := &PlatformMetrics{TenantsByPlan: map[enums.PlanTier]int64{}}
	for _, row := range rows {
		out.TotalDistributors += row.Count
		out.TenantsByPlan[row.Plan] += row.Count
		if row.Status == enums.SubscriptionStatusActive && row.Plan != enums.PlanTierFree {
			out.ActiveSubscriptions += row.Count
			out.MRRCents += row.Count * row.Plan.MonthlyPriceCents()
		}
	}
	out.Health = s.health(ctx)
	return out, nil
}

// health is perfect when every dependency answers, warning when one does not
// and critical when none do.
func (s *service) health(ctx context.Context) Health {
	probes := []Pinger{s.db}
	if s.redis != nil {
		probes = append(probes, s.redis)
	}
	failed := 0
	for _, probe := range probes {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := probe.Ping(pingCtx)
		cancel()
		if err != nil {
			failed++
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "health probe failed")
		}
	}
	switch {
	case failed == 0:
		return HealthPerfect
	case failed < len(probes):
		return HealthWarning
	default:
		return HealthCritical
	}
}

func averageTicket(summary sales.Summary) int64 {
	if summary.Count == 0 {
		return 0
	}
	return decimal.NewFromInt(summary.TotalCents).
		Div(decimal.NewFromInt(summary.Count)).
		Round(0).
		IntPart()
}
