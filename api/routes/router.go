package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v84"

	"github.com/loggas/loggas-backend/api/controllers"
	billingcontrollers "github.com/loggas/loggas-backend/api/controllers/billing"
	webhookcontrollers "github.com/loggas/loggas-backend/api/controllers/webhooks"
	"github.com/loggas/loggas-backend/api/middleware"
	"github.com/loggas/loggas-backend/internal/address"
	"github.com/loggas/loggas-backend/internal/advisor"
	"github.com/loggas/loggas-backend/internal/auth"
	"github.com/loggas/loggas-backend/internal/catalog"
	"github.com/loggas/loggas-backend/internal/customers"
	"github.com/loggas/loggas-backend/internal/deliveries"
	"github.com/loggas/loggas-backend/internal/ledger"
	"github.com/loggas/loggas-backend/internal/reports"
	"github.com/loggas/loggas-backend/internal/sales"
	"github.com/loggas/loggas-backend/internal/storefront"
	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/internal/users"
	"github.com/loggas/loggas-backend/pkg/auth/session"
	"github.com/loggas/loggas-backend/pkg/config"
	"github.com/loggas/loggas-backend/pkg/enums"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/metrics"
	"github.com/loggas/loggas-backend/pkg/outbox/idempotency"
	"github.com/loggas/loggas-backend/pkg/redis"
)

// Store backs idempotency replays and auth throttling.
type Store interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type stripeVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

type stripeGuard interface {
	Begin(ctx context.Context, id string) (idempotency.Outcome, error)
	Complete(ctx context.Context, id string) error
	Abort(ctx context.Context, id string) error
}

// Dependencies is everything the HTTP surface needs. Optional integrations
// (Stripe, BigQuery, Pub/Sub, the advisor) may be left nil.
type Dependencies struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   Store
	Session session.AccessSessionChecker

	// Readiness probes keyed by dependency name.
	Pingers map[string]controllers.Pinger

	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Auth       auth.Service
	Register   auth.RegisterService
	Users      users.Service
	Tenants    tenants.Service
	Catalog    catalog.Service
	Sales      sales.Service
	Ledger     ledger.Service
	Customers  customers.Service
	Deliveries deliveries.Service
	Advisor    advisor.Service
	Reports    reports.Service
	Storefront storefront.Service
	Billing    billingcontrollers.Service
	Address    address.Service

	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeVerifier stripeVerifier
	StripeGuard    stripeGuard
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var rateStore, idemStore = rateLimiterStore(deps.Store), idempotencyStore(deps.Store)

	throttleLogin := middleware.Throttle(middleware.LoginThrottle(cfg.RateLimit), rateStore, logg)
	throttleRegister := middleware.Throttle(middleware.RegisterThrottle(cfg.RateLimit), rateStore, logg)
	throttleCheckout := middleware.Throttle(middleware.CheckoutThrottle(cfg.RateLimit), rateStore, logg)
	idempotent := middleware.Idempotency(idemStore, cfg.Idempotency.TTL, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Pingers, logg))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeVerifier, deps.StripeGuard, logg))
	})

	r.Route("/api/public/stores/{slug}", func(r chi.Router) {
		r.Get("/", controllers.StorefrontStore(deps.Storefront, logg))
		r.Get("/products", controllers.StorefrontProducts(deps.Storefront, logg))
		r.With(throttleCheckout, idempotent).Post("/orders", controllers.StorefrontCheckout(deps.Storefront, cfg.JWT, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(throttleLogin).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.With(throttleRegister, idempotent).Post("/register", controllers.AuthRegister(deps.Register, deps.Auth, logg))
		r.With(throttleRegister, idempotent).Post("/register/customer", controllers.AuthRegisterCustomer(deps.Register, deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(deps.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Session, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer, enums.UserRoleAdmin, enums.UserRoleSuperAdmin))
			r.Get("/me", controllers.MeGet(deps.Users, logg))
			r.Patch("/me", controllers.MeUpdate(deps.Users, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleCustomer)).Get("/me/orders", controllers.MeOrders(deps.Sales, logg))
			r.Get("/address/suggest", controllers.AddressSuggest(deps.Address, logg))
			r.Get("/address/resolve", controllers.AddressResolve(deps.Address, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.RequireRole(logg, enums.UserRoleAdmin),
				middleware.TenantContext(logg),
				idempotent,
			)
			mountAdmin(r, deps)
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, deps.Session, logg),
			middleware.RequireRole(logg, enums.UserRoleSuperAdmin),
		)
		r.Get("/metrics", controllers.PlatformMetrics(deps.Reports, logg))
	})

	return r
}

func mountAdmin(r chi.Router, deps Dependencies) {
	logg := deps.Logger

	r.Route("/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(deps.Catalog, logg))
		r.Post("/", controllers.ProductsCreate(deps.Catalog, logg))
		r.Get("/critical", controllers.ProductsCritical(deps.Catalog, logg))
		r.Get("/{productId}", controllers.ProductsGet(deps.Catalog, logg))
		r.Patch("/{productId}", controllers.ProductsUpdate(deps.Catalog, logg))
		r.Delete("/{productId}", controllers.ProductsDelete(deps.Catalog, logg))
		r.Post("/{productId}/restock", controllers.ProductsRestock(deps.Catalog, logg))
		r.Post("/{productId}/toggle-online", controllers.ProductsToggleOnline(deps.Catalog, logg))
	})

	r.Route("/sales", func(r chi.Router) {
		r.Get("/", controllers.SalesList(deps.Sales, logg))
		r.Post("/", controllers.SalesCreate(deps.Sales, logg))
		r.Get("/{saleId}", controllers.SalesGet(deps.Sales, logg))
		r.Post("/{saleId}/status", controllers.SalesAdvanceStatus(deps.Sales, logg))
	})

	r.Route("/ledger", func(r chi.Router) {
		r.Get("/", controllers.LedgerList(deps.Ledger, logg))
		r.Post("/", controllers.LedgerAppend(deps.Ledger, logg))
		r.Get("/report", controllers.LedgerReport(deps.Ledger, logg))
	})

	r.Route("/customers", func(r chi.Router) {
		r.Get("/", controllers.CustomersList(deps.Customers, logg))
		r.Post("/", controllers.CustomersCreate(deps.Customers, logg))
		r.Get("/{customerId}", controllers.CustomersGet(deps.Customers, logg))
		r.Patch("/{customerId}", controllers.CustomersUpdate(deps.Customers, logg))
	})

	r.Route("/drivers", func(r chi.Router) {
		r.Get("/", controllers.DriversList(deps.Deliveries, logg))
		r.Post("/", controllers.DriversCreate(deps.Deliveries, logg))
		r.Patch("/{driverId}", controllers.DriversUpdate(deps.Deliveries, logg))
		r.Delete("/{driverId}", controllers.DriversDelete(deps.Deliveries, logg))
	})

	r.Route("/routes", func(r chi.Router) {
		r.Get("/", controllers.RoutesList(deps.Deliveries, logg))
		r.Post("/", controllers.RoutesCreate(deps.Deliveries, logg))
		r.Get("/{routeId}", controllers.RoutesGet(deps.Deliveries, logg))
		r.Post("/{routeId}/start", controllers.RoutesStart(deps.Deliveries, logg))
		r.Post("/{routeId}/complete", controllers.RoutesComplete(deps.Deliveries, logg))
	})

	r.Route("/advisor", func(r chi.Router) {
		r.Get("/insights", controllers.AdvisorInsights(deps.Advisor, logg))
		r.Get("/customers/{customerId}/projection", controllers.AdvisorProjection(deps.Advisor, logg))
		r.Post("/route", controllers.AdvisorRoute(deps.Advisor, logg))
	})

	r.Get("/reports/dashboard", controllers.ReportsDashboard(deps.Reports, logg))

	r.Get("/tenant", controllers.TenantSettingsGet(deps.Tenants, logg))
	r.Patch("/tenant", controllers.TenantSettingsUpdate(deps.Tenants, logg))

	r.Route("/billing", func(r chi.Router) {
		r.Get("/plans", billingcontrollers.Plans(deps.Billing, logg))
		r.Get("/subscription", billingcontrollers.Current(deps.Billing, logg))
		r.Post("/subscribe", billingcontrollers.Subscribe(deps.Billing, logg))
		r.Post("/cancel", billingcontrollers.Cancel(deps.Billing, logg))
	})
}

// The middlewares skip themselves on a nil store, so a nil Store must stay a
// nil interface rather than a typed nil.
func rateLimiterStore(s Store) interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
} {
	if s == nil {
		return nil
	}
	return s
}

func idempotencyStore(s Store) redis.IdempotencyStore {
	if s == nil {
		return nil
	}
	return s
}
