package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/loggas/loggas-backend/api/controllers"
	"github.com/loggas/loggas-backend/api/routes"
	"github.com/loggas/loggas-backend/internal/address"
	"github.com/loggas/loggas-backend/internal/advisor"
	"github.com/loggas/loggas-backend/internal/auth"
	"github.com/loggas/loggas-backend/internal/billing"
	"github.com/loggas/loggas-backend/internal/boot"
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
	"github.com/loggas/loggas-backend/pkg/bigquery"
	"github.com/loggas/loggas-backend/pkg/genai"
	"github.com/loggas/loggas-backend/pkg/maps"
	"github.com/loggas/loggas-backend/pkg/metrics"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/idempotency"
	"github.com/loggas/loggas-backend/pkg/pubsub"
	"github.com/loggas/loggas-backend/pkg/redis"
	pkgstripe "github.com/loggas/loggas-backend/pkg/stripe"
)

const (
	stripeWebhookScope = "stripe-webhook"
	readHeaderTimeout  = 10 * time.Second
	// shutdownTimeout stays under the platform's SIGTERM grace period.
	shutdownTimeout = 25 * time.Second
)

func main() {
	proc := boot.Start("api")
	defer proc.Close()
	ctx, stop := proc.Context()
	defer stop()
	cfg, logg := proc.Config, proc.Logger

	dbClient := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	proc.Must("session manager", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.NewHTTPMetrics(registry)
	salesMetrics := metrics.NewSalesMetrics(registry)

	gormDB := dbClient.DB()
	emitter := outbox.NewService(outbox.NewRepository(gormDB), logg)

	userRepo := users.NewRepository(gormDB)
	tenantRepo := tenants.NewRepository(gormDB)
	catalogRepo := catalog.NewRepository(gormDB)
	salesRepo := sales.NewRepository(gormDB)
	ledgerRepo := ledger.NewRepository(gormDB)
	customerRepo := customers.NewRepository(gormDB)
	deliveryRepo := deliveries.NewRepository(gormDB)
	billingRepo := billing.NewRepository(gormDB)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		TenantRepo:     tenantRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	proc.Must("auth service", err)

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	proc.Must("register service", err)

	userService, err := users.NewService(userRepo)
	proc.Must("user service", err)

	tenantService, err := tenants.NewService(tenantRepo)
	proc.Must("tenant service", err)

	ledgerService, err := ledger.NewService(ledgerRepo)
	proc.Must("ledger service", err)

	customerService, err := customers.NewService(customerRepo)
	proc.Must("customer service", err)

	catalogService, err := catalog.NewService(catalog.ServiceParams{
		Repo:       catalogRepo,
		DB:         dbClient,
		LedgerRepo: ledgerRepo,
		Outbox:     emitter,
		Logger:     logg,
	})
	proc.Must("catalog service", err)

	salesService, err := sales.NewService(sales.ServiceParams{
		Repo:         salesRepo,
		DB:           dbClient,
		CatalogRepo:  catalogRepo,
		LedgerRepo:   ledgerRepo,
		CustomerRepo: customerRepo,
		Outbox:       emitter,
		Logger:       logg,
		Metrics:      salesMetrics,
	})
	proc.Must("sales service", err)

	deliveryService, err := deliveries.NewService(deliveries.ServiceParams{
		Repo:      deliveryRepo,
		SalesRepo: salesRepo,
		DB:        dbClient,
		Outbox:    emitter,
		Logger:    logg,
	})
	proc.Must("delivery service", err)

	storefrontService, err := storefront.NewService(storefront.ServiceParams{
		Tenants: tenantService,
		Catalog: catalogService,
		Sales:   salesService,
		Users:   userRepo,
	})
	proc.Must("storefront service", err)

	generator, err := genai.NewClient(ctx, cfg.Gemini)
	proc.Must("gemini client", err)

	advisorService, err := advisor.NewService(advisor.ServiceParams{
		Generator:    generator,
		CatalogRepo:  catalogRepo,
		LedgerRepo:   ledgerRepo,
		SalesRepo:    salesRepo,
		CustomerRepo: customerRepo,
		Logger:       logg,
		Enabled:      cfg.FeatureFlags.Advisor,
	})
	proc.Must("advisor service", err)

	reportService, err := reports.NewService(reports.ServiceParams{
		LedgerRepo:  ledgerRepo,
		SalesRepo:   salesRepo,
		CatalogRepo: catalogRepo,
		TenantRepo:  tenantRepo,
		DB:          dbClient,
		Redis:       redisClient,
		Logger:      logg,
	})
	proc.Must("report service", err)

	deps := routes.Dependencies{
		Config:         cfg,
		Logger:         logg,
		Store:          redisClient,
		Session:        sessionManager,
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Auth:           authService,
		Register:       registerService,
		Users:          userService,
		Tenants:        tenantService,
		Catalog:        catalogService,
		Sales:          salesService,
		Ledger:         ledgerService,
		Customers:      customerService,
		Deliveries:     deliveryService,
		Advisor:        advisorService,
		Reports:        reportService,
		Storefront:     storefrontService,
		Pingers: map[string]controllers.Pinger{
			"db":    dbClient,
			"redis": redisClient,
		},
	}

	if cfg.Maps.Enabled() {
		mapsClient, err := maps.NewClient(cfg.Maps)
		proc.Must("maps client", err)
		deps.Address, err = address.NewService(mapsClient)
		proc.Must("address service", err)
	}

	// Billing works without Stripe (plans and the free tier); subscribe and
	// the webhook answer 503 until keys are configured.
	var stripeClient *pkgstripe.Client
	if cfg.Stripe.Enabled() {
		stripeClient, err = pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		proc.Must("stripe", err)
	} else {
		logg.Warn(ctx, "stripe not configured, billing runs in free-plan mode")
	}
	prices := billing.NewPriceBook(cfg.Stripe)
	stripeAPI := billing.NewStripeClient(stripeClient)

	billingService, err := billing.NewService(billing.ServiceParams{
		Repo:       billingRepo,
		TenantRepo: tenantRepo,
		Stripe:     stripeAPI,
		Prices:     prices,
		DB:         dbClient,
		Outbox:     emitter,
		Logger:     logg,
	})
	proc.Must("billing service", err)
	deps.Billing = billingService

	if stripeClient != nil {
		webhookService, err := billing.NewWebhookService(billing.WebhookServiceParams{
			Repo:       billingRepo,
			TenantRepo: tenantRepo,
			Stripe:     stripeAPI,
			Prices:     prices,
			DB:         dbClient,
			Outbox:     emitter,
			Logger:     logg,
		})
		proc.Must("stripe webhook service", err)

		guard, err := idempotency.NewGuard(redisClient, stripeWebhookScope, cfg.Eventing.DedupTTL)
		proc.Must("stripe webhook guard", err)

		deps.StripeWebhook = webhookService
		deps.StripeVerifier = stripeClient
		deps.StripeGuard = guard
	}

	if strings.TrimSpace(cfg.GCP.ProjectID) != "" {
		if pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg); err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "pubsub unavailable, readiness will not report it")
		} else {
			proc.OnClose("pubsub", pubsubClient.Close)
			deps.Pingers["pubsub"] = pubsubClient
		}
		if bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg); err != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "bigquery unavailable, readiness will not report it")
		} else {
			proc.OnClose("bigquery", bqClient.Close)
			deps.Pingers["bigquery"] = bqClient
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"addr":     addr,
		"instance": id,
		"stripe":   stripeClient != nil,
		"advisor":  cfg.FeatureFlags.Advisor,
		"maps":     deps.Address != nil,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	served := make(chan error, 1)
	go func() { served <- server.ListenAndServe() }()

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			proc.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "draining api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown incomplete", err)
		}
	}
}
