package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/tenants"
	"github.com/loggas/loggas-backend/pkg/db/models"
	"github.com/loggas/loggas-backend/pkg/enums"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
	"github.com/loggas/loggas-backend/pkg/outbox/payloads"
)

const metadataTenantID = "tenant_id"

// Service manages a distributor's SaaS plan.
type Service interface {
	ListPlans() []Plan
	CurrentPlan(ctx context.Context, tenantID uuid.UUID) (*CurrentPlan, error)
	Subscribe(ctx context.Context, tenantID uuid.UUID, input SubscribeInput) (*models.BillingSubscription, error)
	Cancel(ctx context.Context, tenantID uuid.UUID) (*models.BillingSubscription, error)
}

// CurrentPlan is the tenant's plan plus the subscription backing it, if any.
type CurrentPlan struct {
	Plan         Plan                        `json:"plan"`
	Status       enums.SubscriptionStatus    `json:"status"`
	Subscription *models.BillingSubscription `json:"subscription,omitempty"`
}

type SubscribeInput struct {
	Plan         enums.PlanTier
	BillingEmail string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the billing service. Stripe may be
// nil when billing is not configured; plan reads keep working.
type ServiceParams struct {
	Repo       Repository
	TenantRepo *tenants.Repository
	Stripe     StripeClient
	Prices     PriceBook
	DB         txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
}

type service struct {
	repo    Repository
	tenants *tenants.Repository
	stripe  StripeClient
	prices  PriceBook
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("billing repo is required")
	case params.TenantRepo == nil:
		return nil, errors.New("tenant repo is required")
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &service{
		repo:    params.Repo,
		tenants: params.TenantRepo,
		stripe:  params.Stripe,
		prices:  params.Prices,
		tx:      params.DB,
		outbox:  params.Outbox,
		logg:    params.Logger,
	}, nil
}

func (s *service) ListPlans() []Plan {
	return Plans()
}

func (s *service) CurrentPlan(ctx context.Context, tenantID uuid.UUID) (*CurrentPlan, error) {
	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	sub, err := s.repo.FindCurrent(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	return &CurrentPlan{Plan: planFor(tenant.Plan), Status: tenant.SubscriptionStatus, Subscription: sub}, nil
}

// Subscribe starts a Stripe subscription for a paid plan. Payment is collected
// by Stripe; the tenant plan follows the subscription status.
func (s *service) Subscribe(ctx context.Context, tenantID uuid.UUID, input SubscribeInput) (*models.BillingSubscription, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured")
	}
	if !input.Plan.IsValid() || input.Plan == enums.PlanTierFree {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "choose a paid plan")
	}
	priceID, ok := s.prices.PriceFor(input.Plan)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("plan %s is not available", input.Plan))
	}

	tenant, err := s.tenants.FindByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "tenant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tenant")
	}
	current, err := s.repo.FindCurrent(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if current != nil {
		if current.Plan == input.Plan && !current.CancelAtPeriodEnd {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cancel the current subscription before changing plans")
	}

	customerID, err := s.ensureCustomer(ctx, tenant, input.BillingEmail)
	if err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionParams{
		Customer:        stripe.String(customerID),
		Items:           []*stripe.SubscriptionItemsParams{{Price: stripe.String(priceID)}},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	params.AddMetadata(metadataTenantID, tenantID.String())
	params.AddMetadata("plan", string(input.Plan))

	stripeSub, err := s.stripe.CreateSubscription(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "create stripe subscription")
	}

	var stored *models.BillingSubscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		stored, err = s.apply(ctx, tx, stripeSub, &tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"tenant_id":       tenantID.String(),
		"plan":            string(input.Plan),
		"subscription_id": stripeSub.ID,
	})
	s.logg.Info(logCtx, "subscription created")
	return stored, nil
}

// Cancel schedules the current subscription to end with its billing period.
func (s *service) Cancel(ctx context.Context, tenantID uuid.UUID) (*models.BillingSubscription, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured")
	}
	current, err := s.repo.FindCurrent(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if current == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active subscription")
	}
	if current.CancelAtPeriodEnd {
		return current, nil
	}

	stripeSub, err := s.stripe.UpdateSubscription(ctx, current.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternal, err, "cancel stripe subscription")
	}

	var stored *models.BillingSubscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		stored, err = s.apply(ctx, tx, stripeSub, &tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithField(ctx, "tenant_id", tenantID.String()), "subscription cancellation scheduled")
	return stored, nil
}

func (s *service) ensureCustomer(ctx context.Context, tenant *models.Tenant, email string) (string, error) {
	if tenant.StripeCustomerID != nil && *tenant.StripeCustomerID != "" {
		return *tenant.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{Name: stripe.String(tenant.CompanyName)}
	if email = strings.TrimSpace(email); email != "" {
		params.Email = stripe.String(email)
	}
	params.AddMetadata(metadataTenantID, tenant.ID.String())

	cust, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeExternal, err, "create stripe customer")
	}
	if err := s.tenants.SetStripeCustomerID(ctx, tenant.ID, cust.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store stripe customer")
	}
	return cust.ID, nil
}

// apply mirrors a Stripe subscription into billing_subscriptions and, when it
// is the tenant's current subscription, into the tenant plan and status.
func (s *service) apply(ctx context.Context, tx *gorm.DB, stripeSub *stripe.Subscription, tenantHint *uuid.UUID) (*models.BillingSubscription, error) {
	return applySubscription(ctx, tx, s.repo, s.tenants, s.outbox, s.prices, stripeSub, tenantHint)
}

func applySubscription(
	ctx context.Context,
	tx *gorm.DB,
	billingRepo Repository,
	tenantRepo *tenants.Repository,
	emitter outbox.Emitter,
	prices PriceBook,
	stripeSub *stripe.Subscription,
	tenantHint *uuid.UUID,
) (*models.BillingSubscription, error) {
	if stripeSub == nil || stripeSub.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}
	repo := billingRepo.WithTx(tx)
	stored, err := repo.FindByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}

	tenantID, err := tenantFor(stripeSub, stored, tenantHint)
	if err != nil {
		return nil, err
	}
	plan := planFromStripe(stripeSub, prices, stored)
	status := MapStripeStatus(stripeSub.Status)

	if stored == nil {
		stored = &models.BillingSubscription{
			TenantID:             tenantID,
			StripeSubscriptionID: stripeSub.ID,
		}
	}
	stored.StripeCustomerID = customerID(stripeSub, stored.StripeCustomerID)
	stored.Plan = plan
	stored.Status = status
	stored.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	stored.CurrentPeriodEnd = periodEnd(stripeSub)
	stored.CanceledAt = unixPtr(stripeSub.CanceledAt)

	if err := repo.Save(ctx, stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
	}

	current, err := repo.FindCurrent(ctx, tenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load current subscription")
	}
	if current != nil && current.ID != stored.ID {
		// A newer subscription owns the tenant plan.
		return stored, nil
	}

	if err := tenantRepo.WithTx(tx).UpdateSubscription(ctx, tenantID, plan, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update tenant plan")
	}
	if err := emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventSubscriptionUpdated,
		AggregateType: enums.AggregateTenant,
		AggregateID:   tenantID,
		TenantID:      &tenantID,
		Data: payloads.SubscriptionUpdatedEvent{
			TenantID:             tenantID,
			StripeSubscriptionID: stripeSub.ID,
			Plan:                 plan,
			Status:               status,
		},
	}); err != nil {
		return nil, err
	}
	return stored, nil
}

// MapStripeStatus folds Stripe's lifecycle into the three statuses tenants carry.
func MapStripeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusCanceled
	default:
		return enums.SubscriptionStatusPastDue
	}
}

func tenantFor(sub *stripe.Subscription, stored *models.BillingSubscription, hint *uuid.UUID) (uuid.UUID, error) {
	if stored != nil {
		return stored.TenantID, nil
	}
	if hint != nil {
		return *hint, nil
	}
	raw := strings.TrimSpace(sub.Metadata[metadataTenantID])
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata has no tenant_id")
	}
	return id, nil
}

func planFromStripe(sub *stripe.Subscription, prices PriceBook, stored *models.BillingSubscription) enums.PlanTier {
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item == nil || item.Price == nil {
				continue
			}
			if tier, ok := prices.TierFor(item.Price.ID); ok {
				return tier
			}
		}
	}
	if tier, err := enums.ParsePlanTier(sub.Metadata["plan"]); err == nil {
		return tier
	}
	if stored != nil {
		return stored.Plan
	}
	return enums.PlanTierFree
}

func customerID(sub *stripe.Subscription, fallback string) string {
	if sub.Customer != nil && sub.Customer.ID != "" {
		return sub.Customer.ID
	}
	return fallback
}

func periodEnd(sub *stripe.Subscription) *time.Time {
	if sub.Items == nil {
		return nil
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.CurrentPeriodEnd > 0 {
			return unixPtr(item.CurrentPeriodEnd)
		}
	}
	return nil
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func planFor(tier enums.PlanTier) Plan {
	for _, plan := range catalog {
		if plan.Tier == tier {
			return plan
		}
	}
	return catalog[0]
}
