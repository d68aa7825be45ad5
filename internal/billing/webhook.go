package billing

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/loggas/loggas-backend/internal/tenants"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox"
)

// WebhookServiceParams groups dependencies for Stripe event handling.
type WebhookServiceParams struct {
	Repo       Repository
	TenantRepo *tenants.Repository
	Stripe     StripeClient
	Prices     PriceBook
	DB         txRunner
	Outbox     outbox.Emitter
	Logger     *logger.Logger
}

// WebhookService applies Stripe subscription lifecycle events to tenants.
type WebhookService struct {
	repo    Repository
	tenants *tenants.Repository
	stripe  StripeClient
	prices  PriceBook
	tx      txRunner
	outbox  outbox.Emitter
	logg    *logger.Logger
}

func NewWebhookService(params WebhookServiceParams) (*WebhookService, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("billing repo is required")
	case params.TenantRepo == nil:
		return nil, errors.New("tenant repo is required")
	case params.Stripe == nil:
		return nil, errors.New("stripe client is required")
	case params.DB == nil:
		return nil, errors.New("transaction runner is required")
	case params.Outbox == nil:
		return nil, errors.New("outbox emitter is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &WebhookService{
		repo:    params.Repo,
		tenants: params.TenantRepo,
		stripe:  params.Stripe,
		prices:  params.Prices,
		tx:      params.DB,
		outbox:  params.Outbox,
		logg:    params.Logger,
	}, nil
}

// HandleEvent syncs the subscription an event refers to. Unrelated event
// types are acknowledged without work.
func (s *WebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription event")
		}
		if event.Type == stripe.EventTypeCustomerSubscriptionDeleted {
			sub.Status = stripe.SubscriptionStatusCanceled
		}
		return s.sync(ctx, &sub)
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := invoiceSubscriptionID(event)
		if subscriptionID == "" {
			s.logg.Debug(ctx, "invoice without subscription ignored")
			return nil
		}
		sub, err := s.stripe.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeExternal, err, "fetch stripe subscription")
		}
		return s.sync(ctx, sub)
	default:
		return nil
	}
}

func (s *WebhookService) sync(ctx context.Context, sub *stripe.Subscription) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := applySubscription(ctx, tx, s.repo, s.tenants, s.outbox, s.prices, sub, nil)
		return err
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID,
		"status":          string(MapStripeStatus(sub.Status)),
	}), "subscription synced")
	return nil
}

func invoiceSubscriptionID(event *stripe.Event) string {
	if id := event.GetObjectValue("parent", "subscription_details", "subscription"); id != "" {
		return id
	}
	return event.GetObjectValue("subscription")
}
