package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/loggas/loggas-backend/api/responses"
	pkgerrors "github.com/loggas/loggas-backend/pkg/errors"
	"github.com/loggas/loggas-backend/pkg/logger"
	"github.com/loggas/loggas-backend/pkg/outbox/idempotency"
)

// Stripe caps event payloads at 64KB.
const maxPayloadBytes = 65536

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type deliveryGuard interface {
	Begin(ctx context.Context, id string) (idempotency.Outcome, error)
	Complete(ctx context.Context, id string) error
	Abort(ctx context.Context, id string) error
}

type eventVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

// StripeWebhook verifies the signature, drops replays and forwards billing
// events. A failed event gives up its claim so Stripe's retry is processed;
// an event another replica is still applying answers 409 and Stripe retries.
func StripeWebhook(svc StripeWebhookService, verifier eventVerifier, guard deliveryGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured"))
			return
		}

		payload, err := readPayload(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		event, err := verifier.VerifyEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify signature"))
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		outcome, err := guard.Begin(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		switch outcome {
		case idempotency.Duplicate:
			responses.WriteSuccess(w, map[string]bool{"duplicate": true})
			return
		case idempotency.InFlight:
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeConflict, "event is already being processed"))
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if abortErr := guard.Abort(context.WithoutCancel(ctx), event.ID); abortErr != nil && logg != nil {
				logg.Error(ctx, "release stripe event claim", abortErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := guard.Complete(context.WithoutCancel(ctx), event.ID); err != nil && logg != nil {
			// the lease expires on its own; a retry inside it answers 409
			logg.Error(ctx, "mark stripe event complete", err)
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, nil)
	}
}

// readPayload refuses bodies over the cap instead of truncating them, since
// a truncated body can only fail signature verification.
func readPayload(body io.Reader) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(body, maxPayloadBytes+1))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body")
	}
	if len(payload) > maxPayloadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payload too large")
	}
	return payload, nil
}
