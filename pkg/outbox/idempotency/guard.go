// Package idempotency lets at-least-once consumers (the Pub/Sub analytics
// worker, the Stripe webhook) apply each delivery once.
//
// A delivery moves through two states in Redis. Begin writes "pending" with
// a short lease; Complete overwrites it with "done" for the full retention.
// A consumer that crashes mid-delivery leaves only the lease behind, so the
// redelivery after it lapses is processed instead of being dropped as a
// duplicate.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statePending = "pending"
	stateDone    = "done"

	defaultLease = 5 * time.Minute
)

// Outcome of Begin.
type Outcome int

const (
	// Proceed means the caller now owns the delivery.
	Proceed Outcome = iota
	// Duplicate means the delivery was already applied.
	Duplicate
	// InFlight means another consumer holds the lease; retry later.
	InFlight
)

func (o Outcome) String() string {
	switch o {
	case Proceed:
		return "proceed"
	case Duplicate:
		return "duplicate"
	case InFlight:
		return "in_flight"
	}
	return "unknown"
}

// Store is satisfied by *redis.Client from pkg/redis.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Guard tracks deliveries for one consumer scope.
type Guard struct {
	store     Store
	scope     string
	retention time.Duration
	lease     time.Duration
}

// NewGuard remembers completed deliveries for retention. A zero retention
// keeps them until evicted.
func NewGuard(store Store, scope string, retention time.Duration) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("idempotency scope is required")
	}
	if retention < 0 {
		return nil, errors.New("idempotency retention must be non-negative")
	}
	lease := defaultLease
	if retention > 0 && retention < lease {
		lease = retention
	}
	return &Guard{store: store, scope: scope, retention: retention, lease: lease}, nil
}

func (g *Guard) Begin(ctx context.Context, id string) (Outcome, error) {
	key, err := g.key(id)
	if err != nil {
		return Proceed, err
	}
	claimed, err := g.store.SetNX(ctx, key, statePending, g.lease)
	if err != nil {
		return Proceed, fmt.Errorf("claim %s: %w", key, err)
	}
	if claimed {
		return Proceed, nil
	}
	state, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, redis.Nil):
		// lease lapsed between the two calls; let the next delivery claim it
		return InFlight, nil
	case err != nil:
		return Proceed, fmt.Errorf("read %s: %w", key, err)
	case state == stateDone:
		return Duplicate, nil
	}
	return InFlight, nil
}

// Complete marks id as applied.
func (g *Guard) Complete(ctx context.Context, id string) error {
	key, err := g.key(id)
	if err != nil {
		return err
	}
	if err := g.store.Set(ctx, key, stateDone, g.retention); err != nil {
		return fmt.Errorf("complete %s: %w", key, err)
	}
	return nil
}

// Abort drops the lease so a redelivery is processed straight away.
func (g *Guard) Abort(ctx context.Context, id string) error {
	key, err := g.key(id)
	if err != nil {
		return err
	}
	if err := g.store.Del(ctx, key); err != nil {
		return fmt.Errorf("abort %s: %w", key, err)
	}
	return nil
}

func (g *Guard) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("delivery id is required")
	}
	return g.store.IdempotencyKey(g.scope, id), nil
}
