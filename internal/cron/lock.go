package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLockTTL = 10 * time.Minute

// ReleaseFunc gives a held lock back.
type ReleaseFunc func(ctx context.Context) error

// Lock keeps two cron-worker replicas from running the same tick.
type Lock interface {
	// TryAcquire returns ok=false without error when another replica holds it.
	TryAcquire(ctx context.Context) (release ReleaseFunc, ok bool, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseOwned(ctx context.Context, key, owner string) (bool, error)
}

// RedisLock is a SET NX lease. Each acquisition writes a fresh owner token
// and only that token can release it, so a replica whose lease expired
// mid-run cannot free a lock another replica has since taken.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis store required for cron lock")
	}
	if key == "" {
		return nil, errors.New("cron lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) TryAcquire(ctx context.Context) (ReleaseFunc, bool, error) {
	owner := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		if _, err := l.store.ReleaseOwned(ctx, l.key, owner); err != nil {
			return fmt.Errorf("release %s: %w", l.key, err)
		}
		return nil
	}, true, nil
}
