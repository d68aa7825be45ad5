package cron

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type leaseStore struct {
	values map[string]string
	err    error
}

func (s *leaseStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = fmt.Sprint(value)
	return true, nil
}

func (s *leaseStore) ReleaseOwned(_ context.Context, key, owner string) (bool, error) {
	if s.values[key] != owner {
		return false, nil
	}
	delete(s.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := &leaseStore{values: map[string]string{}}
	first, err := NewRedisLock(store, "lg:lock:cron-worker:test", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "lg:lock:cron-worker:test", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	release, ok, err := first.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.Empty(t, store.values)

	_, ok, err = second.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockStaleReleaseKeepsNewOwner(t *testing.T) {
	store := &leaseStore{values: map[string]string{}}
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	staleRelease, ok, err := lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// lease expires and another replica takes over
	delete(store.values, "k")
	_, ok, err = lock.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, staleRelease(ctx))
	assert.Contains(t, store.values, "k")
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	store := &leaseStore{values: map[string]string{}, err: errors.New("connection refused")}
	lock, err := NewRedisLock(store, "k", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLockTTL, lock.ttl)

	_, ok, err := lock.TryAcquire(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, store.err)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(&leaseStore{}, "", time.Minute)
	assert.Error(t, err)
}
