package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/config"
)

// scriptedStore mimics the server side of the two Lua scripts the client
// sends, keyed on the script body.
type scriptedStore struct {
	data    map[string]string
	ttls    map[string]time.Duration
	evalErr error
	evals   int
}

func newScriptedStore() *scriptedStore {
	return &scriptedStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *scriptedStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (s *scriptedStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	s.data[key] = fmt.Sprint(value)
	s.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (s *scriptedStore) Get(_ context.Context, key string) *redis.StringCmd {
	value, ok := s.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (s *scriptedStore) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := s.Get(ctx, key)
	delete(s.data, key)
	return cmd
}

func (s *scriptedStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := s.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	s.data[key] = fmt.Sprint(value)
	s.ttls[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (s *scriptedStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var removed int64
	for _, key := range keys {
		if _, ok := s.data[key]; ok {
			removed++
		}
		delete(s.data, key)
	}
	return redis.NewIntResult(removed, nil)
}

func (s *scriptedStore) Eval(_ context.Context, script string, keys []string, args ...any) *redis.Cmd {
	s.evals++
	if s.evalErr != nil {
		return redis.NewCmdResult(nil, s.evalErr)
	}
	key := keys[0]
	switch script {
	case incrExpireScript:
		var count int64
		fmt.Sscan(s.data[key], &count)
		count++
		s.data[key] = fmt.Sprint(count)
		if ms := args[0].(int64); count == 1 && ms > 0 {
			s.ttls[key] = time.Duration(ms) * time.Millisecond
		}
		return redis.NewCmdResult(count, nil)
	case releaseOwnedScript:
		if value, ok := s.data[key]; ok && value == args[0] {
			delete(s.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, errors.New("unknown script"))
}

func TestIncrWithTTLStartsWindowOnFirstHit(t *testing.T) {
	store := newScriptedStore()
	client := &Client{store: store}
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "lg:rl:login:ip:1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, time.Minute, store.ttls["lg:rl:login:ip:1"])
	assert.Equal(t, 3, store.evals)
}

func TestIncrWithTTLWrapsScriptErrors(t *testing.T) {
	store := newScriptedStore()
	store.evalErr = errors.New("NOSCRIPT")
	client := &Client{store: store}

	_, err := client.IncrWithTTL(context.Background(), "k", time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.evalErr)
	assert.Contains(t, err.Error(), "incr k")
}

func TestReleaseOwnedChecksOwner(t *testing.T) {
	store := newScriptedStore()
	client := &Client{store: store}
	ctx := context.Background()

	ok, err := client.SetNX(ctx, "lg:lock:cron-worker:prod", "owner-a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	released, err := client.ReleaseOwned(ctx, "lg:lock:cron-worker:prod", "owner-b")
	require.NoError(t, err)
	assert.False(t, released)
	assert.Contains(t, store.data, "lg:lock:cron-worker:prod")

	released, err = client.ReleaseOwned(ctx, "lg:lock:cron-worker:prod", "owner-a")
	require.NoError(t, err)
	assert.True(t, released)
	assert.NotContains(t, store.data, "lg:lock:cron-worker:prod")
}

func TestGetMissingKeyReturnsNil(t *testing.T) {
	client := &Client{store: newScriptedStore()}
	_, err := client.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestGetDelConsumesKey(t *testing.T) {
	store := newScriptedStore()
	client := &Client{store: store}
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "lg:session:access:a1", "v", time.Hour))
	got, err := client.GetDel(ctx, "lg:session:access:a1")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = client.GetDel(ctx, "lg:session:access:a1")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	ctx := context.Background()

	assert.ErrorIs(t, client.Ping(ctx), errNotInitialized)
	_, err := client.IncrWithTTL(ctx, "k", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	_, err = client.ReleaseOwned(ctx, "k", "o")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "lg:idempotency:stripe-webhook:evt_1", client.IdempotencyKey("stripe-webhook", "evt_1"))
	assert.Equal(t, "lg:session:access:abc", client.AccessSessionKey("abc"))
	assert.Equal(t, "lg:lock:cron-worker:prod", client.LockKey("cron-worker", "prod"))
	assert.Equal(t, "lg:lock:cron-worker:local", client.LockKey("cron-worker", " "))
	assert.Equal(t, "lg:a:b", Key(" a ", "", "b"))
}

func TestOptions(t *testing.T) {
	_, err := options(config.RedisConfig{})
	require.Error(t, err)

	opts, err := options(config.RedisConfig{URL: "redis://:secret@cache:6380/2", PoolSize: 20, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 20, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = options(config.RedisConfig{Address: "localhost:6379", DB: 4})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 4, opts.DB)
}
