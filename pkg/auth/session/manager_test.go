package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loggas/loggas-backend/pkg/config"
	redisclient "github.com/loggas/loggas-backend/pkg/redis"
)

type memoryStore struct {
	mu     sync.Mutex
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *memoryStore) GetDel(ctx context.Context, key string) (string, error) {
	v, err := m.Get(ctx, key)
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return v, err
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) AccessSessionKey(accessID string) string { return "sess:" + accessID }

func TestGenerateStoresOnlyTokenHash(t *testing.T) {
	store := newMemoryStore()
	m := newManager(store, time.Hour)
	userID := uuid.New()

	token, err := m.Generate(context.Background(), "a1", userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	stored := store.data["sess:a1"]
	assert.NotContains(t, stored, token)
	rec, ok := decodeRecord(stored)
	require.True(t, ok)
	assert.Equal(t, userID, rec.UserID)
	assert.Equal(t, hashToken(token), rec.RefreshHash)
	assert.Equal(t, time.Hour, store.ttls["sess:a1"])
}

func TestRotateIssuesNewSessionOnce(t *testing.T) {
	store := newMemoryStore()
	m := newManager(store, time.Hour)
	ctx := context.Background()
	userID := uuid.New()

	token, err := m.Generate(ctx, "a1", userID)
	require.NoError(t, err)

	rotation, err := m.Rotate(ctx, "a1", token)
	require.NoError(t, err)
	assert.Equal(t, userID, rotation.UserID)
	assert.NotEqual(t, "a1", rotation.AccessID)
	assert.NotEqual(t, token, rotation.RefreshToken)

	alive, err := m.HasSession(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, alive, "old session must be consumed")
	alive, err = m.HasSession(ctx, rotation.AccessID)
	require.NoError(t, err)
	assert.True(t, alive)

	_, err = m.Rotate(ctx, "a1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "replayed refresh token")
}

func TestRotateWithWrongTokenBurnsSession(t *testing.T) {
	store := newMemoryStore()
	m := newManager(store, time.Hour)
	ctx := context.Background()

	token, err := m.Generate(ctx, "a1", uuid.New())
	require.NoError(t, err)

	_, err = m.Rotate(ctx, "a1", "guess")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	_, err = m.Rotate(ctx, "a1", token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRotateRejectsBlankInput(t *testing.T) {
	m := newManager(newMemoryStore(), time.Hour)
	_, err := m.Rotate(context.Background(), "", "token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	_, err = m.Rotate(context.Background(), "a1", " ")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRevokeAndHasSession(t *testing.T) {
	store := newMemoryStore()
	m := newManager(store, time.Hour)
	ctx := context.Background()

	_, err := m.Generate(ctx, "a1", uuid.New())
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, "a1"))

	alive, err := m.HasSession(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, alive)

	assert.Error(t, m.Revoke(ctx, " "))
	_, err = m.Generate(ctx, "a2", uuid.Nil)
	assert.Error(t, err)

	store.getErr = errors.New("connection refused")
	_, err = m.HasSession(ctx, "a2")
	assert.Error(t, err)
}

func TestDecodeRecordRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "not-json", `{"uid":"00000000-0000-0000-0000-000000000000","rh":"x"}`, `{"uid":"` + uuid.NewString() + `"}`} {
		_, ok := decodeRecord(raw)
		assert.False(t, ok, raw)
	}
}

func TestNewManagerValidatesTTLs(t *testing.T) {
	_, err := NewManager(nil, config.JWTConfig{})
	assert.Error(t, err)

	client := &redisclient.Client{}
	_, err = NewManager(client, config.JWTConfig{ExpirationMinutes: 60, RefreshTokenTTLMinutes: 30})
	assert.Error(t, err, "refresh shorter than access")

	m, err := NewManager(client, config.JWTConfig{ExpirationMinutes: 15, RefreshTokenTTLMinutes: 43200})
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, m.ttl)
}
