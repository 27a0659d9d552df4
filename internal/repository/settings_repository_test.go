package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/guregu/null/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

type fakeCache struct {
	mu      sync.Mutex
	data    map[string]string
	readErr error
	gets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) *redis.StringCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.readErr != nil {
		return redis.NewStringResult("", c.readErr)
	}
	val, ok := c.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeCache) Del(_ context.Context, keys ...string) *redis.IntCmd {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

type countingRepo struct {
	SettingsRepository
	gets int
}

func (r *countingRepo) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	r.gets++
	return r.SettingsRepository.Get(ctx, guildID)
}

func TestMemorySettingsRepository(t *testing.T) {
	repo := NewMemorySettingsRepository()
	ctx := context.Background()

	s, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, s.Ticket.LogChannelID.Valid)

	require.NoError(t, repo.SetLogChannel(ctx, "g1", null.StringFrom("logs")))
	require.NoError(t, repo.SetSupportRole(ctx, "g1", null.StringFrom("support")))

	s, err = repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "logs", s.Ticket.LogChannelID.String)
	assert.Equal(t, "support", s.Ticket.SupportRoleID.String)
	assert.False(t, s.UpdatedAt.IsZero())

	require.NoError(t, repo.SetLogChannel(ctx, "g1", null.String{}))
	s, err = repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, s.Ticket.LogChannelID.Valid)
	assert.Equal(t, "support", s.Ticket.SupportRoleID.String)
}

func TestCachedSettingsRepositoryReadThrough(t *testing.T) {
	inner := &countingRepo{SettingsRepository: NewMemorySettingsRepository()}
	cache := newFakeCache()
	repo := NewCachedSettingsRepository(inner, cache, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.SetLogChannel(ctx, "g1", null.StringFrom("logs")))

	for i := 0; i < 3; i++ {
		s, err := repo.Get(ctx, "g1")
		require.NoError(t, err)
		assert.Equal(t, "logs", s.Ticket.LogChannelID.String)
	}
	assert.Equal(t, 1, inner.gets, "later reads must be served from cache")

	require.NoError(t, repo.SetLogChannel(ctx, "g1", null.StringFrom("audit")))
	s, err := repo.Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "audit", s.Ticket.LogChannelID.String)
	assert.Equal(t, 2, inner.gets)
}

func TestCachedSettingsRepositoryFallsThroughOnCacheError(t *testing.T) {
	inner := &countingRepo{SettingsRepository: NewMemorySettingsRepository()}
	cache := newFakeCache()
	cache.readErr = errors.New("connection refused")
	repo := NewCachedSettingsRepository(inner, cache, time.Minute, zap.NewNop())

	s, err := repo.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", s.GuildID)
	assert.Equal(t, 1, inner.gets)
}

func TestCachedSettingsRepositoryIgnoresCorruptEntry(t *testing.T) {
	inner := &countingRepo{SettingsRepository: NewMemorySettingsRepository()}
	cache := newFakeCache()
	cache.data[settingsKeyPrefix+"g1"] = "{not json"
	repo := NewCachedSettingsRepository(inner, cache, time.Minute, zap.NewNop())

	s, err := repo.Get(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "g1", s.GuildID)
	assert.Equal(t, 1, inner.gets)
}

func TestNewCachedSettingsRepositoryWithoutCache(t *testing.T) {
	inner := NewMemorySettingsRepository()
	assert.Same(t, inner, NewCachedSettingsRepository(inner, nil, time.Minute, zap.NewNop()))
}
