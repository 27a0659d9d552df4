package repository

import (
	"context"
	"errors"
	"time"

	"github.com/guregu/null/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const settingsKeyPrefix = "guild_settings:"

// SettingsCache is the subset of the Redis client the cache uses.
type SettingsCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type cachedSettingsRepository struct {
	inner  SettingsRepository
	cache  SettingsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedSettingsRepository puts a read-through Redis cache in front of
// inner. Cache failures are logged and fall through to inner.
func NewCachedSettingsRepository(inner SettingsRepository, cache SettingsCache, ttl time.Duration, logger *zap.Logger) SettingsRepository {
	if cache == nil {
		return inner
	}
	return &cachedSettingsRepository{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

func (r *cachedSettingsRepository) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	key := settingsKeyPrefix + guildID

	raw, err := r.cache.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var settings domain.GuildSettings
		if err := json.Unmarshal(raw, &settings); err == nil {
			return &settings, nil
		}
		r.logger.Warn("discarding corrupt settings cache entry", zap.String("guild_id", guildID))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("settings cache read failed", zap.String("guild_id", guildID), zap.Error(err))
	}

	settings, err := r.inner.Get(ctx, guildID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(settings); err == nil {
		if err := r.cache.Set(ctx, key, payload, r.ttl).Err(); err != nil {
			r.logger.Warn("settings cache write failed", zap.String("guild_id", guildID), zap.Error(err))
		}
	}
	return settings, nil
}

func (r *cachedSettingsRepository) SetLogChannel(ctx context.Context, guildID string, channelID null.String) error {
	if err := r.inner.SetLogChannel(ctx, guildID, channelID); err != nil {
		return err
	}
	r.invalidate(ctx, guildID)
	return nil
}

func (r *cachedSettingsRepository) SetSupportRole(ctx context.Context, guildID string, roleID null.String) error {
	if err := r.inner.SetSupportRole(ctx, guildID, roleID); err != nil {
		return err
	}
	r.invalidate(ctx, guildID)
	return nil
}

func (r *cachedSettingsRepository) invalidate(ctx context.Context, guildID string) {
	if err := r.cache.Del(ctx, settingsKeyPrefix+guildID).Err(); err != nil {
		r.logger.Warn("settings cache invalidation failed", zap.String("guild_id", guildID), zap.Error(err))
	}
}
