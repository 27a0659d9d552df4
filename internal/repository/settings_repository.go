package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guregu/null/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// SettingsRepository stores per-guild settings.
type SettingsRepository interface {
	// Get returns default settings for guilds that were never configured.
	Get(ctx context.Context, guildID string) (*domain.GuildSettings, error)
	SetLogChannel(ctx context.Context, guildID string, channelID null.String) error
	SetSupportRole(ctx context.Context, guildID string, roleID null.String) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository builds the Postgres backed repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

func (r *settingsRepository) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	const query = `
        SELECT guild_id, ticket_log_channel, ticket_support_role, updated_at
        FROM guild_settings WHERE guild_id=$1`
	settings := &domain.GuildSettings{}
	err := r.pool.QueryRow(ctx, query, guildID).Scan(
		&settings.GuildID,
		&settings.Ticket.LogChannelID,
		&settings.Ticket.SupportRoleID,
		&settings.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DefaultGuildSettings(guildID), nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *settingsRepository) SetLogChannel(ctx context.Context, guildID string, channelID null.String) error {
	const query = `
        INSERT INTO guild_settings (guild_id, ticket_log_channel)
        VALUES ($1,$2)
        ON CONFLICT (guild_id) DO UPDATE SET ticket_log_channel=EXCLUDED.ticket_log_channel, updated_at=now()`
	_, err := r.pool.Exec(ctx, query, guildID, channelID)
	return err
}

func (r *settingsRepository) SetSupportRole(ctx context.Context, guildID string, roleID null.String) error {
	const query = `
        INSERT INTO guild_settings (guild_id, ticket_support_role)
        VALUES ($1,$2)
        ON CONFLICT (guild_id) DO UPDATE SET ticket_support_role=EXCLUDED.ticket_support_role, updated_at=now()`
	_, err := r.pool.Exec(ctx, query, guildID, roleID)
	return err
}

type memorySettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]domain.GuildSettings
}

// NewMemorySettingsRepository keeps settings in process memory; used when no
// database is configured and in tests.
func NewMemorySettingsRepository() SettingsRepository {
	return &memorySettingsRepository{settings: make(map[string]domain.GuildSettings)}
}

func (r *memorySettingsRepository) Get(_ context.Context, guildID string) (*domain.GuildSettings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[guildID]
	if !ok {
		return domain.DefaultGuildSettings(guildID), nil
	}
	return &s, nil
}

func (r *memorySettingsRepository) SetLogChannel(_ context.Context, guildID string, channelID null.String) error {
	r.update(guildID, func(s *domain.GuildSettings) { s.Ticket.LogChannelID = channelID })
	return nil
}

func (r *memorySettingsRepository) SetSupportRole(_ context.Context, guildID string, roleID null.String) error {
	r.update(guildID, func(s *domain.GuildSettings) { s.Ticket.SupportRoleID = roleID })
	return nil
}

func (r *memorySettingsRepository) update(guildID string, apply func(*domain.GuildSettings)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[guildID]
	if !ok {
		s = *domain.DefaultGuildSettings(guildID)
	}
	apply(&s)
	s.UpdatedAt = time.Now()
	r.settings[guildID] = s
}
