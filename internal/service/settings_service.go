package service

import (
	"context"
	"strings"

	"github.com/guregu/null/v5"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/repository"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

// SettingsService reads and updates per-guild ticket settings.
type SettingsService struct {
	repo               repository.SettingsRepository
	defaultSupportRole string
}

// NewSettingsService builds the service. defaultSupportRole applies to
// guilds that never chose one.
func NewSettingsService(repo repository.SettingsRepository, defaultSupportRole string) *SettingsService {
	return &SettingsService{repo: repo, defaultSupportRole: defaultSupportRole}
}

// Get returns the guild's settings.
func (s *SettingsService) Get(ctx context.Context, guildID string) (*domain.GuildSettings, error) {
	if guildID == "" {
		return nil, apperrors.NewValidationError("guild id required", nil)
	}
	return s.repo.Get(ctx, guildID)
}

// SetLogChannel sets the audit channel; an empty id clears it.
func (s *SettingsService) SetLogChannel(ctx context.Context, guildID, channelID string) error {
	id, err := snowflake("log_channel", channelID)
	if err != nil {
		return err
	}
	return s.repo.SetLogChannel(ctx, guildID, id)
}

// SetSupportRole sets the role granted access to new tickets; an empty id
// clears it.
func (s *SettingsService) SetSupportRole(ctx context.Context, guildID, roleID string) error {
	id, err := snowflake("support_role", roleID)
	if err != nil {
		return err
	}
	return s.repo.SetSupportRole(ctx, guildID, id)
}

// Update applies the non-nil fields. Both ids are validated before either
// one is stored.
func (s *SettingsService) Update(ctx context.Context, guildID string, logChannelID, supportRoleID *string) error {
	if guildID == "" {
		return apperrors.NewValidationError("guild id required", nil)
	}
	var logChannel, supportRole null.String
	var err error
	if logChannelID != nil {
		if logChannel, err = snowflake("log_channel", *logChannelID); err != nil {
			return err
		}
	}
	if supportRoleID != nil {
		if supportRole, err = snowflake("support_role", *supportRoleID); err != nil {
			return err
		}
	}

	if logChannelID != nil {
		if err := s.repo.SetLogChannel(ctx, guildID, logChannel); err != nil {
			return err
		}
	}
	if supportRoleID != nil {
		return s.repo.SetSupportRole(ctx, guildID, supportRole)
	}
	return nil
}

// SupportRole resolves the role for a new ticket of guildID. Lookup errors
// fall back to the default role.
func (s *SettingsService) SupportRole(ctx context.Context, guildID string) string {
	settings, err := s.repo.Get(ctx, guildID)
	if err != nil || !settings.Ticket.SupportRoleID.Valid {
		return s.defaultSupportRole
	}
	return settings.Ticket.SupportRoleID.String
}

func snowflake(field, raw string) (null.String, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return null.String{}, nil
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return null.String{}, apperrors.NewValidationError(field+" must be a Discord id", map[string]any{field: raw})
		}
	}
	return null.StringFrom(raw), nil
}
