package dto

import (
	"github.com/guregu/null/v5"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

// SettingsResponse mirrors a guild's ticket settings. Unset ids are null.
type SettingsResponse struct {
	GuildID       string      `json:"guild_id"`
	LogChannelID  null.String `json:"log_channel_id"`
	SupportRoleID null.String `json:"support_role_id"`
	UpdatedAt     null.Time   `json:"updated_at"`
}

// NewSettingsResponse maps guild settings.
func NewSettingsResponse(s *domain.GuildSettings) SettingsResponse {
	return SettingsResponse{
		GuildID:       s.GuildID,
		LogChannelID:  s.Ticket.LogChannelID,
		SupportRoleID: s.Ticket.SupportRoleID,
		UpdatedAt:     null.NewTime(s.UpdatedAt, !s.UpdatedAt.IsZero()),
	}
}

// UpdateSettingsRequest patches settings. Absent fields are left alone; an
// empty string clears the value.
type UpdateSettingsRequest struct {
	LogChannelID  *string `json:"log_channel_id"`
	SupportRoleID *string `json:"support_role_id"`
}
