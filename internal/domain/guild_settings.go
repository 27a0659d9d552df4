package domain

import (
	"time"

	"github.com/guregu/null/v5"
)

// GuildSettings is the per-guild configuration record.
type GuildSettings struct {
	GuildID string         `json:"guild_id"`
	Ticket  TicketSettings `json:"ticket"`
	// UpdatedAt is zero for guilds that were never configured.
	UpdatedAt time.Time `json:"updated_at"`
}

// TicketSettings groups the ticket related settings of a guild.
type TicketSettings struct {
	LogChannelID  null.String `json:"log_channel"`
	SupportRoleID null.String `json:"support_role"`
}

// DefaultGuildSettings returns the settings of an unconfigured guild.
func DefaultGuildSettings(guildID string) *GuildSettings {
	return &GuildSettings{GuildID: guildID}
}
