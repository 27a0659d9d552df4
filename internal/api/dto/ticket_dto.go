package dto

import (
	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// TicketSummary response.
type TicketSummary struct {
	ChannelID   string `json:"channel_id"`
	ChannelName string `json:"channel_name"`
	ChannelURL  string `json:"channel_url"`
	Number      int    `json:"number"`
	OwnerUserID string `json:"owner_user_id"`
	Title       string `json:"title"`
}

// NewTicketSummary maps a ticket to its response.
func NewTicketSummary(t domain.Ticket) TicketSummary {
	return TicketSummary{
		ChannelID:   t.ChannelID,
		ChannelName: t.ChannelName,
		ChannelURL:  platform.ChannelURL(t.GuildID, t.ChannelID),
		Number:      t.Number,
		OwnerUserID: t.OwnerUserID,
		Title:       t.Title,
	}
}

// CloseTicketRequest payload. An empty ClosedByUserID closes as the bot.
type CloseTicketRequest struct {
	ClosedByUserID string `json:"closed_by_user_id"`
	Reason         string `json:"reason"`
}

// CloseAllRequest payload.
type CloseAllRequest struct {
	ClosedByUserID string `json:"closed_by_user_id"`
}
