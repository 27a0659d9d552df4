package events

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketOpened             EventType = "ticket_opened"
	EventTicketClosed             EventType = "ticket_closed"
	EventTicketNotificationFailed EventType = "ticket_notification_failed"
)

// Actor is the Discord user behind an event.
type Actor struct {
	UserID string `json:"user_id,omitempty"`
	Tag    string `json:"tag,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	GuildID   string      `json:"guild_id"`
	ChannelID string      `json:"channel_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketOpenedPayload is published once a ticket channel is ready. Embed is
// the summary direct-messaged to the owner.
type TicketOpenedPayload struct {
	OwnerUserID string                  `json:"owner_user_id"`
	Title       string                  `json:"title"`
	Number      int                     `json:"number"`
	Embed       *discordgo.MessageEmbed `json:"-"`
}

// TicketClosedPayload is published after the ticket channel was deleted.
// Embed goes to the owner and to the audit channel.
type TicketClosedPayload struct {
	OwnerUserID  string                  `json:"owner_user_id"`
	Title        string                  `json:"title"`
	Reason       string                  `json:"reason"`
	LogsURL      string                  `json:"logs_url,omitempty"`
	LogChannelID string                  `json:"log_channel_id,omitempty"`
	Embed        *discordgo.MessageEmbed `json:"-"`
}

// NotificationFailedPayload records a best-effort delivery that did not happen.
type NotificationFailedPayload struct {
	Target string `json:"target"`
	Error  string `json:"error"`
}
