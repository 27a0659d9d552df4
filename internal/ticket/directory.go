package ticket

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// Directory answers read-only questions about the tickets of a guild.
type Directory struct {
	platform platform.Platform
}

// NewDirectory builds a directory over the given platform.
func NewDirectory(p platform.Platform) *Directory {
	return &Directory{platform: p}
}

// ListTickets returns the guild's ticket channels. The order follows the
// platform's channel cache and is unspecified.
func (d *Directory) ListTickets(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	channels, err := d.platform.GuildChannels(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}
	tickets := make([]*discordgo.Channel, 0, len(channels))
	for _, ch := range channels {
		if IsTicket(ch) {
			tickets = append(tickets, ch)
		}
	}
	return tickets, nil
}

// FindTicketForUser returns the first ticket owned by userID. If a user owns
// several tickets, which one is returned is unspecified.
func (d *Directory) FindTicketForUser(ctx context.Context, guildID, userID string) (*discordgo.Channel, bool, error) {
	tickets, err := d.ListTickets(ctx, guildID)
	if err != nil {
		return nil, false, err
	}
	for _, ch := range tickets {
		details, err := DecodeTopic(ch.Topic)
		if err != nil {
			continue
		}
		if details.OwnerUserID == userID {
			return ch, true, nil
		}
	}
	return nil, false, nil
}
