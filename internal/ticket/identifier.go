// Package ticket recognises ticket channels and renders their transcripts.
//
// A ticket has no row of its own: its identity lives in the channel it owns.
// The name carries the display number (ticket-<n>) and the topic carries the
// owner and title (ticket|<owner>|<title>). Keeping the encoding here lets the
// services stay unaware of where ticket identity is stored.
package ticket

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/domain"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	// NamePrefix marks a ticket channel name. It must stay byte-identical
	// between creation and parsing.
	NamePrefix = "ticket-"
	// TopicPrefix marks a ticket channel topic.
	TopicPrefix = "ticket|"

	topicSentinel  = "ticket"
	topicDelimiter = "|"
)

// IsTicket reports whether channel is a ticket. Both the name and the topic
// must carry the sentinel, so a renamed or repurposed channel is not
// misclassified.
func IsTicket(channel *discordgo.Channel) bool {
	if channel == nil || channel.Type != discordgo.ChannelTypeGuildText {
		return false
	}
	if !strings.HasPrefix(channel.Name, NamePrefix) {
		return false
	}
	if channel.Topic == "" || !strings.HasPrefix(channel.Topic, TopicPrefix) {
		return false
	}
	_, err := DecodeTopic(channel.Topic)
	return err == nil
}

// EncodeTopic packs the ticket identity into a channel topic.
func EncodeTopic(ownerUserID, title string) string {
	return topicSentinel + topicDelimiter + ownerUserID + topicDelimiter + title
}

// DecodeTopic unpacks a topic written by EncodeTopic. Anything after the
// second delimiter belongs to the title.
func DecodeTopic(topic string) (domain.TicketDetails, error) {
	fields := strings.SplitN(topic, topicDelimiter, 3)
	if len(fields) < 3 || fields[0] != topicSentinel || fields[1] == "" {
		return domain.TicketDetails{}, apperrors.NewNotATicket("")
	}
	return domain.TicketDetails{OwnerUserID: fields[1], Title: fields[2]}, nil
}

// ChannelName returns the channel name for ticket number n.
func ChannelName(n int) string {
	return NamePrefix + strconv.Itoa(n)
}

// ParseNumber extracts the display number from a ticket channel name.
func ParseNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, NamePrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(name, NamePrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FromChannel derives the ticket backed by channel.
func FromChannel(channel *discordgo.Channel) (*domain.Ticket, error) {
	if !IsTicket(channel) {
		id := ""
		if channel != nil {
			id = channel.ID
		}
		return nil, apperrors.NewNotATicket(id)
	}
	details, err := DecodeTopic(channel.Topic)
	if err != nil {
		return nil, apperrors.NewNotATicket(channel.ID)
	}
	number, _ := ParseNumber(channel.Name)
	return &domain.Ticket{
		ChannelID:   channel.ID,
		GuildID:     channel.GuildID,
		ChannelName: channel.Name,
		OwnerUserID: details.OwnerUserID,
		Title:       details.Title,
		Number:      number,
	}, nil
}
