// Package platform is the narrow view of the Discord API the ticket
// workflows need. Everything is expressed with discordgo types so the
// production adapter is a thin wrapper and tests can supply fakes.
package platform

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Platform is the chat platform surface consumed by the ticket services.
type Platform interface {
	// GuildChannels returns the guild's channels in cache order (unordered).
	GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error)
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error)
	DeleteChannel(ctx context.Context, channelID string) error
	// ChannelMessages returns at most limit messages, newest first.
	ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error)
	SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	User(ctx context.Context, userID string) (*discordgo.User, error)
	BotUserID() string
	BotPermissions(ctx context.Context, channelID string) (int64, error)
	// BotHighestRoleID returns "" when the bot holds no role besides @everyone.
	BotHighestRoleID(ctx context.Context, guildID string) (string, error)
}

// HasPermissions reports whether every bit of required is set in perms.
func HasPermissions(perms, required int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&required == required
}

// MessageURL builds the jump link of a guild message.
func MessageURL(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// ChannelURL builds the link of a guild channel.
func ChannelURL(guildID, channelID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s", guildID, channelID)
}
