package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord implements Platform on top of a discordgo session. Reads prefer
// the gateway state cache and fall back to REST.
type Discord struct {
	session *discordgo.Session
}

// NewDiscord wraps an opened session.
func NewDiscord(session *discordgo.Session) *Discord {
	return &Discord{session: session}
}

// GuildChannels returns copies of the cached channels; the gateway updates
// state entries in place.
func (d *Discord) GuildChannels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil {
		d.session.State.RLock()
		channels := make([]*discordgo.Channel, 0, len(guild.Channels))
		for _, ch := range guild.Channels {
			cp := *ch
			channels = append(channels, &cp)
		}
		d.session.State.RUnlock()
		if len(channels) > 0 {
			return channels, nil
		}
	}
	return d.session.GuildChannels(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil {
		d.session.State.RLock()
		defer d.session.State.RUnlock()
		return &discordgo.Guild{ID: guild.ID, Name: guild.Name, OwnerID: guild.OwnerID, Icon: guild.Icon}, nil
	}
	return d.session.Guild(guildID, discordgo.WithContext(ctx))
}

func (d *Discord) CreateChannel(ctx context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	return d.session.GuildChannelCreateComplex(guildID, data, discordgo.WithContext(ctx))
}

func (d *Discord) DeleteChannel(ctx context.Context, channelID string) error {
	_, err := d.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return err
}

func (d *Discord) ChannelMessages(ctx context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	return d.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
}

func (d *Discord) SendMessage(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	return d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
}

func (d *Discord) SendDirectMessage(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	dm, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("open dm channel: %w", err)
	}
	return d.session.ChannelMessageSendComplex(dm.ID, msg, discordgo.WithContext(ctx))
}

func (d *Discord) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return d.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}

func (d *Discord) User(ctx context.Context, userID string) (*discordgo.User, error) {
	return d.session.User(userID, discordgo.WithContext(ctx))
}

func (d *Discord) BotUserID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) BotPermissions(ctx context.Context, channelID string) (int64, error) {
	botID := d.BotUserID()
	if botID == "" {
		return 0, errors.New("bot user not ready")
	}
	return d.session.UserChannelPermissions(botID, channelID, discordgo.WithContext(ctx))
}

func (d *Discord) BotHighestRoleID(ctx context.Context, guildID string) (string, error) {
	botID := d.BotUserID()
	if botID == "" {
		return "", errors.New("bot user not ready")
	}

	held, err := d.memberRoles(ctx, guildID, botID)
	if err != nil {
		return "", err
	}
	if len(held) == 0 {
		return "", nil
	}

	roles, err := d.guildRoles(ctx, guildID)
	if err != nil {
		return "", err
	}
	return highestRole(held, roles), nil
}

func (d *Discord) memberRoles(ctx context.Context, guildID, userID string) ([]string, error) {
	if member, err := d.session.State.Member(guildID, userID); err == nil {
		d.session.State.RLock()
		defer d.session.State.RUnlock()
		return append([]string(nil), member.Roles...), nil
	}
	member, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch bot member: %w", err)
	}
	return member.Roles, nil
}

func (d *Discord) guildRoles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil {
		d.session.State.RLock()
		roles := make([]*discordgo.Role, 0, len(guild.Roles))
		for _, role := range guild.Roles {
			cp := *role
			roles = append(roles, &cp)
		}
		d.session.State.RUnlock()
		if len(roles) > 0 {
			return roles, nil
		}
	}
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("fetch guild roles: %w", err)
	}
	return roles, nil
}

// highestRole picks the held role with the greatest position; ties go to the
// lower id, the order Discord uses.
func highestRole(held []string, roles []*discordgo.Role) string {
	heldSet := make(map[string]struct{}, len(held))
	for _, id := range held {
		heldSet[id] = struct{}{}
	}

	var best *discordgo.Role
	for _, role := range roles {
		if _, ok := heldSet[role.ID]; !ok {
			continue
		}
		if best == nil || role.Position > best.Position ||
			(role.Position == best.Position && snowflakeLess(role.ID, best.ID)) {
			best = role
		}
	}
	if best == nil {
		return ""
	}
	return best.ID
}

func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
