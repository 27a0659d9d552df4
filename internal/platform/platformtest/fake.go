// Package platformtest provides an in-memory platform.Platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

// AllPermissions grants the bot everything the ticket workflows check for.
const AllPermissions int64 = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionReadMessageHistory |
	discordgo.PermissionManageChannels |
	discordgo.PermissionManageMessages |
	discordgo.PermissionAddReactions

// Fake is a goroutine-safe in-memory guild.
type Fake struct {
	mu sync.Mutex

	BotID     string
	BotRoleID string
	// DefaultPerms applies to channels without an entry in Perms.
	DefaultPerms int64
	Perms        map[string]int64
	// Fail injects errors keyed by "Op" or "Op:id" (id is the channel or user).
	Fail map[string]error

	guilds   map[string]*discordgo.Guild
	channels []*discordgo.Channel
	messages map[string][]*discordgo.Message
	users    map[string]*discordgo.User

	DMs       map[string][]*discordgo.MessageSend
	Reactions map[string][]string
	Deleted   []string

	nextID int
	now    time.Time
}

// New returns a fake with one guild and a bot user.
func New(guildID string) *Fake {
	f := &Fake{
		BotID:        "bot",
		BotRoleID:    "bot-role",
		DefaultPerms: AllPermissions,
		Perms:        map[string]int64{},
		Fail:         map[string]error{},
		guilds:       map[string]*discordgo.Guild{},
		messages:     map[string][]*discordgo.Message{},
		users:        map[string]*discordgo.User{},
		DMs:          map[string][]*discordgo.MessageSend{},
		Reactions:    map[string][]string{},
		now:          time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	f.guilds[guildID] = &discordgo.Guild{ID: guildID, Name: "Guild " + guildID}
	f.users[f.BotID] = &discordgo.User{ID: f.BotID, Username: "ticketbot", Discriminator: "0", Bot: true}
	return f
}

var _ platform.Platform = (*Fake)(nil)

// AddUser registers a resolvable user.
func (f *Fake) AddUser(u *discordgo.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.ID] = u
}

// RemoveUser makes a user unresolvable, as if they left Discord.
func (f *Fake) RemoveUser(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

// AddChannel seeds a channel as-is.
func (f *Fake) AddChannel(ch *discordgo.Channel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
}

// AddMessage appends a message to a channel's history, one minute after the previous one.
func (f *Fake) AddMessage(channelID string, author *discordgo.User, content string, attachments ...*discordgo.MessageAttachment) *discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appendMessageLocked(channelID, author, content, nil, attachments)
}

// Channel returns a live channel by id.
func (f *Fake) Channel(id string) (*discordgo.Channel, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return nil, false
}

// History returns a channel's messages in chronological order.
func (f *Fake) History(channelID string) []*discordgo.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*discordgo.Message(nil), f.messages[channelID]...)
}

func (f *Fake) GuildChannels(_ context.Context, guildID string) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("GuildChannels", guildID); err != nil {
		return nil, err
	}
	out := make([]*discordgo.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		if ch.GuildID == guildID {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *Fake) Guild(_ context.Context, guildID string) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("Guild", guildID); err != nil {
		return nil, err
	}
	g, ok := f.guilds[guildID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return g, nil
}

func (f *Fake) CreateChannel(_ context.Context, guildID string, data discordgo.GuildChannelCreateData) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("CreateChannel", guildID); err != nil {
		return nil, err
	}
	f.nextID++
	ch := &discordgo.Channel{
		ID:                   fmt.Sprintf("chan-%d", f.nextID),
		GuildID:              guildID,
		Name:                 data.Name,
		Topic:                data.Topic,
		Type:                 data.Type,
		ParentID:             data.ParentID,
		PermissionOverwrites: data.PermissionOverwrites,
	}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *Fake) DeleteChannel(_ context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("DeleteChannel", channelID); err != nil {
		return err
	}
	for i, ch := range f.channels {
		if ch.ID == channelID {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			delete(f.messages, channelID)
			f.Deleted = append(f.Deleted, channelID)
			return nil
		}
	}
	return platform.ErrNotFound
}

func (f *Fake) ChannelMessages(_ context.Context, channelID string, limit int) ([]*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("ChannelMessages", channelID); err != nil {
		return nil, err
	}
	if !f.hasChannelLocked(channelID) {
		return nil, platform.ErrNotFound
	}
	history := f.messages[channelID]
	out := make([]*discordgo.Message, 0, len(history))
	for i := len(history) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (f *Fake) SendMessage(_ context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("SendMessage", channelID); err != nil {
		return nil, err
	}
	if !f.hasChannelLocked(channelID) {
		return nil, platform.ErrNotFound
	}
	return f.appendMessageLocked(channelID, f.users[f.BotID], msg.Content, msg.Embeds, nil), nil
}

func (f *Fake) SendDirectMessage(_ context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("SendDirectMessage", userID); err != nil {
		return nil, err
	}
	if _, ok := f.users[userID]; !ok {
		return nil, platform.ErrNotFound
	}
	f.DMs[userID] = append(f.DMs[userID], msg)
	f.nextID++
	return &discordgo.Message{ID: fmt.Sprintf("dm-%d", f.nextID), Content: msg.Content, Embeds: msg.Embeds}, nil
}

func (f *Fake) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("AddReaction", channelID); err != nil {
		return err
	}
	f.Reactions[messageID] = append(f.Reactions[messageID], emoji)
	return nil
}

func (f *Fake) User(_ context.Context, userID string) (*discordgo.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("User", userID); err != nil {
		return nil, err
	}
	u, ok := f.users[userID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return u, nil
}

func (f *Fake) BotUserID() string {
	return f.BotID
}

func (f *Fake) BotPermissions(_ context.Context, channelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("BotPermissions", channelID); err != nil {
		return 0, err
	}
	if perms, ok := f.Perms[channelID]; ok {
		return perms, nil
	}
	return f.DefaultPerms, nil
}

func (f *Fake) BotHighestRoleID(_ context.Context, guildID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failLocked("BotHighestRoleID", guildID); err != nil {
		return "", err
	}
	return f.BotRoleID, nil
}

func (f *Fake) failLocked(op, id string) error {
	if err, ok := f.Fail[op+":"+id]; ok {
		return err
	}
	if err, ok := f.Fail[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) hasChannelLocked(id string) bool {
	for _, ch := range f.channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}

func (f *Fake) appendMessageLocked(channelID string, author *discordgo.User, content string, embeds []*discordgo.MessageEmbed, attachments []*discordgo.MessageAttachment) *discordgo.Message {
	f.nextID++
	f.now = f.now.Add(time.Minute)
	guildID := ""
	for _, ch := range f.channels {
		if ch.ID == channelID {
			guildID = ch.GuildID
		}
	}
	msg := &discordgo.Message{
		ID:          fmt.Sprintf("msg-%d", f.nextID),
		ChannelID:   channelID,
		GuildID:     guildID,
		Author:      author,
		Content:     content,
		Embeds:      embeds,
		Attachments: attachments,
		Timestamp:   f.now,
	}
	f.messages[channelID] = append(f.messages[channelID], msg)
	return msg
}
