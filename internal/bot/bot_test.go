package bot

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

type recordingResponder struct {
	responses []*discordgo.InteractionResponse
	edits     []string
}

func (r *recordingResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.responses = append(r.responses, resp)
	return nil
}

func (r *recordingResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.edits = append(r.edits, *edit.Content)
	return &discordgo.Message{}, nil
}

func (r *recordingResponder) last() string {
	if len(r.edits) == 0 {
		return ""
	}
	return r.edits[len(r.edits)-1]
}

type botFixture struct {
	bot      *Bot
	platform *platformtest.Fake
	settings *service.SettingsService
	alice    *discordgo.User
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	f := &botFixture{
		platform: platformtest.New("g1"),
		alice:    &discordgo.User{ID: "u1", Username: "alice", Discriminator: "0"},
	}
	f.platform.AddUser(f.alice)
	repo := repository.NewMemorySettingsRepository()
	f.settings = service.NewSettingsService(repo, "900")
	tickets := service.NewTicketService(service.TicketDependencies{
		Platform:   f.platform,
		Settings:   repo,
		Dispatcher: events.NewInMemoryDispatcher(),
		Location:   time.UTC,
	})
	f.bot = New(nil, config.DiscordConfig{}, tickets, f.settings, zap.NewNop())
	return f
}

func command(channelID string, member *discordgo.Member, sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		GuildID:   "g1",
		ChannelID: channelID,
		Member:    member,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: commandTicket,
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:    sub,
				Type:    discordgo.ApplicationCommandOptionSubCommand,
				Options: opts,
			}},
		},
	}}
}

func stringOpt(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{Name: name, Type: discordgo.ApplicationCommandOptionString, Value: value}
}

func TestOpenCommandCreatesOneTicketPerUser(t *testing.T) {
	f := newBotFixture(t)
	member := &discordgo.Member{User: f.alice}
	ctx := context.Background()

	r := &recordingResponder{}
	f.bot.handleInteraction(ctx, r, command("lobby", member, subOpen, stringOpt("title", "help")))

	require.Len(t, r.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, r.responses[0].Type)
	assert.Equal(t, "Ticket created: <#chan-1>", r.last())

	ch, ok := f.platform.Channel("chan-1")
	require.True(t, ok)
	var supportSeen bool
	for _, o := range ch.PermissionOverwrites {
		supportSeen = supportSeen || o.ID == "900"
	}
	assert.True(t, supportSeen, "default support role applied")

	f.bot.handleInteraction(ctx, r, command("lobby", member, subOpen, stringOpt("title", "again")))
	assert.Equal(t, "You already have an open ticket: <#chan-1>", r.last())
}

func TestCloseCommand(t *testing.T) {
	f := newBotFixture(t)
	member := &discordgo.Member{User: f.alice}
	ctx := context.Background()
	r := &recordingResponder{}
	f.bot.handleInteraction(ctx, r, command("lobby", member, subOpen, stringOpt("title", "help")))

	f.platform.AddChannel(&discordgo.Channel{ID: "lobby", GuildID: "g1", Name: "lobby", Type: discordgo.ChannelTypeGuildText})
	f.bot.handleInteraction(ctx, r, command("lobby", member, subClose))
	assert.Equal(t, "Not a ticket channel", r.last())

	edits := len(r.edits)
	f.bot.handleInteraction(ctx, r, command("chan-1", member, subClose, stringOpt("reason", "fixed")))
	assert.Len(t, r.edits, edits, "no reply into a deleted channel")
	_, ok := f.platform.Channel("chan-1")
	assert.False(t, ok)
}

func TestAdminCommandsRequirePermissions(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	r := &recordingResponder{}
	plain := &discordgo.Member{User: f.alice}
	admin := &discordgo.Member{User: &discordgo.User{ID: "m1", Username: "mod"}, Permissions: discordgo.PermissionAdministrator}

	f.bot.handleInteraction(ctx, r, command("lobby", plain, subCloseAll))
	assert.Equal(t, "You need the Manage Channels permission to do that.", r.last())

	f.bot.handleInteraction(ctx, r, command("lobby", plain, subLogChannel, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "555",
	}))
	assert.Equal(t, "You need the Manage Server permission to do that.", r.last())

	f.bot.handleInteraction(ctx, r, command("lobby", admin, subLogChannel, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "channel", Type: discordgo.ApplicationCommandOptionChannel, Value: "555",
	}))
	assert.Equal(t, "Ticket logs will be posted in <#555>.", r.last())

	f.bot.handleInteraction(ctx, r, command("lobby", admin, subSupportRole, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "777",
	}))
	assert.Equal(t, "New tickets will be visible to <@&777>.", r.last())
	assert.Equal(t, "777", f.settings.SupportRole(ctx, "g1"))

	f.bot.handleInteraction(ctx, r, command("lobby", admin, subCloseAll))
	assert.Equal(t, "Closed 0 tickets, 0 failed.", r.last())
}

func TestSettingsCommandsAcceptManageServer(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	r := &recordingResponder{}
	manager := &discordgo.Member{User: &discordgo.User{ID: "m2", Username: "manager"}, Permissions: discordgo.PermissionManageServer}

	f.bot.handleInteraction(ctx, r, command("lobby", manager, subSupportRole, &discordgo.ApplicationCommandInteractionDataOption{
		Name: "role", Type: discordgo.ApplicationCommandOptionRole, Value: "778",
	}))
	assert.Equal(t, "New tickets will be visible to <@&778>.", r.last())

	f.bot.handleInteraction(ctx, r, command("lobby", manager, subCloseAll))
	assert.Equal(t, "You need the Manage Channels permission to do that.", r.last())
}

func TestCommandsOutsideGuild(t *testing.T) {
	f := newBotFixture(t)
	r := &recordingResponder{}
	i := command("dm", nil, subOpen, stringOpt("title", "help"))
	i.GuildID = ""
	i.User = f.alice

	f.bot.handleInteraction(context.Background(), r, i)

	require.Len(t, r.responses, 1)
	assert.Equal(t, "Tickets only work inside a server.", r.responses[0].Data.Content)
	assert.Empty(t, r.edits)
}

func TestLockReactionClosesTicket(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()
	tk, ok := f.bot.tickets.OpenTicket(ctx, "g1", f.alice, "help", "")
	require.True(t, ok)
	ch, _ := f.platform.Channel(tk.ChannelID)

	reaction := func(userID, emoji string) *discordgo.MessageReactionAdd {
		return &discordgo.MessageReactionAdd{MessageReaction: &discordgo.MessageReaction{
			UserID: userID, GuildID: "g1", ChannelID: tk.ChannelID, Emoji: discordgo.Emoji{Name: emoji},
		}}
	}

	f.bot.handleReaction(ctx, reaction("bot", service.CloseEmoji), ch)
	f.bot.handleReaction(ctx, reaction("u1", "👍"), ch)
	_, open := f.platform.Channel(tk.ChannelID)
	require.True(t, open)

	f.bot.handleReaction(ctx, reaction("u1", service.CloseEmoji), ch)
	_, open = f.platform.Channel(tk.ChannelID)
	assert.False(t, open)
}

func TestCommandDefinitions(t *testing.T) {
	cmds := Commands()
	require.Len(t, cmds, 1)
	names := map[string]bool{}
	for _, o := range cmds[0].Options {
		names[o.Name] = true
	}
	assert.Equal(t, map[string]bool{subOpen: true, subClose: true, subCloseAll: true, subLogChannel: true, subSupportRole: true}, names)
}
