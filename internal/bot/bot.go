// Package bot binds the ticket services to Discord slash commands and
// reactions.
package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/service"
)

// Responder is the part of a discordgo session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot owns the gateway session and routes its events.
type Bot struct {
	session  *discordgo.Session
	tickets  *service.TicketService
	settings *service.SettingsService
	logger   *zap.Logger
	appID    string
	guildID  string

	ctx      context.Context
	handlers map[string]subcommandHandler
	removers []func()
}

// New prepares a bot around an unopened session.
func New(session *discordgo.Session, cfg config.DiscordConfig, tickets *service.TicketService, settings *service.SettingsService, logger *zap.Logger) *Bot {
	b := &Bot{
		session:  session,
		tickets:  tickets,
		settings: settings,
		logger:   logger,
		appID:    cfg.AppID,
		guildID:  cfg.GuildID,
		ctx:      context.Background(),
	}
	b.handlers = map[string]subcommandHandler{
		subOpen:        b.openTicket,
		subClose:       b.closeTicket,
		subCloseAll:    b.closeAllTickets,
		subLogChannel:  b.setLogChannel,
		subSupportRole: b.setSupportRole,
	}
	return b
}

// NewSession builds a discordgo session with the intents the bot needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.StateEnabled = true
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsGuildMessageReactions
	return s, nil
}

// Start opens the gateway and registers slash commands. Handlers run with
// ctx; cancel it to abort in-flight work.
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx
	b.removers = append(b.removers,
		b.session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			b.handleInteraction(b.ctx, s, i)
		}),
		b.session.AddHandler(func(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
			var channel *discordgo.Channel
			if s.State != nil {
				channel, _ = s.State.Channel(r.ChannelID)
			}
			b.handleReaction(b.ctx, r, channel)
		}),
		b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
			b.logger.Info("discord ready",
				zap.String("user", r.User.Username),
				zap.Int("guilds", len(r.Guilds)))
		}),
	)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	appID := b.appID
	if appID == "" && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}
	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, Commands(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info("slash commands registered", zap.String("guild_id", b.guildID))
	return nil
}

// Stop detaches the handlers and closes the gateway.
func (b *Bot) Stop() error {
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	return b.session.Close()
}

// Ping reports whether the gateway session is up.
func (b *Bot) Ping(_ context.Context) error {
	b.session.RLock()
	ready := b.session.DataReady
	b.session.RUnlock()
	if !ready {
		return errors.New("gateway not ready")
	}
	return nil
}
