package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/ticket"
)

type options map[string]string

// subcommandHandler returns the content of the ephemeral reply; "" sends
// nothing.
type subcommandHandler func(ctx context.Context, i *discordgo.InteractionCreate, opts options) string

func (b *Bot) handleInteraction(ctx context.Context, r Responder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	if data.Name != commandTicket || len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	handler, ok := b.handlers[sub.Name]
	if !ok {
		return
	}
	logger := b.logger.With(zap.String("subcommand", sub.Name), zap.String("guild_id", i.GuildID), zap.String("channel_id", i.ChannelID))

	if i.GuildID == "" || invoker(i) == nil {
		b.reply(r, i, logger, "Tickets only work inside a server.")
		return
	}

	// Channel provisioning and transcripts outlive the 3s interaction deadline.
	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		logger.Warn("failed to acknowledge interaction", zap.Error(err))
		return
	}

	content := handler(ctx, i, collectOptions(sub))
	if content == "" {
		return
	}
	if _, err := r.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{Content: &content}); err != nil {
		logger.Debug("failed to edit interaction response", zap.Error(err))
	}
}

func (b *Bot) reply(r Responder, i *discordgo.InteractionCreate, logger *zap.Logger, content string) {
	if err := r.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		logger.Warn("failed to respond to interaction", zap.Error(err))
	}
}

func (b *Bot) openTicket(ctx context.Context, i *discordgo.InteractionCreate, opts options) string {
	user := invoker(i)
	existing, found, err := b.tickets.FindTicketForUser(ctx, i.GuildID, user.ID)
	if err != nil {
		b.logger.Error("lookup existing ticket", zap.String("guild_id", i.GuildID), zap.Error(err))
		return "Something went wrong, please try again later."
	}
	if found {
		return fmt.Sprintf("You already have an open ticket: <#%s>", existing.ID)
	}

	tk, ok := b.tickets.OpenTicket(ctx, i.GuildID, user, opts["title"], b.settings.SupportRole(ctx, i.GuildID))
	if !ok {
		return "Failed to create your ticket, please try again later."
	}
	return fmt.Sprintf("Ticket created: <#%s>", tk.ChannelID)
}

func (b *Bot) closeTicket(ctx context.Context, i *discordgo.InteractionCreate, opts options) string {
	res, err := b.tickets.CloseTicketByID(ctx, i.GuildID, i.ChannelID, invoker(i).ID, opts["reason"])
	if err != nil {
		b.logger.Warn("close ticket", zap.String("channel_id", i.ChannelID), zap.Error(err))
		return domain.CloseMessageUnexpected
	}
	if res.Success {
		// The channel holding the reply is gone.
		return ""
	}
	return res.Message
}

func (b *Bot) closeAllTickets(ctx context.Context, i *discordgo.InteractionCreate, _ options) string {
	if !memberCan(i, discordgo.PermissionManageChannels) {
		return "You need the Manage Channels permission to do that."
	}
	success, failed := b.tickets.CloseAllTickets(ctx, i.GuildID, invoker(i))
	return fmt.Sprintf("Closed %d tickets, %d failed.", success, failed)
}

func (b *Bot) setLogChannel(ctx context.Context, i *discordgo.InteractionCreate, opts options) string {
	if !memberCan(i, discordgo.PermissionManageServer) {
		return "You need the Manage Server permission to do that."
	}
	channelID := opts["channel"]
	if err := b.settings.SetLogChannel(ctx, i.GuildID, channelID); err != nil {
		b.logger.Error("set log channel", zap.String("guild_id", i.GuildID), zap.Error(err))
		return "Could not save the log channel."
	}
	if channelID == "" {
		return "Ticket logs will no longer be posted."
	}
	return fmt.Sprintf("Ticket logs will be posted in <#%s>.", channelID)
}

func (b *Bot) setSupportRole(ctx context.Context, i *discordgo.InteractionCreate, opts options) string {
	if !memberCan(i, discordgo.PermissionManageServer) {
		return "You need the Manage Server permission to do that."
	}
	roleID := opts["role"]
	if err := b.settings.SetSupportRole(ctx, i.GuildID, roleID); err != nil {
		b.logger.Error("set support role", zap.String("guild_id", i.GuildID), zap.Error(err))
		return "Could not save the support role."
	}
	if roleID == "" {
		return "New tickets will use the default support role."
	}
	return fmt.Sprintf("New tickets will be visible to <@&%s>.", roleID)
}

// handleReaction closes a ticket when someone other than the bot reacts
// with the lock. channel is the cached channel, nil when unknown.
func (b *Bot) handleReaction(ctx context.Context, r *discordgo.MessageReactionAdd, channel *discordgo.Channel) {
	if r == nil || r.MessageReaction == nil || r.GuildID == "" {
		return
	}
	if r.UserID == b.tickets.BotUserID() || r.Emoji.Name != service.CloseEmoji {
		return
	}
	if channel != nil && !ticket.IsTicket(channel) {
		return
	}

	res, err := b.tickets.CloseTicketByID(ctx, r.GuildID, r.ChannelID, r.UserID, "")
	if err != nil {
		b.logger.Debug("reaction close skipped", zap.String("channel_id", r.ChannelID), zap.Error(err))
		return
	}
	b.logger.Info("reaction close",
		zap.String("channel_id", r.ChannelID),
		zap.String("user_id", r.UserID),
		zap.Bool("success", res.Success),
		zap.String("message", res.Message))
}

func collectOptions(sub *discordgo.ApplicationCommandInteractionDataOption) options {
	out := options{}
	for _, opt := range sub.Options {
		if v, ok := opt.Value.(string); ok {
			out[opt.Name] = v
		}
	}
	return out
}

func invoker(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func memberCan(i *discordgo.InteractionCreate, perm int64) bool {
	if i.Member == nil {
		return false
	}
	return i.Member.Permissions&(perm|discordgo.PermissionAdministrator) != 0
}
