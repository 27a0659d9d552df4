package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/paste"
	"github.com/spec-kit/ticket-bot/internal/platform"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/ticket"
	apperrors "github.com/spec-kit/ticket-bot/pkg/util/errorutil"
)

const (
	// CloseEmoji is the reaction armed on the welcome message.
	CloseEmoji = "🔒"
	arrowEmoji = "❯"

	colorTicketCreate = 0x068ADD
	colorTicketClose  = 0xE74C3C

	userLeftLabel   = "User left"
	noReasonLabel   = "No reason provided"
	maxTranscript   = 100
	ticketMemberSet = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	closePermSet    = discordgo.PermissionManageChannels | discordgo.PermissionReadMessageHistory | discordgo.PermissionManageMessages
)

// TicketService coordinates the ticket lifecycle on the chat platform.
type TicketService struct {
	platform        platform.Platform
	directory       *ticket.Directory
	settings        repository.SettingsRepository
	uploader        paste.Uploader
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	metrics         *observability.Metrics
	callTimeout     time.Duration
	transcriptLimit int
	bulkConcurrency int
	location        *time.Location
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Platform        platform.Platform
	Settings        repository.SettingsRepository
	Uploader        paste.Uploader
	Dispatcher      events.Dispatcher
	Logger          *zap.Logger
	Metrics         *observability.Metrics
	CallTimeout     time.Duration
	TranscriptLimit int
	BulkConcurrency int
	Location        *time.Location
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := deps.TranscriptLimit
	if limit <= 0 || limit > maxTranscript {
		limit = maxTranscript
	}
	concurrency := deps.BulkConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &TicketService{
		platform:        deps.Platform,
		directory:       ticket.NewDirectory(deps.Platform),
		settings:        deps.Settings,
		uploader:        deps.Uploader,
		dispatcher:      deps.Dispatcher,
		logger:          logger,
		metrics:         deps.Metrics,
		callTimeout:     deps.CallTimeout,
		transcriptLimit: limit,
		bulkConcurrency: concurrency,
		location:        loc,
	}
}

// BotUserID is the bot's own user id.
func (s *TicketService) BotUserID() string {
	return s.platform.BotUserID()
}

// ListTickets returns every open ticket of a guild, unordered.
func (s *TicketService) ListTickets(ctx context.Context, guildID string) ([]domain.Ticket, error) {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()

	channels, err := s.directory.ListTickets(callCtx, guildID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Ticket, 0, len(channels))
	for _, ch := range channels {
		tk, err := ticket.FromChannel(ch)
		if err != nil {
			continue
		}
		out = append(out, *tk)
	}
	return out, nil
}

// FindTicketForUser returns the open ticket owned by userID, if any.
func (s *TicketService) FindTicketForUser(ctx context.Context, guildID, userID string) (*discordgo.Channel, bool, error) {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()
	return s.directory.FindTicketForUser(callCtx, guildID, userID)
}

// OpenTicket provisions a private ticket channel for user and reports
// whether it succeeded. Failures are logged, never returned. The ticket is
// nil when ok is false.
func (s *TicketService) OpenTicket(ctx context.Context, guildID string, user *discordgo.User, title, supportRoleID string) (tk *domain.Ticket, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("openTicket panicked", zap.Any("panic", r), zap.String("guild_id", guildID))
			tk, ok = nil, false
		}
	}()

	tk, err := s.openTicket(ctx, guildID, user, title, supportRoleID)
	if err != nil {
		s.metrics.Inc(observability.CounterTicketOpenFailures)
		s.logger.Error("openTicket", zap.String("guild_id", guildID), zap.Error(err))
		return nil, false
	}
	s.metrics.Inc(observability.CounterTicketsOpened)
	return tk, true
}

func (s *TicketService) openTicket(ctx context.Context, guildID string, user *discordgo.User, title, supportRoleID string) (*domain.Ticket, error) {
	if user == nil {
		return nil, errors.New("user required")
	}
	title = strings.TrimSpace(title)

	existing, err := s.call(ctx, func(c context.Context) (any, error) { return s.directory.ListTickets(c, guildID) })
	if err != nil {
		return nil, fmt.Errorf("count tickets: %w", err)
	}
	number := len(existing.([]*discordgo.Channel)) + 1

	guild, err := s.call(ctx, func(c context.Context) (any, error) { return s.platform.Guild(c, guildID) })
	if err != nil {
		return nil, fmt.Errorf("fetch guild: %w", err)
	}
	overwrites, err := s.ticketOverwrites(ctx, guildID, user.ID, supportRoleID)
	if err != nil {
		return nil, err
	}

	created, err := s.call(ctx, func(c context.Context) (any, error) {
		return s.platform.CreateChannel(c, guildID, discordgo.GuildChannelCreateData{
			Name:                 ticket.ChannelName(number),
			Type:                 discordgo.ChannelTypeGuildText,
			Topic:                ticket.EncodeTopic(user.ID, title),
			PermissionOverwrites: overwrites,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create channel: %w", err)
	}
	channel := created.(*discordgo.Channel)

	welcome, err := s.postWelcome(ctx, channel, user, title, number)
	if err != nil {
		s.discardChannel(ctx, channel.ID)
		return nil, err
	}

	tk := &domain.Ticket{
		ChannelID:   channel.ID,
		GuildID:     guildID,
		ChannelName: channel.Name,
		OwnerUserID: user.ID,
		Title:       title,
		Number:      number,
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketOpened,
		GuildID:   guildID,
		ChannelID: channel.ID,
		Actor:     actorOf(user),
		Payload: events.TicketOpenedPayload{
			OwnerUserID: user.ID,
			Title:       title,
			Number:      number,
			Embed:       openedEmbed(guild.(*discordgo.Guild).Name, title, number, platform.MessageURL(guildID, channel.ID, welcome.ID)),
		},
	})
	return tk, nil
}

func (s *TicketService) ticketOverwrites(ctx context.Context, guildID, userID, supportRoleID string) ([]*discordgo.PermissionOverwrite, error) {
	botRole, err := s.call(ctx, func(c context.Context) (any, error) { return s.platform.BotHighestRoleID(c, guildID) })
	if err != nil {
		return nil, fmt.Errorf("resolve bot role: %w", err)
	}

	overwrites := []*discordgo.PermissionOverwrite{
		// @everyone shares the guild id.
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: userID, Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketMemberSet},
	}
	if roleID := botRole.(string); roleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: roleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: ticketMemberSet})
	} else {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: s.platform.BotUserID(), Type: discordgo.PermissionOverwriteTypeMember, Allow: ticketMemberSet})
	}
	if supportRoleID != "" {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{ID: supportRoleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: ticketMemberSet})
	}
	return overwrites, nil
}

func (s *TicketService) postWelcome(ctx context.Context, channel *discordgo.Channel, user *discordgo.User, title string, number int) (*discordgo.Message, error) {
	sent, err := s.call(ctx, func(c context.Context) (any, error) {
		return s.platform.SendMessage(c, channel.ID, &discordgo.MessageSend{
			Content: user.Mention(),
			Embeds:  []*discordgo.MessageEmbed{welcomeEmbed(user, title, number)},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("send welcome: %w", err)
	}
	msg := sent.(*discordgo.Message)

	if _, err := s.call(ctx, func(c context.Context) (any, error) {
		return nil, s.platform.AddReaction(c, channel.ID, msg.ID, CloseEmoji)
	}); err != nil {
		return nil, fmt.Errorf("arm close reaction: %w", err)
	}
	return msg, nil
}

// discardChannel removes a half-provisioned ticket channel.
func (s *TicketService) discardChannel(ctx context.Context, channelID string) {
	if _, err := s.call(ctx, func(c context.Context) (any, error) {
		return nil, s.platform.DeleteChannel(c, channelID)
	}); err != nil {
		s.logger.Error("failed to discard partial ticket channel", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// CloseTicket archives and deletes a ticket channel. The permission check
// runs before any side effect; the transcript is uploaded before the channel
// is deleted; owner and audit notifications follow the deletion and are
// best-effort. Internal failures collapse into CloseMessageUnexpected.
func (s *TicketService) CloseTicket(ctx context.Context, channel *discordgo.Channel, closedBy *discordgo.User, reason string) (result domain.CloseResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("closeTicket panicked", zap.Any("panic", r))
			result = domain.CloseResult{Success: false, Message: domain.CloseMessageUnexpected}
		}
		if result.Success {
			s.metrics.Inc(observability.CounterTicketsClosed)
		} else {
			s.metrics.Inc(observability.CounterTicketCloseFailures)
		}
	}()

	if channel == nil {
		return domain.CloseResult{Message: domain.CloseMessageNotATicket}
	}

	perms, err := s.call(ctx, func(c context.Context) (any, error) { return s.platform.BotPermissions(c, channel.ID) })
	if err != nil {
		if platform.IsUnknownChannel(err) {
			return domain.CloseResult{Message: domain.CloseMessageAlreadyClosed}
		}
		s.logger.Error("closeTicket", zap.String("channel_id", channel.ID), zap.Error(err))
		return domain.CloseResult{Message: domain.CloseMessageUnexpected}
	}
	if !platform.HasPermissions(perms.(int64), closePermSet) {
		return domain.CloseResult{Message: domain.CloseMessageMissingPermissions}
	}

	tk, err := ticket.FromChannel(channel)
	if err != nil {
		return domain.CloseResult{Message: domain.CloseMessageNotATicket}
	}

	logsURL, err := s.closeTicket(ctx, channel, tk, closedBy, reason)
	if err != nil {
		if platform.IsUnknownChannel(err) {
			return domain.CloseResult{Message: domain.CloseMessageAlreadyClosed}
		}
		s.logger.Error("closeTicket", zap.String("channel_id", channel.ID), zap.Error(err))
		return domain.CloseResult{Message: domain.CloseMessageUnexpected}
	}
	return domain.CloseResult{Success: true, Message: domain.CloseMessageSuccess, LogsURL: logsURL}
}

func (s *TicketService) closeTicket(ctx context.Context, channel *discordgo.Channel, tk *domain.Ticket, closedBy *discordgo.User, reason string) (string, error) {
	loaded, err := s.call(ctx, func(c context.Context) (any, error) {
		return s.settings.Get(c, channel.GuildID)
	})
	if err != nil {
		return "", fmt.Errorf("load settings: %w", err)
	}
	settings := loaded.(*domain.GuildSettings)

	history, err := s.call(ctx, func(c context.Context) (any, error) {
		return s.platform.ChannelMessages(c, channel.ID, s.transcriptLimit)
	})
	if err != nil {
		return "", fmt.Errorf("fetch history: %w", err)
	}
	transcript := ticket.BuildTranscript(history.([]*discordgo.Message), s.location)
	logsURL := s.uploadTranscript(ctx, channel, transcript)

	owner := s.resolveUser(ctx, tk.OwnerUserID)
	embed := closedEmbed(tk.Title, owner, closedBy, reason, logsURL)

	if _, err := s.call(ctx, func(c context.Context) (any, error) {
		return nil, s.platform.DeleteChannel(c, channel.ID)
	}); err != nil {
		return "", fmt.Errorf("delete channel: %w", err)
	}

	payload := events.TicketClosedPayload{
		Title:   tk.Title,
		Reason:  reason,
		LogsURL: logsURL,
		Embed:   embed,
	}
	if owner != nil {
		payload.OwnerUserID = owner.ID
	}
	if settings.Ticket.LogChannelID.Valid {
		payload.LogChannelID = settings.Ticket.LogChannelID.String
	}
	s.publishEvent(ctx, events.Event{
		Type:      events.EventTicketClosed,
		GuildID:   channel.GuildID,
		ChannelID: channel.ID,
		Actor:     actorOf(closedBy),
		Payload:   payload,
	})
	return logsURL, nil
}

// uploadTranscript returns "" when the paste service is unavailable; the
// close carries on without a log link.
func (s *TicketService) uploadTranscript(ctx context.Context, channel *discordgo.Channel, transcript string) string {
	if s.uploader == nil {
		return ""
	}
	bin, err := s.call(ctx, func(c context.Context) (any, error) {
		return s.uploader.Post(c, transcript, "Ticket Logs for "+channel.Name)
	})
	if err != nil {
		s.metrics.Inc(observability.CounterTranscriptUploadFail)
		s.logger.Warn("transcript upload failed", zap.String("channel_id", channel.ID), zap.Error(err))
		return ""
	}
	if b, ok := bin.(*paste.Bin); ok && b != nil {
		return b.URL
	}
	return ""
}

// resolveUser returns nil when the user cannot be fetched, e.g. after they
// left Discord.
func (s *TicketService) resolveUser(ctx context.Context, userID string) *discordgo.User {
	u, err := s.call(ctx, func(c context.Context) (any, error) { return s.platform.User(c, userID) })
	if err != nil {
		if !platform.IsUnknownUser(err) {
			s.logger.Debug("resolve ticket owner", zap.String("user_id", userID), zap.Error(err))
		}
		return nil
	}
	return u.(*discordgo.User)
}

// CloseTicketByID closes a guild channel addressed by id on behalf of
// closedByUserID, or of the bot itself when it is empty. A channel that is
// not in the guild is a NotFound error; every other outcome is a result.
func (s *TicketService) CloseTicketByID(ctx context.Context, guildID, channelID, closedByUserID, reason string) (domain.CloseResult, error) {
	channels, err := s.call(ctx, func(c context.Context) (any, error) { return s.platform.GuildChannels(c, guildID) })
	if err != nil {
		return domain.CloseResult{}, apperrors.NewExternalServiceError("discord", err)
	}
	var target *discordgo.Channel
	for _, ch := range channels.([]*discordgo.Channel) {
		if ch.ID == channelID {
			target = ch
			break
		}
	}
	if target == nil {
		return domain.CloseResult{}, apperrors.NewNotFound("channel", map[string]any{"channel_id": channelID})
	}

	return s.CloseTicket(ctx, target, s.Actor(ctx, closedByUserID), reason), nil
}

// Actor resolves the user acting through the ops API; an empty id means the
// bot itself. Unresolvable users yield nil.
func (s *TicketService) Actor(ctx context.Context, userID string) *discordgo.User {
	if userID == "" {
		userID = s.platform.BotUserID()
	}
	return s.resolveUser(ctx, userID)
}

// CloseAllTickets closes every ticket of a guild and tallies the outcomes.
// Each close is independent; the counts always add up to the number of
// tickets that were enumerated.
func (s *TicketService) CloseAllTickets(ctx context.Context, guildID string, actor *discordgo.User) (success, failed int) {
	channels, err := s.call(ctx, func(c context.Context) (any, error) { return s.directory.ListTickets(c, guildID) })
	if err != nil {
		s.logger.Error("closeAllTickets", zap.String("guild_id", guildID), zap.Error(err))
		return 0, 0
	}

	var ok, ko atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for _, ch := range channels.([]*discordgo.Channel) {
		ch := ch
		g.Go(func() error {
			if res := s.CloseTicket(ctx, ch, actor, domain.ForceCloseReason); res.Success {
				ok.Add(1)
			} else {
				ko.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("closed all tickets",
		zap.String("guild_id", guildID),
		zap.Int64("success", ok.Load()),
		zap.Int64("failed", ko.Load()))
	return int(ok.Load()), int(ko.Load())
}

// call runs one platform round-trip under the per-call timeout.
func (s *TicketService) call(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	callCtx, cancel := withCallTimeout(ctx, s.callTimeout)
	defer cancel()
	return fn(callCtx)
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Debug("event handlers reported errors",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func actorOf(u *discordgo.User) events.Actor {
	if u == nil {
		return events.Actor{}
	}
	return events.Actor{UserID: u.ID, Tag: ticket.UserTag(u)}
}

func welcomeEmbed(user *discordgo.User, title string, number int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{Name: fmt.Sprintf("Ticket #%d", number)},
		Description: fmt.Sprintf("Hello %s\nSupport will be with you shortly\n\n**Ticket Reason:**\n%s",
			user.Mention(), title),
		Footer: &discordgo.MessageEmbedFooter{Text: "To close your ticket react to the lock below"},
	}
}

func openedEmbed(guildName, title string, number int, link string) *discordgo.MessageEmbed {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **Server Name:** %s\n", arrowEmoji, guildName)
	fmt.Fprintf(&sb, "%s **Title:** %s\n", arrowEmoji, title)
	fmt.Fprintf(&sb, "%s **Ticket:** #%d\n", arrowEmoji, number)
	fmt.Fprintf(&sb, "\n[View Channel](%s)", link)
	return &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Ticket Created"},
		Color:       colorTicketCreate,
		Description: sb.String(),
	}
}

func closedEmbed(title string, owner, closedBy *discordgo.User, reason, logsURL string) *discordgo.MessageEmbed {
	if strings.TrimSpace(reason) == "" {
		reason = noReasonLabel
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s **Title:** %s\n", arrowEmoji, title)
	fmt.Fprintf(&sb, "%s **Opened By:** %s\n", arrowEmoji, tagOrLeft(owner))
	fmt.Fprintf(&sb, "%s **Closed By:** %s\n", arrowEmoji, tagOrLeft(closedBy))
	fmt.Fprintf(&sb, "%s **Reason:** %s", arrowEmoji, reason)
	if logsURL != "" {
		fmt.Fprintf(&sb, "\n\n[View Logs](%s)", logsURL)
	}
	return &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: "Ticket Closed"},
		Color:       colorTicketClose,
		Description: sb.String(),
	}
}

func tagOrLeft(u *discordgo.User) string {
	if u == nil {
		return userLeftLabel
	}
	return ticket.UserTag(u)
}
