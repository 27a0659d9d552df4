package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

// NotificationService delivers the best-effort messages that follow ticket
// events: the owner's direct messages and the audit channel post. Failed
// deliveries never reach the ticket workflows; they are logged and counted.
type NotificationService struct {
	dispatcher  events.Dispatcher
	platform    platform.Platform
	logger      *zap.Logger
	metrics     *observability.Metrics
	callTimeout time.Duration
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, p platform.Platform, logger *zap.Logger, metrics *observability.Metrics, callTimeout time.Duration) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher:  dispatcher,
		platform:    p,
		logger:      logger,
		metrics:     metrics,
		callTimeout: callTimeout,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketOpened, n.handleTicketOpened)
	n.dispatcher.Subscribe(events.EventTicketClosed, n.handleTicketClosed)
	n.dispatcher.Subscribe(events.EventTicketNotificationFailed, n.handleNotificationFailed)
}

func (n *NotificationService) handleTicketOpened(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketOpenedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketOpened",
		zap.String("guild_id", event.GuildID),
		zap.String("channel_id", event.ChannelID),
		zap.String("owner_id", payload.OwnerUserID),
		zap.Int("number", payload.Number))

	if payload.Embed == nil {
		return nil
	}
	return n.sendDirect(ctx, event, payload.OwnerUserID, payload.Embed)
}

func (n *NotificationService) handleTicketClosed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketClosedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("TicketClosed",
		zap.String("guild_id", event.GuildID),
		zap.String("channel_id", event.ChannelID),
		zap.String("owner_id", payload.OwnerUserID),
		zap.String("closed_by", event.Actor.UserID),
		zap.String("logs_url", payload.LogsURL))

	if payload.Embed == nil {
		return nil
	}

	var errs []error
	if payload.OwnerUserID != "" {
		errs = append(errs, n.sendDirect(ctx, event, payload.OwnerUserID, payload.Embed))
	}
	if payload.LogChannelID != "" {
		errs = append(errs, n.sendToChannel(ctx, event, payload.LogChannelID, payload.Embed))
	}
	return errors.Join(errs...)
}

func (n *NotificationService) handleNotificationFailed(_ context.Context, event events.Event) error {
	payload, _ := event.Payload.(events.NotificationFailedPayload)
	n.metrics.Inc(observability.CounterNotificationFailures)
	n.logger.Warn("TicketNotificationFailed",
		zap.String("guild_id", event.GuildID),
		zap.String("channel_id", event.ChannelID),
		zap.String("target", payload.Target),
		zap.String("error", payload.Error))
	return nil
}

func (n *NotificationService) sendDirect(ctx context.Context, event events.Event, userID string, embed *discordgo.MessageEmbed) error {
	callCtx, cancel := withCallTimeout(ctx, n.callTimeout)
	defer cancel()

	_, err := n.platform.SendDirectMessage(callCtx, userID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
	if err != nil {
		n.reportFailure(ctx, event, "dm:"+userID, err)
		return fmt.Errorf("dm %s: %w", userID, err)
	}
	return nil
}

func (n *NotificationService) sendToChannel(ctx context.Context, event events.Event, channelID string, embed *discordgo.MessageEmbed) error {
	callCtx, cancel := withCallTimeout(ctx, n.callTimeout)
	defer cancel()

	_, err := n.platform.SendMessage(callCtx, channelID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}})
	if err != nil {
		n.reportFailure(ctx, event, "channel:"+channelID, err)
		return fmt.Errorf("post to %s: %w", channelID, err)
	}
	return nil
}

func (n *NotificationService) reportFailure(ctx context.Context, source events.Event, target string, err error) {
	_ = n.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketNotificationFailed,
		GuildID:   source.GuildID,
		ChannelID: source.ChannelID,
		Actor:     source.Actor,
		Timestamp: time.Now(),
		Payload:   events.NotificationFailedPayload{Target: target, Error: err.Error()},
	})
}

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
