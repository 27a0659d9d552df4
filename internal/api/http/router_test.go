package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	"github.com/spec-kit/ticket-bot/internal/platform/platformtest"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
)

const operatorKey = "let-me-in"

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type apiFixture struct {
	app      *fiber.App
	platform *platformtest.Fake
	tickets  *service.TicketService
	metrics  *observability.Metrics
	redisErr error
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	hash, err := auth.HashKey(operatorKey, bcrypt.MinCost)
	require.NoError(t, err)

	f := &apiFixture{platform: platformtest.New("g1"), metrics: observability.NewMetrics()}
	f.platform.AddUser(&discordgo.User{ID: "u1", Username: "alice", Discriminator: "0"})

	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, f.platform, zap.NewNop(), f.metrics, time.Second).RegisterHandlers()
	settingsRepo := repository.NewMemorySettingsRepository()
	f.tickets = service.NewTicketService(service.TicketDependencies{
		Platform:   f.platform,
		Settings:   settingsRepo,
		Dispatcher: dispatcher,
		Metrics:    f.metrics,
		Location:   time.UTC,
	})

	tokens := auth.NewTokenManager("secret", 5)
	f.app = NewApp("test")
	RegisterMiddlewares(f.app, zap.NewNop(), f.metrics, time.Second)
	RegisterRoutes(f.app, RouteConfig{
		Health: handlers.NewHealthHandler("ticket-bot", "test", map[string]handlers.Pinger{
			"postgres": pingerFunc(func(context.Context) error { return persistence.ErrNotConfigured }),
			"redis":    pingerFunc(func(context.Context) error { return f.redisErr }),
		}),
		Metrics:        handlers.NewMetricsHandler(f.metrics),
		Auth:           handlers.NewAuthHandler(service.NewAuthService(config.AuthConfig{AdminKeyHash: hash}, tokens)),
		Tickets:        handlers.NewTicketsHandler(f.tickets),
		Settings:       handlers.NewSettingsHandler(service.NewSettingsService(settingsRepo, "")),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (f *apiFixture) token(t *testing.T, role string) string {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/auth/token", "", `{"key":"`+operatorKey+`","role":"`+role+`"}`)
	require.Equal(t, http.StatusOK, status, body)
	return body["data"].(map[string]any)["token"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodGet, "/health/live", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = f.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "ok"}, body["dependencies"])

	f.redisErr = errors.New("connection refused")
	status, body = f.do(t, http.MethodGet, "/health/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])
}

func TestTokenEndpointRejectsWrongKey(t *testing.T) {
	f := newAPIFixture(t)

	status, body := f.do(t, http.MethodPost, "/auth/token", "", `{"key":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	status, _ = f.do(t, http.MethodGet, "/guilds/g1/tickets", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTicketEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	alice, err := f.platform.User(context.Background(), "u1")
	require.NoError(t, err)
	tk, ok := f.tickets.OpenTicket(context.Background(), "g1", alice, "help", "")
	require.True(t, ok)

	viewer := f.token(t, "viewer")
	admin := f.token(t, "")

	status, body := f.do(t, http.MethodGet, "/guilds/g1/tickets", viewer, "")
	require.Equal(t, http.StatusOK, status)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, tk.ChannelID, items[0].(map[string]any)["channel_id"])
	assert.Equal(t, "ticket-1", items[0].(map[string]any)["channel_name"])

	status, body = f.do(t, http.MethodGet, "/guilds/g1/tickets/users/u1", viewer, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "help", body["data"].(map[string]any)["title"])

	status, _ = f.do(t, http.MethodGet, "/guilds/g1/tickets/users/u9", viewer, "")
	assert.Equal(t, http.StatusNotFound, status)

	path := "/guilds/g1/tickets/" + tk.ChannelID + "/close"
	status, _ = f.do(t, http.MethodPost, path, viewer, "")
	assert.Equal(t, http.StatusForbidden, status)

	status, body = f.do(t, http.MethodPost, path, admin, `{"reason":"stale"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "success", body["data"].(map[string]any)["message"])

	status, _ = f.do(t, http.MethodPost, path, admin, "")
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["tickets"].(map[string]any)[observability.CounterTicketsClosed])
}

func TestCloseEndpointReportsOutcome(t *testing.T) {
	f := newAPIFixture(t)
	f.platform.AddChannel(&discordgo.Channel{ID: "general", GuildID: "g1", Name: "general", Type: discordgo.ChannelTypeGuildText})
	admin := f.token(t, "admin")

	status, body := f.do(t, http.MethodPost, "/guilds/g1/tickets/general/close", admin, "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "Not a ticket channel", body["data"].(map[string]any)["message"])
}

func TestCloseAllEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	alice, err := f.platform.User(context.Background(), "u1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, ok := f.tickets.OpenTicket(context.Background(), "g1", alice, "help", "")
		require.True(t, ok)
	}

	status, body := f.do(t, http.MethodPost, "/guilds/g1/tickets/close-all", f.token(t, "admin"), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"success": float64(2), "failed": float64(0)}, body["data"])
}

func TestSettingsEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.token(t, "admin")

	status, body := f.do(t, http.MethodGet, "/guilds/g1/settings", admin, "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Nil(t, data["log_channel_id"])
	assert.Nil(t, data["updated_at"])

	status, body = f.do(t, http.MethodPatch, "/guilds/g1/settings", admin, `{"log_channel_id":"123","support_role_id":"456"}`)
	require.Equal(t, http.StatusOK, status)
	data = body["data"].(map[string]any)
	assert.Equal(t, "123", data["log_channel_id"])
	assert.Equal(t, "456", data["support_role_id"])

	status, body = f.do(t, http.MethodPatch, "/guilds/g1/settings", admin, `{"log_channel_id":"#general"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])

	status, _ = f.do(t, http.MethodPatch, "/guilds/g1/settings", admin, `{"log_channel_id":"999","support_role_id":"@mods"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	_, body = f.do(t, http.MethodGet, "/guilds/g1/settings", admin, "")
	assert.Equal(t, "123", body["data"].(map[string]any)["log_channel_id"], "rejected update stores nothing")
}
