package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ticket-bot", cfg.App.Name)
	assert.Equal(t, 100, cfg.Ticket.TranscriptLimit)
	assert.Equal(t, 1, cfg.Ticket.BulkConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Ticket.CallTimeout())
	assert.Equal(t, "https://sourceb.in", cfg.Paste.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL())
	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DISCORD_TOKEN")
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "redis db", key: "REDIS_DB", val: "abc"},
		{name: "timezone", key: "TICKET_TIMEZONE", val: "Mars/Olympus"},
		{name: "transcript limit", key: "TICKET_TRANSCRIPT_LIMIT", val: "500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DISCORD_TOKEN", "token")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestTicketLocation(t *testing.T) {
	loc, err := TicketConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = TicketConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
