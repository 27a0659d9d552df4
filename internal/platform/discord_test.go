package platform

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStateDiscord(t *testing.T) (*Discord, *discordgo.State) {
	t.Helper()
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{
		ID:   "g1",
		Name: "Guild",
		Channels: []*discordgo.Channel{
			{ID: "c1", GuildID: "g1", Name: "ticket-1", Topic: "ticket|u1|help", Type: discordgo.ChannelTypeGuildText},
		},
		Roles: []*discordgo.Role{{ID: "r1", Position: 1}, {ID: "r2", Position: 4}},
	}))
	state.User = &discordgo.User{ID: "bot"}
	require.NoError(t, state.MemberAdd(&discordgo.Member{GuildID: "g1", User: state.User, Roles: []string{"r1", "r2"}}))
	return NewDiscord(&discordgo.Session{State: state}), state
}

func TestDiscordReadsCopyStateEntries(t *testing.T) {
	d, state := newStateDiscord(t)
	ctx := context.Background()

	channels, err := d.GuildChannels(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	cached, err := state.Channel("c1")
	require.NoError(t, err)
	assert.NotSame(t, cached, channels[0])
	channels[0].Topic = "changed"
	assert.Equal(t, "ticket|u1|help", cached.Topic)

	guild, err := d.Guild(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Guild", guild.Name)
	cachedGuild, _ := state.Guild("g1")
	assert.NotSame(t, cachedGuild, guild)

	roleID, err := d.BotHighestRoleID(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "r2", roleID)
}

func TestDiscordChannelReadsDuringGatewayUpdates(t *testing.T) {
	d, state := newStateDiscord(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = state.ChannelAdd(&discordgo.Channel{
				ID: "c1", GuildID: "g1", Name: "ticket-1",
				Topic: fmt.Sprintf("ticket|u1|update %d", i),
				Type:  discordgo.ChannelTypeGuildText,
			})
		}
	}()

	for i := 0; i < 200; i++ {
		channels, err := d.GuildChannels(ctx, "g1")
		require.NoError(t, err)
		for _, ch := range channels {
			assert.NotEmpty(t, ch.Name+ch.Topic)
		}
	}
	wg.Wait()
}
