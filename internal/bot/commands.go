package bot

import "github.com/bwmarrin/discordgo"

const (
	commandTicket = "ticket"

	subOpen        = "open"
	subClose       = "close"
	subCloseAll    = "closeall"
	subLogChannel  = "logchannel"
	subSupportRole = "supportrole"
)

var dmPermission = false

// Commands returns the slash commands the bot registers.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:         commandTicket,
			Description:  "Support tickets",
			DMPermission: &dmPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subOpen,
					Description: "Open a private support ticket",
					Options: []*discordgo.ApplicationCommandOption{{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "title",
						Description: "What do you need help with?",
						Required:    true,
						MaxLength:   200,
					}},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subClose,
					Description: "Close this ticket",
					Options: []*discordgo.ApplicationCommandOption{{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "reason",
						Description: "Why the ticket is being closed",
					}},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subCloseAll,
					Description: "Force close every open ticket",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subLogChannel,
					Description: "Set or clear the channel ticket logs are posted to",
					Options: []*discordgo.ApplicationCommandOption{{
						Type:         discordgo.ApplicationCommandOptionChannel,
						Name:         "channel",
						Description:  "Leave empty to stop posting logs",
						ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
					}},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        subSupportRole,
					Description: "Set or clear the role that can see new tickets",
					Options: []*discordgo.ApplicationCommandOption{{
						Type:        discordgo.ApplicationCommandOptionRole,
						Name:        "role",
						Description: "Leave empty to use the default",
					}},
				},
			},
		},
	}
}
