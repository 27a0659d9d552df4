package ticket

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// TimestampLayout renders transcript timestamps like the en-US locale string.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// BuildTranscript flattens a channel's history into plain text. messages is
// expected newest first, the order Discord returns; the transcript is
// chronological. Every entry is a "[time] - author" line, the clean content
// when present, the attachment URLs when present and a blank separator.
func BuildTranscript(messages []*discordgo.Message, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}

	var sb strings.Builder
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m == nil {
			continue
		}
		sb.WriteString("[")
		sb.WriteString(m.Timestamp.In(loc).Format(TimestampLayout))
		sb.WriteString("] - ")
		sb.WriteString(UserTag(m.Author))
		sb.WriteString("\n")

		if content := m.ContentWithMentionsReplaced(); content != "" {
			sb.WriteString(content)
			sb.WriteString("\n")
		}

		if len(m.Attachments) > 0 {
			urls := make([]string, 0, len(m.Attachments))
			for _, att := range m.Attachments {
				if att == nil {
					continue
				}
				if att.ProxyURL != "" {
					urls = append(urls, att.ProxyURL)
				} else {
					urls = append(urls, att.URL)
				}
			}
			if len(urls) > 0 {
				sb.WriteString(strings.Join(urls, ", "))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// UserTag renders a user the way moderators recognise them.
func UserTag(u *discordgo.User) string {
	if u == nil {
		return "Unknown user"
	}
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}
