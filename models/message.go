package models

import (
	"regexp"
	"time"
)

// Message types
const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
)

type Message struct {
	ID        string     `json:"id"`
	ChannelID string     `json:"channel_id"`
	SenderID  string     `json:"sender_id"`
	Content   string     `json:"content"`
	Type      string     `json:"message_type"`
	ReplyToID string     `json:"reply_to_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	Deleted   bool       `json:"deleted"`
	Edited    bool       `json:"edited"`
	Mentions  []string   `json:"mentions,omitempty"`
	Sender    *User      `json:"sender,omitempty"`

	// Provisional marks an optimistic message that has not been
	// confirmed by the server yet. Never sent over the wire.
	Provisional bool `json:"-"`
}

// mentionPattern matches the structured mention token <@user_id>
// embedded in raw message content.
var mentionPattern = regexp.MustCompile(`<@([^<>@\s]+)>`)

// ParseMentions extracts the mentioned user ids from raw message
// content. Duplicate mentions of the same user are collapsed.
func ParseMentions(content string) []string {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, match := range matches {
		if seen[match[1]] {
			continue
		}
		seen[match[1]] = true
		mentions = append(mentions, match[1])
	}
	return mentions
}
