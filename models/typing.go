package models

import "time"

// TypingPresence is an ephemeral typing signal. It is never persisted
// and expires automatically a few seconds after the last refresh.
type TypingPresence struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
}
