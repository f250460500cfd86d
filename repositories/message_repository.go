package repositories

import (
	"HarborChat/models"
)

type PostMessageRequest struct {
	Content     string   `json:"content"`
	MessageType string   `json:"message_type"`
	ReplyToID   string   `json:"reply_to_id,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
}

type MessageRepository interface {
	// History returns up to limit messages of a channel, newest last.
	// A non-empty before cursor pages further back in time.
	History(channelID string, limit int, before string) ([]models.Message, error)

	// Post delivers a message over the request path and returns the
	// server copy with its assigned id.
	Post(channelID string, request PostMessageRequest) (models.Message, error)
}
