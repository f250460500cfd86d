package websocket

import (
	"encoding/json"
	"fmt"

	"HarborChat/models"
)

// EventType discriminates inbound frames and client-side synthetic
// events. The set is closed: unknown types are dropped by the read
// pump, never dispatched.
type EventType string

const (
	EventAuthenticated   EventType = "authenticated"
	EventAuthError       EventType = "auth_error"
	EventChannelsUpdated EventType = "channels_updated"
	EventChannelUpdated  EventType = "channel_updated"
	EventJoinedChannel   EventType = "joined_channel"
	EventLeftChannel     EventType = "left_channel"
	EventNewMessage      EventType = "new_message"
	EventUserTyping      EventType = "user_typing"
	EventTokenExpiring   EventType = "token_expiring"
	EventError           EventType = "error"

	// Synthesized by the session, never received from the server.
	EventConnectionStatus EventType = "connection_status"
	EventConnectionFailed EventType = "connection_failed"
)

// Outbound command types
const (
	CommandAuthenticate = "authenticate"
	CommandJoinChannel  = "join_channel"
	CommandLeaveChannel = "leave_channel"
	CommandSendMessage  = "send_message"
	CommandTypingStart  = "typing_start"
	CommandTypingStop   = "typing_stop"
)

// Command is the client-to-server wire envelope. One flat struct with
// omitempty fields covers every outbound frame kind.
type Command struct {
	Type        string   `json:"type"`
	Token       string   `json:"token,omitempty"`
	ChannelID   string   `json:"channel_id,omitempty"`
	Content     string   `json:"content,omitempty"`
	MessageType string   `json:"message_type,omitempty"`
	ReplyToID   string   `json:"reply_to_id,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
}

func AuthenticateCommand(token string) Command {
	return Command{Type: CommandAuthenticate, Token: token}
}

func JoinChannelCommand(channelID string) Command {
	return Command{Type: CommandJoinChannel, ChannelID: channelID}
}

func LeaveChannelCommand(channelID string) Command {
	return Command{Type: CommandLeaveChannel, ChannelID: channelID}
}

func SendMessageCommand(channelID, content, replyToID string, mentions []string) Command {
	return Command{
		Type:        CommandSendMessage,
		ChannelID:   channelID,
		Content:     content,
		MessageType: models.MessageTypeText,
		ReplyToID:   replyToID,
		Mentions:    mentions,
	}
}

func TypingStartCommand(channelID string) Command {
	return Command{Type: CommandTypingStart, ChannelID: channelID}
}

func TypingStopCommand(channelID string) Command {
	return Command{Type: CommandTypingStop, ChannelID: channelID}
}

// Event is a decoded inbound frame. Only the fields relevant to the
// event type are populated.
type Event struct {
	Type           EventType
	User           *models.User
	Message        *models.Message
	Channel        *models.Channel
	Channels       []models.Channel
	ChannelID      string
	UserID         string
	Typing         bool
	HoursRemaining float64
	ErrorMessage   string
	Status         models.ConnectionStatus
}

// DecodeEvent parses a server frame into a typed Event. The "message"
// field is a string for error frames and an object for new_message, so
// it stays raw until the type is known.
func DecodeEvent(data []byte) (Event, error) {
	var envelope struct {
		Type           EventType        `json:"type"`
		User           *models.User     `json:"user"`
		Message        json.RawMessage  `json:"message"`
		Channel        *models.Channel  `json:"channel"`
		Channels       []models.Channel `json:"channels"`
		ChannelID      string           `json:"channel_id"`
		UserID         string           `json:"user_id"`
		Typing         bool             `json:"typing"`
		HoursRemaining float64          `json:"hours_remaining"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	event := Event{
		Type:           envelope.Type,
		User:           envelope.User,
		Channel:        envelope.Channel,
		Channels:       envelope.Channels,
		ChannelID:      envelope.ChannelID,
		UserID:         envelope.UserID,
		Typing:         envelope.Typing,
		HoursRemaining: envelope.HoursRemaining,
	}

	switch envelope.Type {
	case EventAuthenticated, EventChannelsUpdated, EventChannelUpdated,
		EventJoinedChannel, EventLeftChannel, EventUserTyping,
		EventTokenExpiring:
		// Shared fields above are all these frames carry.

	case EventNewMessage:
		if len(envelope.Message) == 0 {
			return Event{}, fmt.Errorf("new_message frame without message payload")
		}
		var message models.Message
		if err := json.Unmarshal(envelope.Message, &message); err != nil {
			return Event{}, fmt.Errorf("malformed message payload: %w", err)
		}
		event.Message = &message

	case EventAuthError, EventError:
		if len(envelope.Message) > 0 {
			if err := json.Unmarshal(envelope.Message, &event.ErrorMessage); err != nil {
				return Event{}, fmt.Errorf("malformed error payload: %w", err)
			}
		}

	default:
		return Event{}, fmt.Errorf("unknown frame type %q", envelope.Type)
	}

	return event, nil
}
