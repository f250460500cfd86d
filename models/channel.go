package models

import (
	"time"
)

// Channel types and membership roles
const (
	ChannelTypePublic  = "public"
	ChannelTypePrivate = "private"
	ChannelTypeDirect  = "direct"

	RoleAdmin  = "admin"
	RoleMember = "member"
)

type Channel struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description,omitempty"`
	Type           string             `json:"type"`
	GroupID        string             `json:"group_id,omitempty"`
	CreatedBy      string             `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
	Archived       bool               `json:"archived"`
	LastActivityAt time.Time          `json:"last_activity_at"`
	Membership     *ChannelMembership `json:"membership,omitempty"`
}

// ChannelMembership is the current user's membership record for a
// channel. At most one exists per (channel, user) pair.
type ChannelMembership struct {
	ChannelID  string    `json:"channel_id"`
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
	LastReadAt time.Time `json:"last_read_at"`
}
