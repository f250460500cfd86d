package repositories

import (
	"HarborChat/models"
)

type CreateChannelRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Type        string   `json:"type"`
	Icon        string   `json:"icon,omitempty"`
	Members     []string `json:"members,omitempty"`
}

type UpdateChannelRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

// ChannelRepository is the request/response surface for channel
// operations: companion calls with no duplex equivalent, and the
// fallback path when the duplex session cannot deliver.
type ChannelRepository interface {
	List() ([]models.Channel, error)
	Create(request CreateChannelRequest) (models.Channel, error)
	Update(channelID string, request UpdateChannelRequest) (models.Channel, error)
	Join(channelID string) error
	MarkRead(channelID string) error
}
