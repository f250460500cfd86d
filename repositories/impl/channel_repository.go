package impl

import (
	"net/http"

	"HarborChat/models"
	"HarborChat/repositories"
)

type ChannelRepositoryImpl struct {
	api *APIClient
}

func NewChannelRepository(api *APIClient) *ChannelRepositoryImpl {
	return &ChannelRepositoryImpl{api: api}
}

func (r *ChannelRepositoryImpl) List() ([]models.Channel, error) {
	var channels []models.Channel
	if err := r.api.do(http.MethodGet, "/channels", nil, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

func (r *ChannelRepositoryImpl) Create(request repositories.CreateChannelRequest) (models.Channel, error) {
	var channel models.Channel
	if err := r.api.do(http.MethodPost, "/channels", nil, request, &channel); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *ChannelRepositoryImpl) Update(channelID string, request repositories.UpdateChannelRequest) (models.Channel, error) {
	var channel models.Channel
	if err := r.api.do(http.MethodPatch, "/channels/"+channelID, nil, request, &channel); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func (r *ChannelRepositoryImpl) Join(channelID string) error {
	return r.api.do(http.MethodPost, "/channels/"+channelID+"/join", nil, nil, nil)
}

func (r *ChannelRepositoryImpl) MarkRead(channelID string) error {
	return r.api.do(http.MethodPost, "/channels/"+channelID+"/read", nil, nil, nil)
}
