package impl

import (
	"net/http"
	"net/url"
	"strconv"

	"HarborChat/models"
	"HarborChat/repositories"
)

type MessageRepositoryImpl struct {
	api *APIClient
}

func NewMessageRepository(api *APIClient) *MessageRepositoryImpl {
	return &MessageRepositoryImpl{api: api}
}

func (r *MessageRepositoryImpl) History(channelID string, limit int, before string) ([]models.Message, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if before != "" {
		query.Set("before", before)
	}

	var messages []models.Message
	if err := r.api.do(http.MethodGet, "/channels/"+channelID+"/messages", query, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepositoryImpl) Post(channelID string, request repositories.PostMessageRequest) (models.Message, error) {
	var message models.Message
	if err := r.api.do(http.MethodPost, "/channels/"+channelID+"/messages", nil, request, &message); err != nil {
		return models.Message{}, err
	}
	return message, nil
}
