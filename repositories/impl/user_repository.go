package impl

import (
	"net/http"
	"net/url"

	"HarborChat/models"
)

type UserRepositoryImpl struct {
	api *APIClient
}

func NewUserRepository(api *APIClient) *UserRepositoryImpl {
	return &UserRepositoryImpl{api: api}
}

func (r *UserRepositoryImpl) List(channelID string) ([]models.User, error) {
	query := url.Values{}
	if channelID != "" {
		query.Set("channel_id", channelID)
	}

	var users []models.User
	if err := r.api.do(http.MethodGet, "/users", query, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
