package mocks

import (
	"github.com/stretchr/testify/mock"

	"HarborChat/models"
	"HarborChat/repositories"
)

type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) History(channelID string, limit int, before string) ([]models.Message, error) {
	args := m.Called(channelID, limit, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MessageRepository) Post(channelID string, request repositories.PostMessageRequest) (models.Message, error) {
	args := m.Called(channelID, request)
	return args.Get(0).(models.Message), args.Error(1)
}
