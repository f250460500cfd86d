package mocks

import (
	"github.com/stretchr/testify/mock"

	"HarborChat/models"
	"HarborChat/repositories"
)

type ChannelRepository struct {
	mock.Mock
}

func (m *ChannelRepository) List() ([]models.Channel, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Channel), args.Error(1)
}

func (m *ChannelRepository) Create(request repositories.CreateChannelRequest) (models.Channel, error) {
	args := m.Called(request)
	return args.Get(0).(models.Channel), args.Error(1)
}

func (m *ChannelRepository) Update(channelID string, request repositories.UpdateChannelRequest) (models.Channel, error) {
	args := m.Called(channelID, request)
	return args.Get(0).(models.Channel), args.Error(1)
}

func (m *ChannelRepository) Join(channelID string) error {
	args := m.Called(channelID)
	return args.Error(0)
}

func (m *ChannelRepository) MarkRead(channelID string) error {
	args := m.Called(channelID)
	return args.Error(0)
}
