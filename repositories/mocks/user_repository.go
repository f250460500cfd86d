package mocks

import (
	"github.com/stretchr/testify/mock"

	"HarborChat/models"
)

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) List(channelID string) ([]models.User, error) {
	args := m.Called(channelID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.User), args.Error(1)
}
