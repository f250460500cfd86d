package repositories

import (
	"HarborChat/models"
)

// UserRepository looks up users for mention and member lists.
type UserRepository interface {
	List(channelID string) ([]models.User, error)
}
