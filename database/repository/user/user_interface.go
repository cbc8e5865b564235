package userRepo

import (
	"context"

	"fleetrent/models"
)

// UserRepository is the read side of the user store. Profile management lives elsewhere.
type UserRepository interface {
	// GetByID retrieves a user by their unique ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
