package carRepo

import (
	"context"

	"fleetrent/models"
)

// CarRepository is the part of fleet storage the booking core needs.
type CarRepository interface {
	GetByID(ctx context.Context, id string) (*models.Car, error)
	// SetStatusIf flips the car from expected to next atomically. It reports false when the
	// stored status was not expected, so callers can tell a lost race from an error.
	SetStatusIf(ctx context.Context, id string, expected, next models.CarStatus) (bool, error)
}
