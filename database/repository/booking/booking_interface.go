package bookingRepo

import (
	"context"
	"time"

	"fleetrent/models"
)

// BookingFilter narrows ListBookings. Zero values match everything.
type BookingFilter struct {
	CustomerID string
	CarID      string
	Statuses   []models.BookingStatus
	// NeedsCarReassignment, when set, keeps only bookings flagged for a new car.
	NeedsCarReassignment bool
	Limit                int64
}

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	GetByNumber(ctx context.Context, number string) (*models.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]models.Booking, error)
	// FindOverlapping returns bookings on carID in one of statuses whose [pickup, return) range
	// overlaps [from, to), excluding excludeID.
	FindOverlapping(ctx context.Context, carID string, from, to time.Time, statuses []models.BookingStatus, excludeID string) ([]models.Booking, error)
	// Update replaces the booking document.
	Update(ctx context.Context, booking *models.Booking) error
	// UpdateIfStatus replaces the booking only while its stored status is still expected.
	// It reports false when another writer moved the booking first.
	UpdateIfStatus(ctx context.Context, booking *models.Booking, expected models.BookingStatus) (bool, error)
	SetDirectDebitSchedule(ctx context.Context, bookingID, scheduleID string) error
}
