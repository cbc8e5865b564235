package booking

import (
	"context"
	"time"

	bookingRepo "fleetrent/database/repository/booking"
	"fleetrent/models"
)

// Transition names passed to the Notifier.
const (
	TransitionConfirmed = "confirmed"
	TransitionCompleted = "completed"
)

// BookingService is the booking state machine.
type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	ListBookings(ctx context.Context, filter bookingRepo.BookingFilter) ([]models.Booking, error)
	ConfirmBooking(ctx context.Context, id string) (*models.Booking, error)
	StartRental(ctx context.Context, id string, req HandoverRequest) (*models.Booking, error)
	CompleteRental(ctx context.Context, id string, req ReturnRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, id string, reason string) (*models.Booking, error)
	MarkNoShow(ctx context.Context, id string) (*models.Booking, error)
	// ConfirmFromPayment advances a booking to confirmed because money arrived for it. It must be
	// called with the caller's transaction context and reports whether the status changed.
	ConfirmFromPayment(ctx context.Context, bookingID string) (*models.Booking, bool, error)
}

// Notifier receives confirmed and completed transitions after they commit. It must not block.
type Notifier interface {
	BookingTransitioned(ctx context.Context, booking *models.Booking, transition string)
}

// ScheduleCanceller stops the direct-debit plan of a booking that no longer needs collecting.
type ScheduleCanceller interface {
	CancelForBooking(ctx context.Context, bookingID string) error
}

type CreateBookingRequest struct {
	CustomerID     string    `json:"customer_id"`
	CarID          string    `json:"car_id" binding:"required"`
	PickupDate     time.Time `json:"pickup_date" binding:"required"`
	ReturnDate     time.Time `json:"return_date" binding:"required"`
	PickupLocation string    `json:"pickup_location"`
	ReturnLocation string    `json:"return_location"`
	DiscountAmount float64   `json:"discount_amount"`
	DepositAmount  float64   `json:"deposit_amount"`
}

// HandoverRequest records the car leaving the lot.
type HandoverRequest struct {
	Odometer    *int       `json:"odometer"`
	CompletedBy string     `json:"-"`
	PickedUpAt  *time.Time `json:"picked_up_at"`
}

// ReturnRequest records the car coming back. ExtraCharges covers fuel, damage and similar.
type ReturnRequest struct {
	Odometer     *int       `json:"odometer"`
	CompletedBy  string     `json:"-"`
	ReturnedAt   *time.Time `json:"returned_at"`
	ExtraCharges float64    `json:"extra_charges"`
}
