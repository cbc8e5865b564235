package booking

import (
	"context"
	"time"

	bookingRepo "fleetrent/database/repository/booking"
	carRepo "fleetrent/database/repository/car"
	"fleetrent/models"
	"fleetrent/utils"
)

var activeStatuses = []models.BookingStatus{models.BookingConfirmed, models.BookingInProgress}

// AvailabilityLedger keeps a car's status in lock-step with the bookings that hold it.
type AvailabilityLedger struct {
	Cars     carRepo.CarRepository
	Bookings bookingRepo.BookingRepository
}

// CheckBookable returns the car when it is available and no active booking other than
// excludeID overlaps [from, to).
func (l *AvailabilityLedger) CheckBookable(ctx context.Context, carID string, from, to time.Time, excludeID string) (*models.Car, error) {
	car, err := l.Cars.GetByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	if !car.IsAvailable() {
		return nil, utils.NewCarUnavailableError(carID)
	}
	overlapping, err := l.Bookings.FindOverlapping(ctx, carID, from, to, activeStatuses, excludeID)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		return nil, utils.NewCarUnavailableError(carID)
	}
	return car, nil
}

// Reserve re-checks availability for b and flips its car to booked. The flip is a conditional
// write, so of two racing reservations only one can win.
func (l *AvailabilityLedger) Reserve(ctx context.Context, b *models.Booking) error {
	if _, err := l.CheckBookable(ctx, b.CarID, b.PickupDate, b.ReturnDate, b.ID); err != nil {
		return err
	}
	ok, err := l.Cars.SetStatusIf(ctx, b.CarID, models.CarAvailable, models.CarBooked)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewCarUnavailableError(b.CarID)
	}
	return nil
}

// Release frees the car held by b unless another active booking still holds it.
func (l *AvailabilityLedger) Release(ctx context.Context, b *models.Booking) error {
	holders, err := l.Bookings.List(ctx, bookingRepo.BookingFilter{CarID: b.CarID, Statuses: activeStatuses})
	if err != nil {
		return err
	}
	for _, other := range holders {
		if other.ID != b.ID {
			return nil
		}
	}
	_, err = l.Cars.SetStatusIf(ctx, b.CarID, models.CarBooked, models.CarAvailable)
	return err
}
