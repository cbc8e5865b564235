package booking

import (
	"fleetrent/models"
	"fleetrent/utils"
)

var allowedTransitions = map[models.BookingStatus][]models.BookingStatus{
	models.BookingPending:    {models.BookingConfirmed, models.BookingCancelled, models.BookingNoShow},
	models.BookingConfirmed:  {models.BookingInProgress, models.BookingCancelled, models.BookingNoShow},
	models.BookingInProgress: {models.BookingCompleted},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to models.BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var guardMessages = map[models.BookingStatus]string{
	models.BookingConfirmed:  "booking cannot be confirmed in its current state",
	models.BookingInProgress: "booking cannot be picked up in its current state",
	models.BookingCompleted:  "booking cannot be returned in its current state",
	models.BookingCancelled:  "booking cannot be cancelled in its current state",
	models.BookingNoShow:     "booking cannot be marked as a no-show in its current state",
}

func checkTransition(b *models.Booking, to models.BookingStatus) error {
	if b.Status.IsTerminal() {
		return utils.NewInvalidTransitionError("booking %s is %s and can no longer change", b.BookingNumber, b.Status)
	}
	if !CanTransition(b.Status, to) {
		return utils.NewInvalidTransitionError("%s (status %s)", guardMessages[to], b.Status)
	}
	return nil
}
