package booking

import (
	"context"
	"strings"
	"time"

	"fleetrent/database/repository"
	bookingRepo "fleetrent/database/repository/booking"
	carRepo "fleetrent/database/repository/car"
	"fleetrent/models"
	"fleetrent/services/pricing"
	"fleetrent/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// pickupClockSkew tolerates clients whose clocks run slightly behind when creating a booking.
const pickupClockSkew = 5 * time.Minute

// DefaultBookingService implements BookingService.
type DefaultBookingService struct {
	Bookings      bookingRepo.BookingRepository
	Ledger        *AvailabilityLedger
	Tx            repository.TxRunner
	Notifier      Notifier
	Schedules     ScheduleCanceller
	MinRentalDays int
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewBookingService wires the state machine. notifier and schedules may be nil.
func NewBookingService(
	bookings bookingRepo.BookingRepository,
	cars carRepo.CarRepository,
	tx repository.TxRunner,
	notifier Notifier,
	schedules ScheduleCanceller,
	minRentalDays int,
	logger *zap.Logger,
) *DefaultBookingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DefaultBookingService{
		Bookings:      bookings,
		Ledger:        &AvailabilityLedger{Cars: cars, Bookings: bookings},
		Tx:            tx,
		Notifier:      notifier,
		Schedules:     schedules,
		MinRentalDays: minRentalDays,
		Logger:        logger,
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewBookingNumber returns BK{yyyymmdd}{4 alphanumerics}.
func NewBookingNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:4]
	return "BK" + now.Format("20060102") + suffix
}

func (s *DefaultBookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	now := s.Now()
	if req.CustomerID == "" || req.CarID == "" {
		return nil, utils.NewValidationError("customer_id and car_id are required")
	}
	if !req.ReturnDate.After(req.PickupDate) {
		return nil, utils.NewValidationError("return date must be after pickup date")
	}
	if req.PickupDate.Before(now.Add(-pickupClockSkew)) {
		return nil, utils.NewValidationError("pickup date cannot be in the past")
	}
	days := pricing.RentalDays(req.PickupDate, req.ReturnDate)
	if s.MinRentalDays > 0 && days < s.MinRentalDays {
		return nil, utils.NewValidationError("minimum rental period is %d days", s.MinRentalDays)
	}
	if req.DiscountAmount < 0 || req.DepositAmount < 0 {
		return nil, utils.NewValidationError("discount and deposit cannot be negative")
	}

	car, err := s.Ledger.CheckBookable(ctx, req.CarID, req.PickupDate, req.ReturnDate, "")
	if err != nil {
		return nil, err
	}

	quote := pricing.NewQuote(car, req.PickupDate, req.ReturnDate)
	if req.DiscountAmount > quote.Subtotal {
		return nil, utils.NewValidationError("discount exceeds the rental subtotal")
	}

	b := &models.Booking{
		ID:             uuid.New().String(),
		BookingNumber:  NewBookingNumber(now),
		CustomerID:     req.CustomerID,
		CarID:          req.CarID,
		PickupDate:     req.PickupDate.UTC(),
		ReturnDate:     req.ReturnDate.UTC(),
		PickupLocation: req.PickupLocation,
		ReturnLocation: req.ReturnLocation,
		DailyRate:      quote.DailyRate,
		TotalDays:      quote.Days,
		Subtotal:       quote.Subtotal,
		TaxAmount:      quote.Tax,
		DiscountAmount: pricing.Round2(req.DiscountAmount),
		DepositAmount:  pricing.Round2(req.DepositAmount),
		Status:         models.BookingPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	b.RecalculateTotal()

	if err := s.Bookings.Create(ctx, b); err != nil {
		return nil, err
	}
	s.Logger.Info("booking created",
		zap.String("bookingID", b.ID),
		zap.String("bookingNumber", b.BookingNumber),
		zap.String("carID", b.CarID),
		zap.Float64("total", b.TotalAmount))
	return b, nil
}

func (s *DefaultBookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.applyAutoPickup(ctx, b), nil
}

func (s *DefaultBookingService) ListBookings(ctx context.Context, filter bookingRepo.BookingFilter) ([]models.Booking, error) {
	bookings, err := s.Bookings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i] = *s.applyAutoPickup(ctx, &bookings[i])
	}
	return bookings, nil
}

// applyAutoPickup moves a confirmed booking whose pickup time has passed to in_progress.
// The write is conditional on the booking still being confirmed, so repeating it is harmless.
// Failures are logged and the booking is returned as read.
func (s *DefaultBookingService) applyAutoPickup(ctx context.Context, b *models.Booking) *models.Booking {
	now := s.Now()
	if !b.PickupOverdue(now) {
		return b
	}
	next := *b
	next.Status = models.BookingInProgress
	next.ActualPickupDate = &now
	next.UpdatedAt = now

	ok, err := s.Bookings.UpdateIfStatus(ctx, &next, models.BookingConfirmed)
	if err != nil {
		s.Logger.Warn("auto pickup failed", zap.String("bookingID", b.ID), zap.Error(err))
		return b
	}
	if !ok {
		// someone else moved it first; show the stored state
		if fresh, err := s.Bookings.GetByID(ctx, b.ID); err == nil {
			return fresh
		}
		return b
	}
	s.Logger.Info("booking auto-advanced to in_progress", zap.String("bookingID", b.ID))
	return &next
}

// mutate runs fn on a fresh copy of the booking inside a transaction and stores the result only
// if the booking still has the status fn saw.
func (s *DefaultBookingService) mutate(ctx context.Context, id string, fn func(ctx context.Context, b *models.Booking) error) (*models.Booking, error) {
	var result *models.Booking
	err := s.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		b, err := s.Bookings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		previous := b.Status
		if err := fn(ctx, b); err != nil {
			return err
		}
		b.UpdatedAt = s.Now()
		ok, err := s.Bookings.UpdateIfStatus(ctx, b, previous)
		if err != nil {
			return err
		}
		if !ok {
			return utils.NewInvalidTransitionError("booking %s was modified concurrently, retry", b.BookingNumber)
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *DefaultBookingService) ConfirmBooking(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.mutate(ctx, id, func(ctx context.Context, b *models.Booking) error {
		if err := checkTransition(b, models.BookingConfirmed); err != nil {
			return err
		}
		if err := s.Ledger.Reserve(ctx, b); err != nil {
			return err
		}
		b.Status = models.BookingConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("booking confirmed", zap.String("bookingID", b.ID), zap.String("carID", b.CarID))
	s.notify(ctx, b, TransitionConfirmed)
	return b, nil
}

func (s *DefaultBookingService) StartRental(ctx context.Context, id string, req HandoverRequest) (*models.Booking, error) {
	if req.Odometer != nil && *req.Odometer < 0 {
		return nil, utils.NewValidationError("odometer reading cannot be negative")
	}
	return s.mutate(ctx, id, func(_ context.Context, b *models.Booking) error {
		if err := checkTransition(b, models.BookingInProgress); err != nil {
			return err
		}
		now := s.Now()
		pickedUp := now
		if req.PickedUpAt != nil {
			pickedUp = req.PickedUpAt.UTC()
		}
		b.Status = models.BookingInProgress
		b.ActualPickupDate = &pickedUp
		b.PickupOdometer = req.Odometer
		b.HandoverCompletedAt = &now
		b.HandoverCompletedBy = req.CompletedBy
		return nil
	})
}

func (s *DefaultBookingService) CompleteRental(ctx context.Context, id string, req ReturnRequest) (*models.Booking, error) {
	if req.ExtraCharges < 0 {
		return nil, utils.NewValidationError("extra charges cannot be negative")
	}
	b, err := s.mutate(ctx, id, func(ctx context.Context, b *models.Booking) error {
		if err := checkTransition(b, models.BookingCompleted); err != nil {
			return err
		}
		if req.Odometer != nil && b.PickupOdometer != nil && *req.Odometer < *b.PickupOdometer {
			return utils.NewValidationError("return odometer %d is below pickup odometer %d", *req.Odometer, *b.PickupOdometer)
		}
		now := s.Now()
		returned := now
		if req.ReturnedAt != nil {
			returned = req.ReturnedAt.UTC()
		}

		if fee := pricing.LateFee(b.ReturnDate, returned, b.DailyRate); fee > 0 {
			b.AddCharge(fee)
			s.Logger.Info("late fee applied", zap.String("bookingID", b.ID), zap.Float64("fee", fee))
		}
		if req.ExtraCharges > 0 {
			b.AddCharge(req.ExtraCharges)
		}
		b.Status = models.BookingCompleted
		b.ActualReturnDate = &returned
		b.ReturnOdometer = req.Odometer
		b.ReturnCompletedAt = &now
		b.ReturnCompletedBy = req.CompletedBy
		return s.Ledger.Release(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("booking completed", zap.String("bookingID", b.ID), zap.Float64("total", b.TotalAmount))
	s.cancelSchedule(ctx, b)
	s.notify(ctx, b, TransitionCompleted)
	return b, nil
}

func (s *DefaultBookingService) CancelBooking(ctx context.Context, id string, reason string) (*models.Booking, error) {
	b, err := s.mutate(ctx, id, func(ctx context.Context, b *models.Booking) error {
		if !b.CanCancel() {
			return utils.NewInvalidTransitionError("booking cannot be cancelled in its current state (status %s)", b.Status)
		}
		heldCar := b.IsActive()
		now := s.Now()

		b.CancellationFee = pricing.CancellationFee(b.TotalAmount, b.PickupDate, now)
		b.CancellationReason = reason
		b.CancelledAt = &now
		b.Status = models.BookingCancelled
		if heldCar {
			return s.Ledger.Release(ctx, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.Logger.Info("booking cancelled",
		zap.String("bookingID", b.ID),
		zap.Float64("cancellationFee", b.CancellationFee))
	s.cancelSchedule(ctx, b)
	return b, nil
}

func (s *DefaultBookingService) MarkNoShow(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.mutate(ctx, id, func(ctx context.Context, b *models.Booking) error {
		if err := checkTransition(b, models.BookingNoShow); err != nil {
			return err
		}
		if !s.Now().After(b.PickupDate) {
			return utils.NewInvalidTransitionError("booking cannot be marked as a no-show before its pickup time")
		}
		heldCar := b.IsActive()
		b.Status = models.BookingNoShow
		if heldCar {
			return s.Ledger.Release(ctx, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cancelSchedule(ctx, b)
	return b, nil
}

// ConfirmFromPayment revives pending, cancelled and no-show bookings once money has been
// collected for them. A car that was taken in the meantime does not block the confirmation:
// the car is left with its current holder and the booking is flagged for reassignment.
func (s *DefaultBookingService) ConfirmFromPayment(ctx context.Context, bookingID string) (*models.Booking, bool, error) {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, false, err
	}
	switch b.Status {
	case models.BookingPending, models.BookingCancelled, models.BookingNoShow:
	default:
		return b, false, nil
	}

	previous := b.Status
	if err := s.Ledger.Reserve(ctx, b); err != nil {
		if !utils.IsKind(err, utils.KindCarUnavailable) {
			return nil, false, err
		}
		b.NeedsCarReassignment = true
		s.Logger.Warn("payment confirmed a booking whose car is taken, flagged for reassignment",
			zap.String("bookingID", b.ID), zap.String("carID", b.CarID))
	}
	b.Status = models.BookingConfirmed
	b.UpdatedAt = s.Now()
	ok, err := s.Bookings.UpdateIfStatus(ctx, b, previous)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, utils.NewConflictError("booking "+b.ID+" changed during reconciliation", nil)
	}
	return b, true, nil
}

// Announce forwards a committed transition to the notifier.
func (s *DefaultBookingService) Announce(ctx context.Context, b *models.Booking, transition string) {
	s.notify(ctx, b, transition)
}

func (s *DefaultBookingService) notify(ctx context.Context, b *models.Booking, transition string) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.BookingTransitioned(ctx, b, transition)
}

func (s *DefaultBookingService) cancelSchedule(ctx context.Context, b *models.Booking) {
	if s.Schedules == nil || b.DirectDebitScheduleID == "" {
		return
	}
	if err := s.Schedules.CancelForBooking(ctx, b.ID); err != nil {
		s.Logger.Warn("failed to cancel direct debit schedule",
			zap.String("bookingID", b.ID),
			zap.String("scheduleID", b.DirectDebitScheduleID),
			zap.Error(err))
	}
}
