package directDebitRepo

import (
	"context"
	"time"

	"fleetrent/models"
)

// ScheduleRepository persists external payment plans. schedule_id is unique.
type ScheduleRepository interface {
	Create(ctx context.Context, schedule *models.DirectDebitSchedule) error
	GetByScheduleID(ctx context.Context, scheduleID string) (*models.DirectDebitSchedule, error)
	// GetByBookingID returns the most recent schedule for a booking.
	GetByBookingID(ctx context.Context, bookingID string) (*models.DirectDebitSchedule, error)
	UpdateStatus(ctx context.Context, scheduleID string, status models.ScheduleStatus) error
}

// InstallmentRepository persists installments. Finders return nil, nil when nothing matches so
// the reconciler can fall through to the next idempotency key.
type InstallmentRepository interface {
	FindByExternalPaymentID(ctx context.Context, externalPaymentID string) (*models.DirectDebitInstallment, error)
	FindByScheduleDue(ctx context.Context, scheduleID, bookingID string, dueDate time.Time) (*models.DirectDebitInstallment, error)
	// Create fails with a ConflictError when external_payment_id is already taken.
	Create(ctx context.Context, installment *models.DirectDebitInstallment) error
	Update(ctx context.Context, installment *models.DirectDebitInstallment) error
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.DirectDebitInstallment, error)
}

// CustomerRepository caches the gateway customer code per user.
type CustomerRepository interface {
	// GetByUserID returns nil, nil when the user has no cached customer.
	GetByUserID(ctx context.Context, userID string) (*models.DirectDebitCustomer, error)
	Create(ctx context.Context, customer *models.DirectDebitCustomer) error
	Delete(ctx context.Context, userID string) error
}
