package reconcile

import (
	"time"

	"fleetrent/models"
	"fleetrent/services/webhook"
	"fleetrent/utils"
)

var (
	scheduleIDKeys = []string{"scheduleId", "ScheduleId", "schedule_id"}
	paymentIDKeys  = []string{"paymentId", "PaymentId", "payment_id"}
	bookingIDKeys  = []string{"bookingId", "BookingId", "booking_id"}
	dueDateKeys    = []string{"dueDate", "DueDate", "due_date", "date"}
	paidDateKeys   = []string{"paidDate", "PaidDate", "paid_date"}
	dueAmountKeys  = []string{"dueAmount", "DueAmount", "due_amount", "amount", "Amount"}
	paidAmountKeys = []string{"paidAmount", "PaidAmount", "paid_amount"}
)

// installmentEvent is the canonical reading of one event.
type installmentEvent struct {
	ScheduleID        string
	ExternalPaymentID string
	BookingID         string
	DueDate           time.Time
	DueAmount         float64
	PaidDate          *time.Time
	PaidAmount        *float64
}

// SyntheticPaymentID is the idempotency key of an installment whose events carry no payment id.
func SyntheticPaymentID(scheduleID string, due time.Time) string {
	return "sched:" + scheduleID + "|due:" + due.Format("2006-01-02")
}

func extract(ev webhook.Event) (*installmentEvent, error) {
	out := &installmentEvent{
		ScheduleID: ev.String(scheduleIDKeys...),
		BookingID:  ev.String(bookingIDKeys...),
	}
	if out.ScheduleID == "" {
		return nil, utils.NewValidationError("event carries no schedule id")
	}

	if paid, ok := ev.Date(paidDateKeys...); ok {
		out.PaidDate = &paid
	}
	due, ok := ev.Date(dueDateKeys...)
	switch {
	case ok:
		out.DueDate = due
	case out.PaidDate != nil:
		out.DueDate = *out.PaidDate
	default:
		return nil, utils.NewValidationError("event carries neither a due date nor a paid date")
	}

	if amount, ok := ev.Float(dueAmountKeys...); ok {
		if amount < 0 {
			return nil, utils.NewValidationError("due amount cannot be negative")
		}
		out.DueAmount = amount
	}
	if amount, ok := ev.Float(paidAmountKeys...); ok {
		if amount < 0 {
			return nil, utils.NewValidationError("paid amount cannot be negative")
		}
		out.PaidAmount = &amount
	}

	out.ExternalPaymentID = ev.String(paymentIDKeys...)
	if out.ExternalPaymentID == "" {
		out.ExternalPaymentID = SyntheticPaymentID(out.ScheduleID, out.DueDate)
	}
	return out, nil
}

// status derives the installment status: completed once money has arrived, otherwise pending,
// or overdue when the due date is before today.
func (e *installmentEvent) status(now time.Time) models.InstallmentStatus {
	if e.PaidDate != nil && e.PaidAmount != nil && *e.PaidAmount > 0 {
		return models.InstallmentCompleted
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if e.DueDate.Before(today) {
		return models.InstallmentOverdue
	}
	return models.InstallmentPending
}
