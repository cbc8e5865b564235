// Package reconcile turns direct-debit webhook events into installments, payments and booking
// confirmations exactly once per installment.
package reconcile

import (
	"context"
	"strings"
	"time"

	"fleetrent/database/repository"
	bookingRepo "fleetrent/database/repository/booking"
	directDebitRepo "fleetrent/database/repository/directdebit"
	paymentRepo "fleetrent/database/repository/payment"
	"fleetrent/models"
	"fleetrent/services/booking"
	"fleetrent/services/webhook"
	"fleetrent/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAttempts bounds how often one event's unit of work is re-run after losing a uniqueness
// race to a concurrent delivery.
const maxAttempts = 2

// BookingConfirmer advances a booking once a payment for it has been recorded.
type BookingConfirmer interface {
	ConfirmFromPayment(ctx context.Context, bookingID string) (*models.Booking, bool, error)
}

type Reconciler struct {
	Tx           repository.TxRunner
	Schedules    directDebitRepo.ScheduleRepository
	Installments directDebitRepo.InstallmentRepository
	Payments     paymentRepo.PaymentRepository
	Bookings     bookingRepo.BookingRepository
	Confirmer    BookingConfirmer
	Notifier     booking.Notifier
	Currency     string
	Logger       *zap.Logger
	Now          func() time.Time
}

func NewReconciler(
	tx repository.TxRunner,
	schedules directDebitRepo.ScheduleRepository,
	installments directDebitRepo.InstallmentRepository,
	payments paymentRepo.PaymentRepository,
	bookings bookingRepo.BookingRepository,
	confirmer BookingConfirmer,
	notifier booking.Notifier,
	currency string,
	logger *zap.Logger,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if currency == "" {
		currency = "AUD"
	}
	return &Reconciler{
		Tx:           tx,
		Schedules:    schedules,
		Installments: installments,
		Payments:     payments,
		Bookings:     bookings,
		Confirmer:    confirmer,
		Notifier:     notifier,
		Currency:     currency,
		Logger:       logger,
		Now:          func() time.Time { return time.Now().UTC() },
	}
}

// NewTransactionID returns TXN{yyyymmddHHMMSS}{6 alphanumerics}.
func NewTransactionID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))[:6]
	return "TXN" + now.Format("20060102150405") + suffix
}

// ReconcileBatch applies every event independently. A failing event is recorded in the report
// and never stops the rest of the batch.
func (r *Reconciler) ReconcileBatch(ctx context.Context, events []webhook.Event) BatchReport {
	report := BatchReport{Results: make([]Result, 0, len(events))}
	for i, ev := range events {
		res := r.ReconcileEvent(ctx, ev)
		res.Index = i
		if res.Err != nil {
			res.Err.Index = i
			r.Logger.Warn("webhook event not reconciled",
				zap.Int("index", i),
				zap.String("eventID", ev.ID),
				zap.String("eventType", ev.Type),
				zap.Error(res.Err.Err))
		}
		report.add(res)
	}
	r.Logger.Info("webhook batch reconciled",
		zap.Int("events", len(events)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("paymentsCreated", report.PaymentsCreated))
	return report
}

// ReconcileEvent applies one event in its own unit of work.
func (r *Reconciler) ReconcileEvent(ctx context.Context, ev webhook.Event) Result {
	res := Result{EventID: ev.ID}
	fail := func(err error) Result {
		res.Err = &ReconcileError{EventID: ev.ID, Err: err}
		return res
	}

	parsed, err := extract(ev)
	if err != nil {
		return fail(err)
	}
	if err := r.resolveBooking(ctx, parsed); err != nil {
		return fail(err)
	}

	var outcome applyOutcome
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome = applyOutcome{}
		err = r.Tx.WithTransaction(ctx, func(ctx context.Context) error {
			return r.apply(ctx, ev, parsed, &outcome)
		})
		if err == nil || !utils.IsKind(err, utils.KindConflict) {
			break
		}
		r.Logger.Debug("lost a uniqueness race, re-running event",
			zap.String("eventID", ev.ID), zap.Int("attempt", attempt))
	}
	if utils.IsKind(err, utils.KindConflict) {
		// a concurrent delivery applied the same event
		r.Logger.Info("event already processed", zap.String("eventID", ev.ID), zap.Error(err))
		return res
	}
	if err != nil {
		return fail(err)
	}

	res.Installment = outcome.installment
	res.PaymentCreated = outcome.payment != nil
	if outcome.payment != nil {
		res.PaymentID = outcome.payment.ID
	}
	res.BookingConfirmed = outcome.confirmed != nil
	if outcome.confirmed != nil && r.Notifier != nil {
		r.Notifier.BookingTransitioned(ctx, outcome.confirmed, booking.TransitionConfirmed)
	}
	return res
}

// resolveBooking fills the booking id from the local schedule when the event lacks it, and
// rejects events whose booking disagrees with the schedule.
func (r *Reconciler) resolveBooking(ctx context.Context, e *installmentEvent) error {
	schedule, err := r.Schedules.GetByScheduleID(ctx, e.ScheduleID)
	if err != nil && !utils.IsKind(err, utils.KindNotFound) {
		return err
	}
	if schedule != nil {
		if e.BookingID != "" && e.BookingID != schedule.BookingID {
			return utils.NewValidationError("event booking %s does not match schedule %s", e.BookingID, e.ScheduleID)
		}
		e.BookingID = schedule.BookingID
	}
	if e.BookingID == "" {
		return utils.NewNotFoundError("schedule %s is unknown and the event names no booking", e.ScheduleID)
	}
	return nil
}

type applyOutcome struct {
	installment *models.DirectDebitInstallment
	payment     *models.Payment
	confirmed   *models.Booking
}

// apply is the unit of work for one event: installment upsert, then for a completed installment
// the payment insert and booking confirmation. Any error rolls all of it back.
func (r *Reconciler) apply(ctx context.Context, ev webhook.Event, e *installmentEvent, out *applyOutcome) error {
	now := r.Now()

	b, err := r.Bookings.GetByID(ctx, e.BookingID)
	if err != nil {
		return err
	}

	inst, err := r.findInstallment(ctx, e)
	if err != nil {
		return err
	}
	isNew := inst == nil
	if isNew {
		inst = &models.DirectDebitInstallment{
			ID:                uuid.New().String(),
			ScheduleID:        e.ScheduleID,
			BookingID:         e.BookingID,
			ExternalPaymentID: e.ExternalPaymentID,
			CreatedAt:         now,
		}
	}
	merge(inst, e, ev.Raw, now)

	if isNew {
		err = r.Installments.Create(ctx, inst)
	} else {
		err = r.Installments.Update(ctx, inst)
	}
	if err != nil {
		return err
	}
	out.installment = inst

	if inst.Status != models.InstallmentCompleted {
		return nil
	}

	existing, err := r.Payments.FindByGatewayTransaction(ctx, inst.BookingID, models.GatewayDirectDebit, inst.ExternalPaymentID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	txnKey := inst.ExternalPaymentID
	payment := &models.Payment{
		ID:                   uuid.New().String(),
		TransactionID:        NewTransactionID(now),
		BookingID:            b.ID,
		UserID:               b.CustomerID,
		Amount:               inst.SettledAmount(),
		Currency:             r.Currency,
		Method:               models.MethodDirectDebit,
		Status:               models.PaymentCompleted,
		Gateway:              models.GatewayDirectDebit,
		GatewayTransactionID: &txnKey,
		GatewayResponse:      ev.Raw,
		Description:          "Direct debit payment for booking " + b.BookingNumber,
		ProcessedAt:          &now,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := r.Payments.Create(ctx, payment); err != nil {
		return err
	}
	out.payment = payment

	confirmed, changed, err := r.Confirmer.ConfirmFromPayment(ctx, b.ID)
	if err != nil {
		return err
	}
	if changed {
		out.confirmed = confirmed
	}
	return nil
}

// findInstallment looks the installment up by external payment id, then by schedule, booking
// and due date.
func (r *Reconciler) findInstallment(ctx context.Context, e *installmentEvent) (*models.DirectDebitInstallment, error) {
	inst, err := r.Installments.FindByExternalPaymentID(ctx, e.ExternalPaymentID)
	if err != nil || inst != nil {
		return inst, err
	}
	return r.Installments.FindByScheduleDue(ctx, e.ScheduleID, e.BookingID, e.DueDate)
}

// merge applies an event to an installment. A completed installment stays completed: a late
// pending or overdue event for it only refreshes the audit payload.
func merge(inst *models.DirectDebitInstallment, e *installmentEvent, raw map[string]interface{}, now time.Time) {
	inst.RawPayload = raw
	inst.UpdatedAt = now

	status := e.status(now)
	if inst.Status == models.InstallmentCompleted && status != models.InstallmentCompleted {
		return
	}
	if inst.ExternalPaymentID == "" {
		inst.ExternalPaymentID = e.ExternalPaymentID
	}
	inst.DueDate = e.DueDate
	if e.DueAmount > 0 || inst.DueAmount == 0 {
		inst.DueAmount = e.DueAmount
	}
	inst.PaidDate = e.PaidDate
	inst.PaidAmount = e.PaidAmount
	inst.Status = status
}
