package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	directDebitRepo "fleetrent/database/repository/directdebit"
	"fleetrent/database/repository/memory"
	"fleetrent/models"
	"fleetrent/services/booking"
	"fleetrent/services/webhook"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type countingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *countingNotifier) BookingTransitioned(_ context.Context, b *models.Booking, transition string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, b.ID+":"+transition)
}

type env struct {
	store      *memory.Store
	bookings   *booking.DefaultBookingService
	reconciler *Reconciler
	notifier   *countingNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.NewStore()
	store.PutCar(models.Car{ID: "car-1", DailyRate: 100, Status: models.CarAvailable, IsActive: true})
	store.PutBooking(models.Booking{
		ID: "booking-1", BookingNumber: "BK20260301TEST", CustomerID: "user-1", CarID: "car-1",
		PickupDate: testNow.Add(48 * time.Hour), ReturnDate: testNow.Add(5 * 24 * time.Hour),
		DailyRate: 100, TotalDays: 3, Subtotal: 300, TaxAmount: 30, TotalAmount: 330,
		Status: models.BookingPending, CreatedAt: testNow,
	})
	err := store.Schedules().Create(context.Background(), &models.DirectDebitSchedule{
		ScheduleID: "SCH-1", BookingID: "booking-1", CustomerCode: "CUS-1",
		Status: models.ScheduleActive, CreatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	notifier := &countingNotifier{}
	svc := booking.NewBookingService(store.Bookings(), store.Cars(), store, notifier, nil, 1, nil)
	svc.Now = func() time.Time { return testNow }
	rec := NewReconciler(store, store.Schedules(), store.Installments(), store.Payments(), store.Bookings(), svc, notifier, "AUD", nil)
	rec.Now = func() time.Time { return testNow }
	return &env{store: store, bookings: svc, reconciler: rec, notifier: notifier}
}

func batch(t *testing.T, events ...map[string]interface{}) []webhook.Event {
	t.Helper()
	for i, ev := range events {
		if _, ok := ev["id"]; !ok {
			ev["id"] = "evt-" + string(rune('a'+i))
		}
		ev["event"] = "payment.updated"
		ev["dateCreated"] = "2026-03-01T10:00:00Z"
		ev["resource"] = "https://gateway.example/v3/payments"
	}
	body, err := json.Marshal(events)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := webhook.ParseBatch(body)
	if err != nil {
		t.Fatalf("ParseBatch: %v", err)
	}
	return parsed
}

func paidEvent() map[string]interface{} {
	return map[string]interface{}{
		"scheduleId": "SCH-1",
		"paymentId":  "pay_1",
		"bookingId":  "booking-1",
		"dueDate":    "2026-03-05",
		"dueAmount":  110.0,
		"PaidDate":   "2026-03-05",
		"PaidAmount": 100.0,
		"status":     "completed",
	}
}

func pendingEvent() map[string]interface{} {
	return map[string]interface{}{
		"scheduleId": "SCH-1",
		"paymentId":  "pay_1",
		"dueDate":    "2026-03-05",
		"dueAmount":  110.0,
		"status":     "pending",
	}
}

func (e *env) booking(t *testing.T) *models.Booking {
	t.Helper()
	b, err := e.store.Bookings().GetByID(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return b
}

func TestRedeliveryCreatesExactlyOnePayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		report := e.reconciler.ReconcileBatch(ctx, batch(t, paidEvent()))
		if report.Failed != 0 {
			t.Fatalf("delivery %d failed: %v", i, report.Results[0].Err)
		}
		if want := i == 0; report.Results[0].PaymentCreated != want {
			t.Errorf("delivery %d PaymentCreated = %v, want %v", i, report.Results[0].PaymentCreated, want)
		}
	}

	if got := e.store.PaymentCount(); got != 1 {
		t.Fatalf("payments = %d, want 1", got)
	}
	if got := e.store.InstallmentCount(); got != 1 {
		t.Fatalf("installments = %d, want 1", got)
	}
	p := e.store.AllPayments()[0]
	if p.Amount != 100 || p.Status != models.PaymentCompleted || p.Method != models.MethodDirectDebit ||
		p.Gateway != models.GatewayDirectDebit || p.Currency != "AUD" || p.UserID != "user-1" {
		t.Errorf("payment = %+v", p)
	}
	if p.GatewayTransactionID == nil || *p.GatewayTransactionID != "pay_1" {
		t.Errorf("gateway transaction id = %v, want pay_1", p.GatewayTransactionID)
	}
	if got := e.booking(t).Status; got != models.BookingConfirmed {
		t.Errorf("booking status = %s, want confirmed", got)
	}
	if len(e.notifier.events) != 1 {
		t.Errorf("notifications = %v, want exactly one", e.notifier.events)
	}
}

func TestConcurrentDeliveriesCreateOnePayment(t *testing.T) {
	e := newEnv(t)
	events := batch(t, paidEvent())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.reconciler.ReconcileBatch(context.Background(), events)
		}()
	}
	wg.Wait()

	if got := e.store.PaymentCount(); got != 1 {
		t.Fatalf("payments = %d, want 1", got)
	}
	if got := e.store.InstallmentCount(); got != 1 {
		t.Fatalf("installments = %d, want 1", got)
	}
}

func TestPendingThenPaidConvergesToOneRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	report := e.reconciler.ReconcileBatch(ctx, batch(t, pendingEvent()))
	if report.Failed != 0 {
		t.Fatalf("pending event failed: %v", report.Results[0].Err)
	}
	inst := report.Results[0].Installment
	if inst.Status != models.InstallmentPending || inst.BookingID != "booking-1" {
		t.Fatalf("installment = %+v, want pending on booking-1", inst)
	}
	if e.store.PaymentCount() != 0 {
		t.Fatalf("payment created for a pending installment")
	}

	report = e.reconciler.ReconcileBatch(ctx, batch(t, paidEvent()))
	if report.Failed != 0 {
		t.Fatalf("paid event failed: %v", report.Results[0].Err)
	}
	if report.Results[0].Installment.ID != inst.ID {
		t.Errorf("paid event created a new installment")
	}
	if e.store.InstallmentCount() != 1 || e.store.PaymentCount() != 1 {
		t.Errorf("installments = %d, payments = %d; want 1 and 1", e.store.InstallmentCount(), e.store.PaymentCount())
	}
}

func TestStalePendingEventDoesNotReopenCompletedInstallment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.reconciler.ReconcileBatch(ctx, batch(t, paidEvent()))
	report := e.reconciler.ReconcileBatch(ctx, batch(t, pendingEvent()))
	if report.Failed != 0 {
		t.Fatalf("stale event failed: %v", report.Results[0].Err)
	}
	inst := e.store.AllInstallments()[0]
	if inst.Status != models.InstallmentCompleted || inst.PaidAmount == nil || *inst.PaidAmount != 100 {
		t.Errorf("installment = %+v, want still completed with 100 paid", inst)
	}
	if e.store.PaymentCount() != 1 {
		t.Errorf("payments = %d, want 1", e.store.PaymentCount())
	}
}

func TestEventsWithoutPaymentIDUseSyntheticKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pending := pendingEvent()
	delete(pending, "paymentId")
	paid := paidEvent()
	delete(paid, "paymentId")

	e.reconciler.ReconcileBatch(ctx, batch(t, pending))
	report := e.reconciler.ReconcileBatch(ctx, batch(t, paid))
	e.reconciler.ReconcileBatch(ctx, batch(t, paidEvent()))
	if report.Failed != 0 {
		t.Fatalf("paid event failed: %v", report.Results[0].Err)
	}

	if e.store.InstallmentCount() != 1 || e.store.PaymentCount() != 1 {
		t.Fatalf("installments = %d, payments = %d; want 1 and 1", e.store.InstallmentCount(), e.store.PaymentCount())
	}
	inst := e.store.AllInstallments()[0]
	if want := "sched:SCH-1|due:2026-03-05"; inst.ExternalPaymentID != want {
		t.Errorf("external payment id = %q, want %q", inst.ExternalPaymentID, want)
	}
}

func TestMalformedEventIsSkippedNotFatal(t *testing.T) {
	e := newEnv(t)
	broken := paidEvent()
	delete(broken, "scheduleId")
	unknown := paidEvent()
	unknown["scheduleId"] = "SCH-UNKNOWN"
	delete(unknown, "bookingId")

	report := e.reconciler.ReconcileBatch(context.Background(), batch(t, broken, unknown, paidEvent()))
	if report.Failed != 2 || report.Succeeded != 1 {
		t.Fatalf("failed = %d, succeeded = %d; want 2 and 1", report.Failed, report.Succeeded)
	}
	if report.Results[0].Err == nil || report.Results[0].Err.Index != 0 {
		t.Errorf("first result = %+v, want an error marker at index 0", report.Results[0])
	}
	if report.Results[2].Err != nil || !report.Results[2].PaymentCreated {
		t.Errorf("valid event result = %+v", report.Results[2])
	}
	if e.store.PaymentCount() != 1 {
		t.Errorf("payments = %d, want 1", e.store.PaymentCount())
	}
}

func TestBookingResolvedFromSchedule(t *testing.T) {
	e := newEnv(t)
	paid := paidEvent()
	delete(paid, "bookingId")

	report := e.reconciler.ReconcileBatch(context.Background(), batch(t, paid))
	if report.Failed != 0 {
		t.Fatalf("event failed: %v", report.Results[0].Err)
	}
	if got := report.Results[0].Installment.BookingID; got != "booking-1" {
		t.Errorf("booking id = %q, want booking-1", got)
	}
}

func TestFailedPaymentInsertRollsBackInstallment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.FailPaymentCreate = errors.New("connection reset")

	report := e.reconciler.ReconcileBatch(ctx, batch(t, paidEvent()))
	if report.Failed != 1 {
		t.Fatalf("failed = %d, want 1", report.Failed)
	}
	if e.store.InstallmentCount() != 0 || e.store.PaymentCount() != 0 {
		t.Fatalf("partial write survived: installments = %d, payments = %d", e.store.InstallmentCount(), e.store.PaymentCount())
	}
	if got := e.booking(t).Status; got != models.BookingPending {
		t.Errorf("booking status = %s, want pending", got)
	}

	report = e.reconciler.ReconcileBatch(ctx, batch(t, paidEvent()))
	if report.Failed != 0 || !report.Results[0].PaymentCreated {
		t.Fatalf("retry result = %+v", report.Results[0])
	}
	if e.store.PaymentCount() != 1 {
		t.Errorf("payments = %d, want 1", e.store.PaymentCount())
	}
}

func TestUnpaidPastDueInstallmentIsOverdue(t *testing.T) {
	e := newEnv(t)
	ev := pendingEvent()
	ev["dueDate"] = "2026-02-20"

	report := e.reconciler.ReconcileBatch(context.Background(), batch(t, ev))
	if report.Failed != 0 {
		t.Fatalf("event failed: %v", report.Results[0].Err)
	}
	if got := report.Results[0].Installment.Status; got != models.InstallmentOverdue {
		t.Errorf("status = %s, want overdue", got)
	}
}

func TestEndToEndBookingToPayment(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.store.PutCar(models.Car{ID: "car-9", DailyRate: 80, Status: models.CarAvailable, IsActive: true})

	b, err := e.bookings.CreateBooking(ctx, booking.CreateBookingRequest{
		CustomerID: "user-9", CarID: "car-9",
		PickupDate: testNow.Add(72 * time.Hour), ReturnDate: testNow.Add(6 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	if _, err := e.bookings.ConfirmBooking(ctx, b.ID); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	car, _ := e.store.Cars().GetByID(ctx, "car-9")
	if car.Status != models.CarBooked {
		t.Fatalf("car status = %s, want booked", car.Status)
	}
	if err := e.store.Schedules().Create(ctx, &models.DirectDebitSchedule{
		ScheduleID: "SCH-9", BookingID: b.ID, Status: models.ScheduleActive, CreatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	ev := map[string]interface{}{
		"scheduleId": "SCH-9", "paymentId": "pay_9",
		"dueDate": "2026-03-04", "dueAmount": 264.0,
		"paidDate": "2026-03-04", "paidAmount": 264.0,
	}
	for i := 0; i < 2; i++ {
		report := e.reconciler.ReconcileBatch(ctx, batch(t, ev))
		if report.Failed != 0 {
			t.Fatalf("delivery %d failed: %v", i, report.Results[0].Err)
		}
		if report.Results[0].BookingConfirmed {
			t.Errorf("delivery %d re-confirmed an already confirmed booking", i)
		}
	}

	payments, err := e.store.Payments().ListByBooking(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListByBooking: %v", err)
	}
	if len(payments) != 1 || payments[0].Amount != 264 || payments[0].Status != models.PaymentCompleted {
		t.Fatalf("payments = %+v, want one completed payment of 264", payments)
	}
	stored, _ := e.store.Bookings().GetByID(ctx, b.ID)
	if stored.Status != models.BookingConfirmed {
		t.Errorf("booking status = %s, want confirmed", stored.Status)
	}
}

// looseTx runs units of work without serializing them, like concurrent snapshot transactions
// that touch different documents.
type looseTx struct{}

func (looseTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// gatedInstallments holds the first two due-date lookups until both have missed, so both
// callers go on to insert.
type gatedInstallments struct {
	directDebitRepo.InstallmentRepository
	lookups int32
	both    sync.WaitGroup
}

func (g *gatedInstallments) FindByScheduleDue(ctx context.Context, scheduleID, bookingID string, dueDate time.Time) (*models.DirectDebitInstallment, error) {
	inst, err := g.InstallmentRepository.FindByScheduleDue(ctx, scheduleID, bookingID, dueDate)
	if atomic.AddInt32(&g.lookups, 1) <= 2 {
		g.both.Done()
		g.both.Wait()
	}
	return inst, err
}

func TestRacingPendingAndPaidEventsShareOneInstallment(t *testing.T) {
	e := newEnv(t)
	gated := &gatedInstallments{InstallmentRepository: e.store.Installments()}
	gated.both.Add(2)
	e.reconciler.Tx = looseTx{}
	e.reconciler.Installments = gated

	pending := pendingEvent()
	delete(pending, "paymentId")
	batches := [][]webhook.Event{batch(t, pending), batch(t, paidEvent())}

	reports := make([]BatchReport, len(batches))
	var wg sync.WaitGroup
	for i := range batches {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reports[i] = e.reconciler.ReconcileBatch(context.Background(), batches[i])
		}(i)
	}
	wg.Wait()

	for i, r := range reports {
		if r.Failed != 0 {
			t.Errorf("batch %d failed: %v", i, r.Results[0].Err)
		}
	}
	rows := e.store.AllInstallments()
	if len(rows) != 1 {
		for _, r := range rows {
			t.Logf("installment ext=%s status=%s", r.ExternalPaymentID, r.Status)
		}
		t.Fatalf("installments for 2026-03-05 = %d, want 1", len(rows))
	}
	if rows[0].Status != models.InstallmentCompleted {
		t.Errorf("installment status = %s, want completed", rows[0].Status)
	}
	if got := e.store.PaymentCount(); got != 1 {
		t.Errorf("payments = %d, want 1", got)
	}
	if got := e.booking(t).Status; got != models.BookingConfirmed {
		t.Errorf("booking status = %s, want confirmed", got)
	}
}
