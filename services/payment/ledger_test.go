package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetrent/database/repository/memory"
	"fleetrent/models"
	"fleetrent/utils"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeRefunder struct {
	calls   []float64
	failure error
}

func (f *fakeRefunder) Refund(_ context.Context, _ *models.Payment, amount float64, _ string) error {
	if f.failure != nil {
		return f.failure
	}
	f.calls = append(f.calls, amount)
	return nil
}

func newLedger(t *testing.T, payments ...models.Payment) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	for _, p := range payments {
		store.PutPayment(p)
	}
	l := NewLedger(store.Payments(), store, nil)
	l.Now = func() time.Time { return testNow }
	return l, store
}

func completedPayment(id, gateway string) models.Payment {
	txn := "pi_" + id
	return models.Payment{
		ID: id, TransactionID: "TXN" + id, BookingID: "booking-1", UserID: "user-1",
		Amount: 200, Currency: "AUD", Method: models.MethodCreditCard, Status: models.PaymentCompleted,
		Gateway: gateway, GatewayTransactionID: &txn, CreatedAt: testNow,
	}
}

func TestPartialThenFullRefund(t *testing.T) {
	l, _ := newLedger(t, completedPayment("p1", models.GatewayDirectDebit))
	ctx := context.Background()

	p, err := l.Refund(ctx, "p1", 50, "damaged on delivery")
	if err != nil {
		t.Fatalf("Refund: %v", err)
	}
	if p.RefundAmount != 50 || p.Status != models.PaymentCompleted || p.RemainingBalance() != 150 {
		t.Fatalf("after partial refund: refund=%v status=%s remaining=%v", p.RefundAmount, p.Status, p.RemainingBalance())
	}
	if p.RefundedAt == nil || !p.RefundedAt.Equal(testNow) || p.RefundReason != "damaged on delivery" {
		t.Errorf("refund metadata not recorded: %+v", p)
	}

	p, err = l.Refund(ctx, "p1", 150, "")
	if err != nil {
		t.Fatalf("second Refund: %v", err)
	}
	if p.Status != models.PaymentRefunded || p.RefundAmount != 200 {
		t.Errorf("after full refund: status=%s refund=%v, want refunded 200", p.Status, p.RefundAmount)
	}

	if _, err := l.Refund(ctx, "p1", 1, ""); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("refund of a refunded payment: got %v, want validation error", err)
	}
}

func TestRefundAboveRemainingBalanceIsRejected(t *testing.T) {
	l, store := newLedger(t, completedPayment("p1", models.GatewayDirectDebit))

	_, err := l.Refund(context.Background(), "p1", 200.01, "")
	if !utils.IsKind(err, utils.KindValidation) {
		t.Fatalf("got %v, want validation error", err)
	}
	if got := store.AllPayments()[0].RefundAmount; got != 0 {
		t.Errorf("refund amount = %v, want untouched 0", got)
	}
}

func TestRefundRequiresCompletedPayment(t *testing.T) {
	pending := completedPayment("p1", models.GatewayDirectDebit)
	pending.Status = models.PaymentPending
	l, _ := newLedger(t, pending)

	if _, err := l.Refund(context.Background(), "p1", 10, ""); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("got %v, want validation error", err)
	}
	if _, err := l.Refund(context.Background(), "p1", -5, ""); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("negative amount: got %v, want validation error", err)
	}
}

func TestGatewayRefunderIsCalledForItsPayments(t *testing.T) {
	l, store := newLedger(t,
		completedPayment("card", models.GatewayStripe),
		completedPayment("dd", models.GatewayDirectDebit))
	stripeFake := &fakeRefunder{}
	l.RegisterRefunder(models.GatewayStripe, stripeFake)
	ctx := context.Background()

	if _, err := l.Refund(ctx, "card", 20, ""); err != nil {
		t.Fatalf("Refund card: %v", err)
	}
	if _, err := l.Refund(ctx, "dd", 20, ""); err != nil {
		t.Fatalf("Refund direct debit: %v", err)
	}
	if len(stripeFake.calls) != 1 || stripeFake.calls[0] != 20 {
		t.Errorf("stripe refunder calls = %v, want [20]", stripeFake.calls)
	}

	stripeFake.failure = utils.NewGatewayError(502, false, "stripe refund failed", errors.New("card_declined"))
	if _, err := l.Refund(ctx, "card", 30, ""); !utils.IsKind(err, utils.KindGateway) {
		t.Fatalf("got %v, want gateway error", err)
	}
	for _, p := range store.AllPayments() {
		if p.ID == "card" && p.RefundAmount != 20 {
			t.Errorf("failed upstream refund changed the ledger: refund=%v", p.RefundAmount)
		}
	}
}

func TestListByBooking(t *testing.T) {
	other := completedPayment("p2", models.GatewayDirectDebit)
	other.BookingID = "booking-2"
	other.TransactionID = "TXNp2"
	l, _ := newLedger(t, completedPayment("p1", models.GatewayDirectDebit), other)

	payments, err := l.ListByBooking(context.Background(), "booking-1")
	if err != nil {
		t.Fatalf("ListByBooking: %v", err)
	}
	if len(payments) != 1 || payments[0].ID != "p1" {
		t.Errorf("payments = %+v, want only p1", payments)
	}
	if _, err := l.ListByBooking(context.Background(), ""); !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("empty booking id: got %v, want validation error", err)
	}
}
