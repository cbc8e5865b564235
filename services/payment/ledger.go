package payment

import (
	"context"
	"time"

	"fleetrent/database/repository"
	paymentRepo "fleetrent/database/repository/payment"
	"fleetrent/models"
	"fleetrent/services/pricing"
	"fleetrent/utils"

	"go.uber.org/zap"
)

// Refunder returns money upstream for payments taken by an external gateway.
type Refunder interface {
	Refund(ctx context.Context, payment *models.Payment, amount float64, reason string) error
}

type RefundRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Reason string  `json:"reason"`
}

// Ledger is the payment store's service surface. Payments are created by checkout flows and the
// installment reconciler; the ledger only lists them and records refunds.
type Ledger struct {
	Payments  paymentRepo.PaymentRepository
	Tx        repository.TxRunner
	Refunders map[string]Refunder
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewLedger(payments paymentRepo.PaymentRepository, tx repository.TxRunner, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		Payments:  payments,
		Tx:        tx,
		Refunders: map[string]Refunder{},
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterRefunder routes refunds of payments recorded under gateway to r.
func (l *Ledger) RegisterRefunder(gateway string, r Refunder) {
	l.Refunders[gateway] = r
}

func (l *Ledger) ListByBooking(ctx context.Context, bookingID string) ([]models.Payment, error) {
	if bookingID == "" {
		return nil, utils.NewValidationError("booking id is required")
	}
	return l.Payments.ListByBooking(ctx, bookingID)
}

func (l *Ledger) Get(ctx context.Context, paymentID string) (*models.Payment, error) {
	return l.Payments.GetByID(ctx, paymentID)
}

func checkRefundable(p *models.Payment, amount float64) error {
	if p.Status != models.PaymentCompleted {
		return utils.NewValidationError("payment %s cannot be refunded (status %s)", p.TransactionID, p.Status)
	}
	if remaining := p.RemainingBalance(); amount > remaining {
		return utils.NewValidationError("refund amount %.2f exceeds remaining balance %.2f", amount, remaining)
	}
	return nil
}

// Refund returns amount of a completed payment. The amount is checked against the remaining balance
// before anything is written; a full refund moves the payment to refunded.
func (l *Ledger) Refund(ctx context.Context, paymentID string, amount float64, reason string) (*models.Payment, error) {
	amount = pricing.Round2(amount)
	if amount <= 0 {
		return nil, utils.NewValidationError("refund amount must be positive")
	}

	p, err := l.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := checkRefundable(p, amount); err != nil {
		return nil, err
	}
	if refunder, ok := l.Refunders[p.Gateway]; ok {
		if err := refunder.Refund(ctx, p, amount, reason); err != nil {
			return nil, err
		}
	}

	var updated *models.Payment
	err = l.Tx.WithTransaction(ctx, func(ctx context.Context) error {
		fresh, err := l.Payments.GetByID(ctx, paymentID)
		if err != nil {
			return err
		}
		if err := checkRefundable(fresh, amount); err != nil {
			return err
		}
		now := l.Now()
		fresh.RefundAmount = pricing.Round2(fresh.RefundAmount + amount)
		fresh.RefundReason = reason
		fresh.RefundedAt = &now
		fresh.UpdatedAt = now
		if fresh.RemainingBalance() <= 0 {
			fresh.Status = models.PaymentRefunded
		}
		if err := l.Payments.Update(ctx, fresh); err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Logger.Info("payment refunded",
		zap.String("paymentID", updated.ID),
		zap.String("bookingID", updated.BookingID),
		zap.Float64("amount", amount),
		zap.String("status", string(updated.Status)))
	return updated, nil
}
