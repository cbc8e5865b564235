package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fleetrent/models"
	"fleetrent/utils"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/refund"
	"go.uber.org/zap"
)

// StripeRefunder refunds card payments whose gateway transaction id is a Stripe PaymentIntent.
// stripe.Key must be set before use.
type StripeRefunder struct {
	Logger *zap.Logger
}

func NewStripeRefunder(logger *zap.Logger) *StripeRefunder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeRefunder{Logger: logger}
}

func (s *StripeRefunder) Refund(ctx context.Context, p *models.Payment, amount float64, reason string) error {
	if p.GatewayTransactionID == nil || *p.GatewayTransactionID == "" {
		return utils.NewValidationError("payment %s has no stripe payment intent", p.TransactionID)
	}
	cents := int64(math.Round(amount * 100))
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(*p.GatewayTransactionID),
		Amount:        stripe.Int64(cents),
	}
	params.Context = ctx
	params.AddMetadata("booking_id", p.BookingID)
	params.AddMetadata("transaction_id", p.TransactionID)
	if reason != "" {
		params.AddMetadata("reason", reason)
	}
	// the refunded total so far makes the key unique per refund step
	params.SetIdempotencyKey(fmt.Sprintf("refund-%s-%d-%d", p.ID, int64(math.Round(p.RefundAmount*100)), cents))

	r, err := refund.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			retryable := stripeErr.HTTPStatusCode >= 500 || stripeErr.HTTPStatusCode == 429
			return utils.NewGatewayError(stripeErr.HTTPStatusCode, retryable, "stripe refund failed", err)
		}
		return utils.NewGatewayError(0, true, "stripe refund failed", err)
	}
	s.Logger.Info("stripe refund created",
		zap.String("refundID", r.ID),
		zap.String("paymentIntent", *p.GatewayTransactionID),
		zap.Int64("amountCents", cents))
	return nil
}
