package paymentRepo

import (
	"context"

	"fleetrent/models"
)

// PaymentRepository stores Payment records. Payments are append-mostly: only refunds update them.
type PaymentRepository interface {
	// Create inserts a payment. A second payment for the same (booking, gateway, gateway
	// transaction id) fails with a ConflictError.
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id string) (*models.Payment, error)
	// FindByGatewayTransaction returns nil, nil when no payment matches.
	FindByGatewayTransaction(ctx context.Context, bookingID, gateway, gatewayTxnID string) (*models.Payment, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Payment, error)
	Update(ctx context.Context, payment *models.Payment) error
}
