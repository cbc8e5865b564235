package models

import "time"

// Gateway names recorded on Payment.Gateway.
const (
	GatewayDirectDebit = "payadvantage"
	GatewayStripe      = "stripe"
)

// Payment is a settled money movement recognized locally.
// (booking_id, gateway, gateway_transaction_id) is unique when the gateway transaction id is set.
type Payment struct {
	ID                   string                 `bson:"id" json:"id"`
	TransactionID        string                 `bson:"transaction_id" json:"transaction_id"`
	BookingID            string                 `bson:"booking_id" json:"booking_id"`
	UserID               string                 `bson:"user_id" json:"user_id"`
	Amount               float64                `bson:"amount" json:"amount"`
	Currency             string                 `bson:"currency" json:"currency"`
	Method               PaymentMethod          `bson:"payment_method" json:"payment_method"`
	Status               PaymentStatus          `bson:"status" json:"status"`
	Gateway              string                 `bson:"gateway" json:"gateway"`
	GatewayTransactionID *string                `bson:"gateway_transaction_id" json:"gateway_transaction_id,omitempty"`
	GatewayResponse      map[string]interface{} `bson:"gateway_response,omitempty" json:"-"`
	Description          string                 `bson:"description,omitempty" json:"description,omitempty"`

	RefundAmount float64    `bson:"refund_amount" json:"refund_amount"`
	RefundReason string     `bson:"refund_reason,omitempty" json:"refund_reason,omitempty"`
	RefundedAt   *time.Time `bson:"refunded_at,omitempty" json:"refunded_at,omitempty"`

	ProcessedAt *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// RemainingBalance is the amount that can still be refunded.
func (p *Payment) RemainingBalance() float64 {
	return roundCents(p.Amount - p.RefundAmount)
}

func (p *Payment) CanRefund() bool {
	return p.Status == PaymentCompleted && p.RefundAmount < p.Amount
}
