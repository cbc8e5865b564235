package models

import "time"

// BookingNotifyPayload is the task body handed to the invoicing and notification collaborator.
type BookingNotifyPayload struct {
	BookingID     string        `json:"booking_id"`
	BookingNumber string        `json:"booking_number"`
	CustomerID    string        `json:"customer_id"`
	Transition    string        `json:"transition"`
	Status        BookingStatus `json:"status"`
	TotalAmount   float64       `json:"total_amount"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
