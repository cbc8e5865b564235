package models

import (
	"math"
	"time"
)

// Booking is one rental reservation and its full lifecycle record.
type Booking struct {
	ID            string `bson:"id" json:"id"`
	BookingNumber string `bson:"booking_number" json:"booking_number"`
	CustomerID    string `bson:"customer_id" json:"customer_id"`
	CarID         string `bson:"car_id" json:"car_id"`

	PickupDate       time.Time  `bson:"pickup_date" json:"pickup_date"`
	ReturnDate       time.Time  `bson:"return_date" json:"return_date"`
	ActualPickupDate *time.Time `bson:"actual_pickup_date,omitempty" json:"actual_pickup_date,omitempty"`
	ActualReturnDate *time.Time `bson:"actual_return_date,omitempty" json:"actual_return_date,omitempty"`
	PickupLocation   string     `bson:"pickup_location" json:"pickup_location"`
	ReturnLocation   string     `bson:"return_location" json:"return_location"`

	// Pricing breakdown.
	DailyRate         float64 `bson:"daily_rate" json:"daily_rate"`
	TotalDays         int     `bson:"total_days" json:"total_days"`
	Subtotal          float64 `bson:"subtotal" json:"subtotal"`
	TaxAmount         float64 `bson:"tax_amount" json:"tax_amount"`
	DiscountAmount    float64 `bson:"discount_amount" json:"discount_amount"`
	AdditionalCharges float64 `bson:"additional_charges" json:"additional_charges"`
	TotalAmount       float64 `bson:"total_amount" json:"total_amount"`
	DepositAmount     float64 `bson:"deposit_amount" json:"deposit_amount"`

	Status BookingStatus `bson:"status" json:"status"`

	CancelledAt        *time.Time `bson:"cancelled_at,omitempty" json:"cancelled_at,omitempty"`
	CancellationReason string     `bson:"cancellation_reason,omitempty" json:"cancellation_reason,omitempty"`
	CancellationFee    float64    `bson:"cancellation_fee" json:"cancellation_fee"`

	// Handover and return.
	PickupOdometer      *int       `bson:"pickup_odometer,omitempty" json:"pickup_odometer,omitempty"`
	ReturnOdometer      *int       `bson:"return_odometer,omitempty" json:"return_odometer,omitempty"`
	HandoverCompletedAt *time.Time `bson:"handover_completed_at,omitempty" json:"handover_completed_at,omitempty"`
	HandoverCompletedBy string     `bson:"handover_completed_by,omitempty" json:"handover_completed_by,omitempty"`
	ReturnCompletedAt   *time.Time `bson:"return_completed_at,omitempty" json:"return_completed_at,omitempty"`
	ReturnCompletedBy   string     `bson:"return_completed_by,omitempty" json:"return_completed_by,omitempty"`

	DirectDebitScheduleID string `bson:"direct_debit_schedule_id,omitempty" json:"direct_debit_schedule_id,omitempty"`

	// NeedsCarReassignment marks a booking confirmed by a payment after its car had been given
	// to another booking. Staff must move it to another car.
	NeedsCarReassignment bool `bson:"needs_car_reassignment,omitempty" json:"needs_car_reassignment,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// RecalculateTotal restores total = subtotal + tax - discount + additional charges.
// Call it after every charge mutation.
func (b *Booking) RecalculateTotal() {
	b.TotalAmount = roundCents(b.Subtotal + b.TaxAmount - b.DiscountAmount + b.AdditionalCharges)
}

// AddCharge adds an extra charge (late fee, damage, fuel) and keeps the total consistent.
func (b *Booking) AddCharge(amount float64) {
	b.AdditionalCharges = roundCents(b.AdditionalCharges + amount)
	b.RecalculateTotal()
}

// IsActive reports whether the booking currently holds its car.
func (b *Booking) IsActive() bool {
	return b.Status == BookingConfirmed || b.Status == BookingInProgress
}

// CanCancel reports whether the booking may still be cancelled.
func (b *Booking) CanCancel() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// IsPastDue reports whether an in-progress booking has passed its return date.
func (b *Booking) IsPastDue(now time.Time) bool {
	return b.Status == BookingInProgress && now.After(b.ReturnDate)
}

// PickupOverdue reports whether a confirmed booking should have been picked up already.
func (b *Booking) PickupOverdue(now time.Time) bool {
	return b.Status == BookingConfirmed && now.After(b.PickupDate)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
