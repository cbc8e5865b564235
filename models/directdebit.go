package models

import "time"

// DirectDebitCustomer caches the gateway customer code issued for a user.
type DirectDebitCustomer struct {
	UserID       string    `bson:"user_id" json:"user_id"`
	CustomerCode string    `bson:"customer_code" json:"customer_code"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// DirectDebitSchedule is the external payment plan bound to one booking.
type DirectDebitSchedule struct {
	ScheduleID         string         `bson:"schedule_id" json:"schedule_id"`
	BookingID          string         `bson:"booking_id" json:"booking_id"`
	CustomerCode       string         `bson:"customer_code" json:"customer_code"`
	Description        string         `bson:"description" json:"description"`
	UpfrontAmount      *float64       `bson:"upfront_amount,omitempty" json:"upfront_amount,omitempty"`
	UpfrontDate        *time.Time     `bson:"upfront_date,omitempty" json:"upfront_date,omitempty"`
	RecurringAmount    *float64       `bson:"recurring_amount,omitempty" json:"recurring_amount,omitempty"`
	RecurringStartDate *time.Time     `bson:"recurring_start_date,omitempty" json:"recurring_start_date,omitempty"`
	Frequency          string         `bson:"frequency,omitempty" json:"frequency,omitempty"`
	EndConditionAmount *float64       `bson:"end_condition_amount,omitempty" json:"end_condition_amount,omitempty"`
	Status             ScheduleStatus `bson:"status" json:"status"`
	AuthorizationURL   string         `bson:"authorization_url" json:"authorization_url"`
	CreatedAt          time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `bson:"updated_at" json:"updated_at"`
}

// DirectDebitInstallment is one expected or realized payment under a schedule.
// It is keyed by ExternalPaymentID, falling back to (ScheduleID, BookingID, DueDate).
type DirectDebitInstallment struct {
	ID                string                 `bson:"id" json:"id"`
	ScheduleID        string                 `bson:"schedule_id" json:"schedule_id"`
	BookingID         string                 `bson:"booking_id" json:"booking_id"`
	ExternalPaymentID string                 `bson:"external_payment_id,omitempty" json:"external_payment_id,omitempty"`
	DueDate           time.Time              `bson:"due_date" json:"due_date"`
	DueAmount         float64                `bson:"due_amount" json:"due_amount"`
	PaidDate          *time.Time             `bson:"paid_date,omitempty" json:"paid_date,omitempty"`
	PaidAmount        *float64               `bson:"paid_amount,omitempty" json:"paid_amount,omitempty"`
	Status            InstallmentStatus      `bson:"status" json:"status"`
	RawPayload        map[string]interface{} `bson:"raw_payload,omitempty" json:"-"`
	CreatedAt         time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time              `bson:"updated_at" json:"updated_at"`
}

// SettledAmount is what the installment actually collected, falling back to the amount due.
func (i *DirectDebitInstallment) SettledAmount() float64 {
	if i.PaidAmount != nil && *i.PaidAmount > 0 {
		return *i.PaidAmount
	}
	return i.DueAmount
}
