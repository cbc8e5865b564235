package models

import (
	"fmt"
	"strings"
)

// BookingStatus is the lifecycle state of a rental booking.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no_show"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s BookingStatus) IsTerminal() bool {
	return s == BookingCompleted || s == BookingCancelled || s == BookingNoShow
}

// CarStatus is the bookable state of a vehicle.
type CarStatus string

const (
	CarAvailable    CarStatus = "available"
	CarBooked       CarStatus = "booked"
	CarMaintenance  CarStatus = "maintenance"
	CarOutOfService CarStatus = "out_of_service"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

type PaymentMethod string

const (
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodDebitCard    PaymentMethod = "debit_card"
	MethodPaypal       PaymentMethod = "paypal"
	MethodStripe       PaymentMethod = "stripe"
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodDirectDebit  PaymentMethod = "direct_debit"
)

type ScheduleStatus string

const (
	SchedulePendingAuthorization ScheduleStatus = "pending_authorization"
	ScheduleActive               ScheduleStatus = "active"
	ScheduleCancelled            ScheduleStatus = "cancelled"
)

type InstallmentStatus string

const (
	InstallmentPending   InstallmentStatus = "pending"
	InstallmentCompleted InstallmentStatus = "completed"
	InstallmentOverdue   InstallmentStatus = "overdue"
)

// legacy spellings found in older records, keyed by normalized form.
var legacyBookingStatuses = map[string]BookingStatus{
	"pending":     BookingPending,
	"new":         BookingPending,
	"awaiting":    BookingPending,
	"confirmed":   BookingConfirmed,
	"approved":    BookingConfirmed,
	"in_progress": BookingInProgress,
	"inprogress":  BookingInProgress,
	"active":      BookingInProgress,
	"ongoing":     BookingInProgress,
	"started":     BookingInProgress,
	"completed":   BookingCompleted,
	"complete":    BookingCompleted,
	"returned":    BookingCompleted,
	"finished":    BookingCompleted,
	"cancelled":   BookingCancelled,
	"canceled":    BookingCancelled,
	"no_show":     BookingNoShow,
	"noshow":      BookingNoShow,
}

var legacyCarStatuses = map[string]CarStatus{
	"available":      CarAvailable,
	"free":           CarAvailable,
	"booked":         CarBooked,
	"rented":         CarBooked,
	"reserved":       CarBooked,
	"maintenance":    CarMaintenance,
	"in_service":     CarMaintenance,
	"out_of_service": CarOutOfService,
	"outofservice":   CarOutOfService,
	"retired":        CarOutOfService,
	"inactive":       CarOutOfService,
}

var legacyPaymentStatuses = map[string]PaymentStatus{
	"pending":    PaymentPending,
	"initiated":  PaymentPending,
	"processing": PaymentProcessing,
	"completed":  PaymentCompleted,
	"success":    PaymentCompleted,
	"successful": PaymentCompleted,
	"paid":       PaymentCompleted,
	"failed":     PaymentFailed,
	"refunded":   PaymentRefunded,
	"cancelled":  PaymentCancelled,
	"canceled":   PaymentCancelled,
}

// normalizeLegacy lower-cases a stored value and folds spaces and hyphens to underscores,
// so "IN-PROGRESS", "In Progress" and "in_progress" compare equal.
func normalizeLegacy(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	// BookingStatus.IN_PROGRESS style enum names
	s = strings.TrimPrefix(s, "bookingstatus.")
	s = strings.TrimPrefix(s, "carstatus.")
	s = strings.TrimPrefix(s, "paymentstatus.")
	return s
}

// MigrateBookingStatus maps any historical booking status spelling to the current enum.
func MigrateBookingStatus(raw string) (BookingStatus, error) {
	if s, ok := legacyBookingStatuses[normalizeLegacy(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}

// MigrateCarStatus maps any historical car status spelling to the current enum.
func MigrateCarStatus(raw string) (CarStatus, error) {
	if s, ok := legacyCarStatuses[normalizeLegacy(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown car status %q", raw)
}

// MigratePaymentStatus maps any historical payment status spelling to the current enum.
func MigratePaymentStatus(raw string) (PaymentStatus, error) {
	if s, ok := legacyPaymentStatuses[normalizeLegacy(raw)]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown payment status %q", raw)
}
