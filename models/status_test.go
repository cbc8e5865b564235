package models

import "testing"

func TestMigrateBookingStatus(t *testing.T) {
	cases := map[string]BookingStatus{
		"PENDING":                   BookingPending,
		"in-progress":               BookingInProgress,
		"In Progress":               BookingInProgress,
		"BookingStatus.IN_PROGRESS": BookingInProgress,
		"active":                    BookingInProgress,
		"canceled":                  BookingCancelled,
		"noshow":                    BookingNoShow,
		" completed ":               BookingCompleted,
	}
	for raw, want := range cases {
		got, err := MigrateBookingStatus(raw)
		if err != nil {
			t.Errorf("MigrateBookingStatus(%q): %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("MigrateBookingStatus(%q) = %s, want %s", raw, got, want)
		}
	}
	if _, err := MigrateBookingStatus("teleported"); err == nil {
		t.Error("unknown status was accepted")
	}
}

func TestMigrateCarAndPaymentStatus(t *testing.T) {
	if got, err := MigrateCarStatus("Out-Of-Service"); err != nil || got != CarOutOfService {
		t.Errorf("MigrateCarStatus = %s, %v; want out_of_service", got, err)
	}
	if got, err := MigrateCarStatus("rented"); err != nil || got != CarBooked {
		t.Errorf("MigrateCarStatus(rented) = %s, %v; want booked", got, err)
	}
	if got, err := MigratePaymentStatus("SUCCESS"); err != nil || got != PaymentCompleted {
		t.Errorf("MigratePaymentStatus(SUCCESS) = %s, %v; want completed", got, err)
	}
	if got, err := MigratePaymentStatus("canceled"); err != nil || got != PaymentCancelled {
		t.Errorf("MigratePaymentStatus(canceled) = %s, %v; want cancelled", got, err)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []BookingStatus{BookingCompleted, BookingCancelled, BookingNoShow} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []BookingStatus{BookingPending, BookingConfirmed, BookingInProgress} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
