package reconcile

import (
	"fmt"

	"fleetrent/models"
)

// ReconcileError marks one event of a batch that could not be applied.
type ReconcileError struct {
	Index   int
	EventID string
	Err     error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("event %d (%s): %v", e.Index, e.EventID, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// Result is the outcome of one event: the installment it converged to, or an error.
type Result struct {
	Index            int
	EventID          string
	Installment      *models.DirectDebitInstallment
	PaymentID        string
	PaymentCreated   bool
	BookingConfirmed bool
	Err              *ReconcileError
}

func (r Result) OK() bool {
	return r.Err == nil
}

// BatchReport aggregates the results of one delivery.
type BatchReport struct {
	Results         []Result
	Succeeded       int
	Failed          int
	PaymentsCreated int
}

func (b *BatchReport) add(r Result) {
	b.Results = append(b.Results, r)
	if r.OK() {
		b.Succeeded++
	} else {
		b.Failed++
	}
	if r.PaymentCreated {
		b.PaymentsCreated++
	}
}
