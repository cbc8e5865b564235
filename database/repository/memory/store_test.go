package memory

import (
	"context"
	"testing"
	"time"

	"fleetrent/models"
	"fleetrent/utils"
)

func TestInstallmentDueDateKeyIsUnique(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	due := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	first := &models.DirectDebitInstallment{ID: "i-1", ScheduleID: "SCH-1", BookingID: "b-1",
		ExternalPaymentID: "sched:SCH-1|due:2026-03-05", DueDate: due, Status: models.InstallmentPending}
	if err := store.Installments().Create(ctx, first); err != nil {
		t.Fatalf("first Create: %v", err)
	}

	second := &models.DirectDebitInstallment{ID: "i-2", ScheduleID: "SCH-1", BookingID: "b-1",
		ExternalPaymentID: "pay_1", DueDate: due, Status: models.InstallmentCompleted}
	if err := store.Installments().Create(ctx, second); !utils.IsKind(err, utils.KindConflict) {
		t.Fatalf("second Create err = %v, want conflict", err)
	}

	other := &models.DirectDebitInstallment{ID: "i-3", ScheduleID: "SCH-1", BookingID: "b-1",
		ExternalPaymentID: "pay_2", DueDate: due.AddDate(0, 1, 0), Status: models.InstallmentPending}
	if err := store.Installments().Create(ctx, other); err != nil {
		t.Fatalf("next month Create: %v", err)
	}
	other.DueDate = due
	if err := store.Installments().Update(ctx, other); !utils.IsKind(err, utils.KindConflict) {
		t.Errorf("Update onto a taken due date err = %v, want conflict", err)
	}
	if got := store.InstallmentCount(); got != 2 {
		t.Errorf("installments = %d, want 2", got)
	}
}
