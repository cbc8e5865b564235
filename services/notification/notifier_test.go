package notification

import (
	"context"
	"errors"
	"testing"

	"fleetrent/models"
	"fleetrent/services/tasks"

	"github.com/hibiken/asynq"
)

type recordingQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *recordingQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func TestBookingTransitionIsQueued(t *testing.T) {
	q := &recordingQueue{}
	n := NewAsyncNotifier(q, nil)

	n.BookingTransitioned(context.Background(), &models.Booking{
		ID: "b1", BookingNumber: "BK20260301ABCD", CustomerID: "u1",
		Status: models.BookingConfirmed, TotalAmount: 264,
	}, "confirmed")

	if len(q.tasks) != 1 {
		t.Fatalf("queued %d tasks, want 1", len(q.tasks))
	}
	if q.tasks[0].Type() != tasks.TypeBookingNotify {
		t.Errorf("task type = %s, want %s", q.tasks[0].Type(), tasks.TypeBookingNotify)
	}
	p, err := tasks.ParseBookingNotify(q.tasks[0])
	if err != nil {
		t.Fatalf("ParseBookingNotify: %v", err)
	}
	if p.BookingNumber != "BK20260301ABCD" || p.Transition != "confirmed" || p.TotalAmount != 264 {
		t.Errorf("payload = %+v", p)
	}
}

func TestEnqueueFailureIsSwallowed(t *testing.T) {
	q := &recordingQueue{err: errors.New("redis: connection refused")}
	n := NewAsyncNotifier(q, nil)

	// must not panic or block
	n.BookingTransitioned(context.Background(), &models.Booking{ID: "b1"}, "completed")
	NewAsyncNotifier(nil, nil).BookingTransitioned(context.Background(), &models.Booking{ID: "b1"}, "completed")
}
