package notification

import (
	"context"
	"errors"
	"time"

	"fleetrent/models"
	"fleetrent/services/tasks"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TaskEnqueuer is the part of *asynq.Client the notifier needs.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsyncNotifier hands committed booking transitions to the background worker. It never blocks the
// caller on the collaborator and never fails the transition: enqueue errors are logged.
type AsyncNotifier struct {
	Queue  TaskEnqueuer
	Logger *zap.Logger
	Now    func() time.Time
}

func NewAsyncNotifier(queue TaskEnqueuer, logger *zap.Logger) *AsyncNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AsyncNotifier{
		Queue:  queue,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

func (n *AsyncNotifier) BookingTransitioned(ctx context.Context, b *models.Booking, transition string) {
	if n.Queue == nil || b == nil {
		return
	}
	task, opts, err := tasks.NewBookingNotifyTask(models.BookingNotifyPayload{
		BookingID:     b.ID,
		BookingNumber: b.BookingNumber,
		CustomerID:    b.CustomerID,
		Transition:    transition,
		Status:        b.Status,
		TotalAmount:   b.TotalAmount,
		OccurredAt:    n.Now(),
	})
	if err != nil {
		n.Logger.Error("failed to build notify task", zap.String("bookingID", b.ID), zap.Error(err))
		return
	}

	// the request context may already be done once the response is written
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()
	if _, err := n.Queue.EnqueueContext(enqueueCtx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			n.Logger.Debug("booking notification already queued",
				zap.String("bookingID", b.ID), zap.String("transition", transition))
			return
		}
		n.Logger.Warn("failed to enqueue booking notification",
			zap.String("bookingID", b.ID),
			zap.String("transition", transition),
			zap.Error(err))
		return
	}
	n.Logger.Info("booking notification queued",
		zap.String("bookingID", b.ID), zap.String("transition", transition))
}
