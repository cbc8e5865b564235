package tasks

import (
	"encoding/json"
	"time"

	"fleetrent/models"

	"github.com/hibiken/asynq"
)

const TypeBookingNotify = "booking:notify"

// NewBookingNotifyTask builds the task for one committed booking transition. The task id makes a
// repeated announcement of the same transition a no-op in the queue.
func NewBookingNotifyTask(payload models.BookingNotifyPayload) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingNotify, b)
	opts := []asynq.Option{
		asynq.TaskID(payload.BookingID + ":" + payload.Transition),
		asynq.MaxRetry(5),
		asynq.Retention(24 * time.Hour),
	}
	return task, opts, nil
}

// ParseBookingNotify decodes a booking:notify task body.
func ParseBookingNotify(task *asynq.Task) (models.BookingNotifyPayload, error) {
	var p models.BookingNotifyPayload
	err := json.Unmarshal(task.Payload(), &p)
	return p, err
}
