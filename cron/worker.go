package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fleetrent/config"
	"fleetrent/models"
	"fleetrent/services/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// QueueRedisOpt is the asynq connection shared by the notifier client and the worker.
func QueueRedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}
}

// InitNotificationWorker runs the booking notification worker in background. Each task is forwarded
// to the invoicing hook when one is configured and logged otherwise.
func InitNotificationWorker(ctx context.Context, logger *zap.Logger) {
	srv := asynq.NewServer(
		QueueRedisOpt(),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	hook := &InvoiceHook{
		URL:    config.AppConfig.InvoiceHookURL,
		Client: &http.Client{Timeout: 10 * time.Second},
		Logger: logger,
	}
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeBookingNotify, hook.HandleBookingNotify)

	go monitorRedisConnection(ctx, logger)

	go func() {
		logger.Info("starting notification worker")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			err := srv.Run(mux)
			if err == nil {
				return
			}
			logger.Error("notification worker failed to start",
				zap.Int("attempt", attempts), zap.Int("maxAttempts", maxAttempts), zap.Error(err))
			if attempts == maxAttempts {
				logger.Error("notification worker gave up; booking notifications stay queued")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(attempts*2) * time.Second):
			}
		}
	}()

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()
}

// InvoiceHook delivers booking notifications to the invoicing collaborator.
type InvoiceHook struct {
	URL    string
	Client *http.Client
	Logger *zap.Logger
}

func (h *InvoiceHook) HandleBookingNotify(ctx context.Context, task *asynq.Task) error {
	p, err := tasks.ParseBookingNotify(task)
	if err != nil {
		h.Logger.Error("invalid booking notification payload", zap.Error(err))
		// malformed payloads never succeed on retry
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	h.Logger.Info("booking notification",
		zap.String("bookingID", p.BookingID),
		zap.String("bookingNumber", p.BookingNumber),
		zap.String("transition", p.Transition),
		zap.Float64("total", p.TotalAmount))

	if h.URL == "" {
		return nil
	}
	return h.post(ctx, p)
}

func (h *InvoiceHook) post(ctx context.Context, p models.BookingNotifyPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		h.Logger.Warn("invoice hook unreachable", zap.String("bookingID", p.BookingID), zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("invoice hook returned %d", resp.StatusCode)
	default:
		h.Logger.Error("invoice hook rejected notification",
			zap.String("bookingID", p.BookingID), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("invoice hook returned %d: %w", resp.StatusCode, asynq.SkipRetry)
	}
}

// monitorRedisConnection pings the queue Redis periodically to surface failures at runtime.
func monitorRedisConnection(ctx context.Context, logger *zap.Logger) {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer client.Close()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Ping(ctx).Err(); err != nil {
				logger.Warn("queue redis connection lost", zap.Error(err))
			}
		}
	}
}
