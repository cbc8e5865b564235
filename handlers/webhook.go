package handlers

import (
	"context"
	"net/http"
	"time"

	"fleetrent/services/reconcile"
	"fleetrent/services/webhook"
	"fleetrent/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// WebhookHandler is the gateway's delivery endpoint. It answers only 202, 400, 401 or 403:
// the response depends on the signature and the batch shape, never on reconciliation.
type WebhookHandler struct {
	Secret          []byte
	SignatureHeader string
	// Dispatch hands a validated batch to reconciliation after the response is decided.
	Dispatch func(events []webhook.Event)
	Logger   *zap.Logger
}

// NewWebhookHandler reconciles accepted batches in the background, each bounded by timeout.
func NewWebhookHandler(secret, header string, reconciler *reconcile.Reconciler, timeout time.Duration, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &WebhookHandler{
		Secret:          []byte(secret),
		SignatureHeader: header,
		Logger:          logger,
		Dispatch: func(events []webhook.Event) {
			go func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("webhook reconciliation panicked", zap.Any("panic", r))
					}
				}()
				ctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				reconciler.ReconcileBatch(ctx, events)
			}()
		},
	}
}

func (h *WebhookHandler) DirectDebitWebhookHandler(c *gin.Context) {
	body, err := webhook.ReadVerified(h.Secret, c.Request.Body, c.GetHeader(h.SignatureHeader), maxWebhookBody)
	if err != nil {
		h.reject(c, err)
		return
	}

	events, err := webhook.ParseBatch(body)
	if err != nil {
		h.reject(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "events": len(events)})
	h.Logger.Info("webhook batch accepted", zap.Int("events", len(events)))
	if h.Dispatch != nil {
		h.Dispatch(events)
	}
}

// reject answers 400, 401 or 403 for a delivery that failed a gate.
func (h *WebhookHandler) reject(c *gin.Context, err error) {
	status := utils.StatusFor(err)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
	default:
		status = http.StatusBadRequest
	}
	h.Logger.Warn("webhook delivery rejected", zap.Int("status", status), zap.Error(err))
	c.AbortWithStatusJSON(status, utils.ErrorResponse{Message: utils.MessageFor(err), Code: string(utils.KindOf(err))})
}

func (h *WebhookHandler) WebhookHealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
