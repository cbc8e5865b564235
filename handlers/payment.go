package handlers

import (
	"context"
	"net/http"

	"fleetrent/middleware"
	"fleetrent/models"
	"fleetrent/services/booking"
	"fleetrent/services/payment"
	"fleetrent/utils"

	"github.com/gin-gonic/gin"
)

// PaymentLedger is the payment surface the API needs.
type PaymentLedger interface {
	ListByBooking(ctx context.Context, bookingID string) ([]models.Payment, error)
	Refund(ctx context.Context, paymentID string, amount float64, reason string) (*models.Payment, error)
}

type PaymentHandler struct {
	Ledger   PaymentLedger
	Bookings booking.BookingService
}

func NewPaymentHandler(ledger PaymentLedger, bookings booking.BookingService) *PaymentHandler {
	return &PaymentHandler{Ledger: ledger, Bookings: bookings}
}

func (h *PaymentHandler) ListBookingPaymentsHandler(c *gin.Context) {
	ctx := c.Request.Context()
	bookingID := c.Param("id")
	if !middleware.IsStaff(c) {
		b, err := h.Bookings.GetBooking(ctx, bookingID)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		if b.CustomerID != c.GetString(middleware.ContextUserID) {
			utils.RespondError(c, utils.NewNotFoundError("booking %s not found", bookingID))
			return
		}
	}

	payments, err := h.Ledger.ListByBooking(ctx, bookingID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "count": len(payments)})
}

func (h *PaymentHandler) RefundPaymentHandler(c *gin.Context) {
	var req payment.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid refund request", err.Error())
		return
	}
	p, err := h.Ledger.Refund(c.Request.Context(), c.Param("id"), req.Amount, req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
