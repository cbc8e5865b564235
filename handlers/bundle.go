package handlers

import (
	"github.com/gin-gonic/gin"
)

// HandlerBundle groups all endpoint handlers into one struct.
type HandlerBundle struct {
	// Booking endpoints
	CreateBookingHandler  gin.HandlerFunc
	GetBookingHandler     gin.HandlerFunc
	ListBookingsHandler   gin.HandlerFunc
	ConfirmBookingHandler gin.HandlerFunc
	PickupBookingHandler  gin.HandlerFunc
	ReturnBookingHandler  gin.HandlerFunc
	CancelBookingHandler  gin.HandlerFunc
	NoShowBookingHandler  gin.HandlerFunc

	// Direct debit endpoints
	CreateScheduleHandler    gin.HandlerFunc
	GetScheduleStatusHandler gin.HandlerFunc
	CancelScheduleHandler    gin.HandlerFunc

	// Payment endpoints
	ListBookingPaymentsHandler gin.HandlerFunc
	RefundPaymentHandler       gin.HandlerFunc

	// Gateway webhook
	DirectDebitWebhookHandler gin.HandlerFunc
	WebhookHealthHandler      gin.HandlerFunc
}
