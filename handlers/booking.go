package handlers

import (
	"net/http"
	"strconv"
	"strings"

	bookingRepo "fleetrent/database/repository/booking"
	"fleetrent/middleware"
	"fleetrent/models"
	"fleetrent/services/booking"
	"fleetrent/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxListLimit = 200

// BookingHandler exposes the booking state machine over HTTP.
type BookingHandler struct {
	Service booking.BookingService
}

func NewBookingHandler(svc booking.BookingService) *BookingHandler {
	return &BookingHandler{Service: svc}
}

// loadOwned fetches a booking the caller may act on. Customers only see their own bookings;
// anything else is reported as not found.
func (h *BookingHandler) loadOwned(c *gin.Context) (*models.Booking, bool) {
	b, err := h.Service.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return nil, false
	}
	if !middleware.IsStaff(c) && b.CustomerID != c.GetString(middleware.ContextUserID) {
		utils.RespondError(c, utils.NewNotFoundError("booking %s not found", c.Param("id")))
		return nil, false
	}
	return b, true
}

func (h *BookingHandler) CreateBookingHandler(c *gin.Context) {
	var req booking.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid booking request", err.Error())
		return
	}
	if !middleware.IsStaff(c) {
		userID := c.GetString(middleware.ContextUserID)
		if req.CustomerID != "" && req.CustomerID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Cannot book on behalf of another customer"})
			return
		}
		req.CustomerID = userID
	}

	b, err := h.Service.CreateBooking(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) GetBookingHandler(c *gin.Context) {
	b, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ListBookingsHandler(c *gin.Context) {
	filter := bookingRepo.BookingFilter{
		CustomerID: c.Query("customer_id"),
		CarID:      c.Query("car_id"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status, err := models.MigrateBookingStatus(s)
			if err != nil {
				utils.JSONError(c, http.StatusBadRequest, "Invalid status filter", err.Error())
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if raw := c.Query("needs_reassignment"); raw != "" {
		flag, err := strconv.ParseBool(raw)
		if err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid needs_reassignment filter", raw)
			return
		}
		filter.NeedsCarReassignment = flag
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			utils.JSONError(c, http.StatusBadRequest, "Invalid limit", raw)
			return
		}
		if limit > maxListLimit {
			limit = maxListLimit
		}
		filter.Limit = limit
	}
	if !middleware.IsStaff(c) {
		filter.CustomerID = c.GetString(middleware.ContextUserID)
	}

	bookings, err := h.Service.ListBookings(c.Request.Context(), filter)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings, "count": len(bookings)})
}

// ConfirmBookingHandler is the manual confirmation used by staff. Customer bookings are
// otherwise confirmed by their first collected payment.
func (h *BookingHandler) ConfirmBookingHandler(c *gin.Context) {
	b, err := h.Service.ConfirmBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// PickupBookingHandler records the handover. The body is optional.
func (h *BookingHandler) PickupBookingHandler(c *gin.Context) {
	var req booking.HandoverRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid handover request", err.Error())
			return
		}
	}
	req.CompletedBy = c.GetString(middleware.ContextUserID)

	b, err := h.Service.StartRental(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) ReturnBookingHandler(c *gin.Context) {
	var req booking.ReturnRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid return request", err.Error())
			return
		}
	}
	req.CompletedBy = c.GetString(middleware.ContextUserID)

	b, err := h.Service.CompleteRental(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) CancelBookingHandler(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.JSONError(c, http.StatusBadRequest, "Invalid cancellation request", err.Error())
			return
		}
	}
	if _, ok := h.loadOwned(c); !ok {
		return
	}

	b, err := h.Service.CancelBooking(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	getLogger(c).Info("booking cancelled via API",
		zap.String("bookingID", b.ID), zap.String("by", c.GetString(middleware.ContextUserID)))
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) NoShowBookingHandler(c *gin.Context) {
	b, err := h.Service.MarkNoShow(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
