package handlers

import (
	"context"
	"net/http"

	"fleetrent/services/directdebit"
	"fleetrent/utils"

	"github.com/gin-gonic/gin"
)

// ScheduleManager is the direct-debit surface the API needs.
type ScheduleManager interface {
	CreateScheduleForBooking(ctx context.Context, bookingID string, plan directdebit.PlanRequest) (*directdebit.ScheduleRef, error)
	GetScheduleStatus(ctx context.Context, scheduleID string) (map[string]interface{}, error)
	CancelSchedule(ctx context.Context, scheduleID string) error
}

type DirectDebitHandler struct {
	Schedules ScheduleManager
}

func NewDirectDebitHandler(schedules ScheduleManager) *DirectDebitHandler {
	return &DirectDebitHandler{Schedules: schedules}
}

// CreateScheduleHandler creates the payment plan for a booking and returns the authorization
// URL the payer must visit. A gateway timeout is reported as 503 and is safe to retry: the
// booking's existing schedule is returned if the first attempt went through.
func (h *DirectDebitHandler) CreateScheduleHandler(c *gin.Context) {
	var plan directdebit.PlanRequest
	if err := c.ShouldBindJSON(&plan); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "Invalid schedule request", err.Error())
		return
	}
	ref, err := h.Schedules.CreateScheduleForBooking(c.Request.Context(), c.Param("id"), plan)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"schedule_id":       ref.ScheduleID,
		"authorization_url": ref.AuthorizationURL,
	})
}

func (h *DirectDebitHandler) GetScheduleStatusHandler(c *gin.Context) {
	status, err := h.Schedules.GetScheduleStatus(c.Request.Context(), c.Param("scheduleID"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *DirectDebitHandler) CancelScheduleHandler(c *gin.Context) {
	if err := h.Schedules.CancelSchedule(c.Request.Context(), c.Param("scheduleID")); err != nil {
		utils.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule_id": c.Param("scheduleID"), "status": "cancelled"})
}
