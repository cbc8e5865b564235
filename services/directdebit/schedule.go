package directdebit

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	bookingRepo "fleetrent/database/repository/booking"
	directDebitRepo "fleetrent/database/repository/directdebit"
	userRepo "fleetrent/database/repository/user"
	"fleetrent/models"
	"fleetrent/utils"

	"go.uber.org/zap"
)

const (
	primaryScheduleEndpoint  = "/v3/directdebits/schedules"
	fallbackScheduleEndpoint = "/v3/direct_debits"
	dateLayout               = "2006-01-02"
)

var validFrequencies = map[string]bool{"weekly": true, "fortnightly": true, "monthly": true}

// ScheduleRequest describes the payment plan to create. Upfront and recurring parts are each
// optional but at least one must be present.
type ScheduleRequest struct {
	BookingID          string
	CustomerCode       string
	Description        string
	UpfrontAmount      *float64
	UpfrontDate        *time.Time
	RecurringAmount    *float64
	RecurringStartDate *time.Time
	Frequency          string
	EndConditionAmount *float64
	ReminderDays       int
}

// PlanRequest is the schedule shape a staff member submits for a booking.
type PlanRequest struct {
	UpfrontAmount      *float64   `json:"upfront_amount"`
	UpfrontDate        *time.Time `json:"upfront_date"`
	RecurringAmount    *float64   `json:"recurring_amount"`
	RecurringStartDate *time.Time `json:"recurring_start_date"`
	Frequency          string     `json:"frequency"`
	EndConditionAmount *float64   `json:"end_condition_amount"`
	ReminderDays       int        `json:"reminder_days"`
	Description        string     `json:"description"`
}

// Manager creates, inspects and cancels direct-debit schedules.
type Manager struct {
	Client    *Client
	Schedules directDebitRepo.ScheduleRepository
	Bookings  bookingRepo.BookingRepository
	Users     userRepo.UserRepository
	Customers *CustomerService
	Logger    *zap.Logger
	Now       func() time.Time
}

func NewManager(
	client *Client,
	schedules directDebitRepo.ScheduleRepository,
	bookings bookingRepo.BookingRepository,
	users userRepo.UserRepository,
	customers *CustomerService,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		Client:    client,
		Schedules: schedules,
		Bookings:  bookings,
		Users:     users,
		Customers: customers,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *ScheduleRequest) validate() error {
	if r.BookingID == "" || r.CustomerCode == "" {
		return utils.NewValidationError("booking id and customer code are required")
	}
	hasUpfront := r.UpfrontAmount != nil && r.UpfrontDate != nil
	hasRecurring := r.RecurringAmount != nil && r.RecurringStartDate != nil && r.Frequency != ""
	if !hasUpfront && !hasRecurring {
		return utils.NewValidationError("a schedule needs an upfront payment or a recurring payment")
	}
	if hasUpfront && *r.UpfrontAmount <= 0 {
		return utils.NewValidationError("upfront amount must be positive")
	}
	if hasRecurring {
		if *r.RecurringAmount <= 0 {
			return utils.NewValidationError("recurring amount must be positive")
		}
		if !validFrequencies[strings.ToLower(r.Frequency)] {
			return utils.NewValidationError("frequency must be weekly, fortnightly or monthly")
		}
	}
	if r.EndConditionAmount != nil && *r.EndConditionAmount <= 0 {
		return utils.NewValidationError("end condition amount must be positive")
	}
	if r.ReminderDays < 0 {
		return utils.NewValidationError("reminder days cannot be negative")
	}
	return nil
}

func (r *ScheduleRequest) primaryPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"customer":     map[string]string{"customerCode": r.CustomerCode},
		"description":  r.Description,
		"reminderDays": r.ReminderDays,
	}
	if r.UpfrontAmount != nil && r.UpfrontDate != nil {
		payload["upfrontPayment"] = map[string]interface{}{
			"amount": *r.UpfrontAmount,
			"date":   r.UpfrontDate.Format(dateLayout),
		}
	}
	if r.RecurringAmount != nil && r.RecurringStartDate != nil && r.Frequency != "" {
		recurring := map[string]interface{}{
			"amount":    *r.RecurringAmount,
			"startDate": r.RecurringStartDate.Format(dateLayout),
			"frequency": strings.ToLower(r.Frequency),
		}
		if r.EndConditionAmount != nil {
			recurring["endCondition"] = map[string]interface{}{
				"type":  "totalAmount",
				"value": *r.EndConditionAmount,
			}
		}
		payload["recurringPayment"] = recurring
	}
	return payload
}

func (r *ScheduleRequest) fallbackPayload() map[string]interface{} {
	payload := map[string]interface{}{
		"Customer":      map[string]string{"Code": r.CustomerCode},
		"Description":   r.Description,
		"ReminderDays":  r.ReminderDays,
		"OnchargedFees": []interface{}{},
		"FailureOption": "3days",
	}
	if r.UpfrontAmount != nil && r.UpfrontDate != nil {
		payload["UpfrontAmount"] = *r.UpfrontAmount
		payload["UpfrontDate"] = r.UpfrontDate.Format(dateLayout)
	}
	if r.RecurringAmount != nil && r.RecurringStartDate != nil && r.Frequency != "" {
		payload["RecurringAmount"] = *r.RecurringAmount
		payload["RecurringDateStart"] = r.RecurringStartDate.Format(dateLayout)
		payload["Frequency"] = strings.ToLower(r.Frequency)
	}
	return payload
}

// CreateSchedule issues one create call to the gateway and stores the schedule before
// returning it. The alternate endpoint is tried only when the primary one definitively rejects
// the request; timeouts and transport failures are returned as they are, because the gateway may
// already hold the schedule and a blind retry could create a second one.
func (m *Manager) CreateSchedule(ctx context.Context, req ScheduleRequest) (*ScheduleRef, error) {
	req.Description = TruncateDescription(req.Description)
	if err := req.validate(); err != nil {
		return nil, err
	}

	booking, err := m.Bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status.IsTerminal() {
		return nil, utils.NewInvalidTransitionError("cannot create a payment schedule for a %s booking", booking.Status)
	}
	if existing, err := m.Schedules.GetByBookingID(ctx, booking.ID); err == nil && existing.Status != models.ScheduleCancelled {
		return &ScheduleRef{ScheduleID: existing.ScheduleID, AuthorizationURL: existing.AuthorizationURL}, nil
	} else if err != nil && !utils.IsKind(err, utils.KindNotFound) {
		return nil, err
	}

	resp, err := m.Client.Do(ctx, http.MethodPost, primaryScheduleEndpoint, req.primaryPayload())
	if err != nil {
		if !IsDefinitiveRejection(err) {
			return nil, err
		}
		m.Logger.Warn("primary schedule endpoint rejected the request, trying alternate",
			zap.String("bookingID", req.BookingID), zap.Error(err))
		resp, err = m.Client.Do(ctx, http.MethodPost, fallbackScheduleEndpoint, req.fallbackPayload())
		if err != nil {
			return nil, err
		}
	}

	ref := parseScheduleRef(resp)
	if ref.ScheduleID == "" {
		return nil, utils.NewGatewayError(0, false, "gateway schedule response carried no schedule id", nil)
	}

	now := m.Now()
	schedule := &models.DirectDebitSchedule{
		ScheduleID:         ref.ScheduleID,
		BookingID:          req.BookingID,
		CustomerCode:       req.CustomerCode,
		Description:        req.Description,
		UpfrontAmount:      req.UpfrontAmount,
		UpfrontDate:        req.UpfrontDate,
		RecurringAmount:    req.RecurringAmount,
		RecurringStartDate: req.RecurringStartDate,
		Frequency:          strings.ToLower(req.Frequency),
		EndConditionAmount: req.EndConditionAmount,
		Status:             models.SchedulePendingAuthorization,
		AuthorizationURL:   ref.AuthorizationURL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := m.Schedules.Create(ctx, schedule); err != nil && !utils.IsKind(err, utils.KindConflict) {
		m.Logger.Error("gateway schedule created but not stored",
			zap.String("bookingID", req.BookingID),
			zap.String("scheduleID", ref.ScheduleID),
			zap.Error(err))
		return nil, err
	}
	if err := m.Bookings.SetDirectDebitSchedule(ctx, req.BookingID, ref.ScheduleID); err != nil {
		m.Logger.Error("failed to link schedule to booking",
			zap.String("bookingID", req.BookingID),
			zap.String("scheduleID", ref.ScheduleID),
			zap.Error(err))
	}

	m.Logger.Info("direct debit schedule created",
		zap.String("bookingID", req.BookingID),
		zap.String("scheduleID", ref.ScheduleID))
	return &ref, nil
}

// CreateScheduleForBooking resolves the booking's customer at the gateway and creates the plan.
func (m *Manager) CreateScheduleForBooking(ctx context.Context, bookingID string, plan PlanRequest) (*ScheduleRef, error) {
	booking, err := m.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	user, err := m.Users.GetByID(ctx, booking.CustomerID)
	if err != nil {
		return nil, err
	}
	customer, err := m.Customers.GetOrCreateCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	description := plan.Description
	if description == "" {
		description = "Car rental " + booking.BookingNumber
	}
	reminderDays := plan.ReminderDays
	if reminderDays == 0 {
		reminderDays = DefaultReminderDays
	}
	return m.CreateSchedule(ctx, ScheduleRequest{
		BookingID:          booking.ID,
		CustomerCode:       customer.CustomerCode,
		Description:        description,
		UpfrontAmount:      plan.UpfrontAmount,
		UpfrontDate:        plan.UpfrontDate,
		RecurringAmount:    plan.RecurringAmount,
		RecurringStartDate: plan.RecurringStartDate,
		Frequency:          plan.Frequency,
		EndConditionAmount: plan.EndConditionAmount,
		ReminderDays:       reminderDays,
	})
}

func schedulePath(scheduleID string) string {
	return primaryScheduleEndpoint + "/" + url.PathEscape(scheduleID)
}

// GetScheduleStatus reads the schedule from the gateway. A locally pending schedule the gateway
// reports as active or authorised is marked active.
func (m *Manager) GetScheduleStatus(ctx context.Context, scheduleID string) (map[string]interface{}, error) {
	local, err := m.Schedules.GetByScheduleID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	remote, err := m.Client.GetWithRetry(ctx, schedulePath(scheduleID), customerLookupAttempts)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(utils.FirstString(remote, statusKeys...)) {
	case "active", "authorised", "authorized":
		if local.Status == models.SchedulePendingAuthorization {
			if err := m.Schedules.UpdateStatus(ctx, scheduleID, models.ScheduleActive); err != nil {
				m.Logger.Warn("failed to mark schedule active", zap.String("scheduleID", scheduleID), zap.Error(err))
			}
		}
	}
	return remote, nil
}

// CancelSchedule stops collection at the gateway and marks the local schedule cancelled.
// A schedule the gateway no longer knows is treated as already cancelled.
func (m *Manager) CancelSchedule(ctx context.Context, scheduleID string) error {
	_, err := m.Client.Do(ctx, http.MethodDelete, schedulePath(scheduleID), nil)
	if err != nil {
		var appErr *utils.AppError
		if !errors.As(err, &appErr) || appErr.Status != http.StatusNotFound {
			return err
		}
	}
	if err := m.Schedules.UpdateStatus(ctx, scheduleID, models.ScheduleCancelled); err != nil {
		return err
	}
	m.Logger.Info("direct debit schedule cancelled", zap.String("scheduleID", scheduleID))
	return nil
}

// CancelForBooking cancels the booking's live schedule, if it has one.
func (m *Manager) CancelForBooking(ctx context.Context, bookingID string) error {
	schedule, err := m.Schedules.GetByBookingID(ctx, bookingID)
	if err != nil {
		if utils.IsKind(err, utils.KindNotFound) {
			return nil
		}
		return err
	}
	if schedule.Status == models.ScheduleCancelled {
		return nil
	}
	return m.CancelSchedule(ctx, schedule.ScheduleID)
}
