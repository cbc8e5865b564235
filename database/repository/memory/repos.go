package memory

import (
	"context"
	"sort"
	"time"

	bookingRepo "fleetrent/database/repository/booking"
	"fleetrent/models"
	"fleetrent/utils"
)

type bookingStore struct{ s *Store }

func (r *bookingStore) Create(_ context.Context, booking *models.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[booking.ID]; ok {
		return utils.NewConflictError("booking "+booking.ID+" already exists", nil)
	}
	for _, b := range r.s.bookings {
		if b.BookingNumber == booking.BookingNumber {
			return utils.NewConflictError("booking "+booking.BookingNumber+" already exists", nil)
		}
	}
	r.s.bookings[booking.ID] = *booking
	return nil
}

func (r *bookingStore) GetByID(_ context.Context, id string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, utils.NewNotFoundError("booking %s not found", id)
	}
	return &b, nil
}

func (r *bookingStore) GetByNumber(_ context.Context, number string) (*models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.BookingNumber == number {
			found := b
			return &found, nil
		}
	}
	return nil, utils.NewNotFoundError("booking %s not found", number)
}

func hasStatus(status models.BookingStatus, statuses []models.BookingStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

func (r *bookingStore) List(_ context.Context, filter bookingRepo.BookingFilter) ([]models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range r.s.bookings {
		if filter.CustomerID != "" && b.CustomerID != filter.CustomerID {
			continue
		}
		if filter.CarID != "" && b.CarID != filter.CarID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(b.Status, filter.Statuses) {
			continue
		}
		if filter.NeedsCarReassignment && !b.NeedsCarReassignment {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *bookingStore) FindOverlapping(_ context.Context, carID string, from, to time.Time, statuses []models.BookingStatus, excludeID string) ([]models.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Booking{}
	for _, b := range r.s.bookings {
		if b.CarID != carID || b.ID == excludeID || !hasStatus(b.Status, statuses) {
			continue
		}
		if b.PickupDate.Before(to) && b.ReturnDate.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *bookingStore) Update(_ context.Context, booking *models.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[booking.ID]; !ok {
		return utils.NewNotFoundError("booking %s not found", booking.ID)
	}
	r.s.bookings[booking.ID] = *booking
	return nil
}

func (r *bookingStore) UpdateIfStatus(_ context.Context, booking *models.Booking, expected models.BookingStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.bookings[booking.ID]
	if !ok || current.Status != expected {
		return false, nil
	}
	r.s.bookings[booking.ID] = *booking
	return true, nil
}

func (r *bookingStore) SetDirectDebitSchedule(_ context.Context, bookingID, scheduleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[bookingID]
	if !ok {
		return utils.NewNotFoundError("booking %s not found", bookingID)
	}
	b.DirectDebitScheduleID = scheduleID
	b.UpdatedAt = time.Now().UTC()
	r.s.bookings[bookingID] = b
	return nil
}

type carStore struct{ s *Store }

func (r *carStore) GetByID(_ context.Context, id string) (*models.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cars[id]
	if !ok {
		return nil, utils.NewNotFoundError("car %s not found", id)
	}
	return &c, nil
}

func (r *carStore) SetStatusIf(_ context.Context, id string, expected, next models.CarStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cars[id]
	if !ok || c.Status != expected {
		return false, nil
	}
	c.Status = next
	c.UpdatedAt = time.Now().UTC()
	r.s.cars[id] = c
	return true, nil
}

type userStore struct{ s *Store }

func (r *userStore) GetByID(_ context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, utils.NewNotFoundError("user %s not found", id)
	}
	return &u, nil
}

type paymentStore struct{ s *Store }

func (r *paymentStore) Create(_ context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.FailPaymentCreate; err != nil {
		r.s.FailPaymentCreate = nil
		return err
	}
	for _, p := range r.s.payments {
		if p.ID == payment.ID || p.TransactionID == payment.TransactionID {
			return utils.NewConflictError("payment "+payment.TransactionID+" already exists", nil)
		}
		if payment.GatewayTransactionID != nil && p.GatewayTransactionID != nil &&
			p.BookingID == payment.BookingID && p.Gateway == payment.Gateway &&
			*p.GatewayTransactionID == *payment.GatewayTransactionID {
			return utils.NewConflictError("payment for gateway transaction "+*payment.GatewayTransactionID+" already exists", nil)
		}
	}
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *paymentStore) GetByID(_ context.Context, id string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, utils.NewNotFoundError("payment %s not found", id)
	}
	return &p, nil
}

func (r *paymentStore) FindByGatewayTransaction(_ context.Context, bookingID, gateway, gatewayTxnID string) (*models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.BookingID == bookingID && p.Gateway == gateway && p.GatewayTransactionID != nil && *p.GatewayTransactionID == gatewayTxnID {
			found := p
			return &found, nil
		}
	}
	return nil, nil
}

func (r *paymentStore) ListByBooking(_ context.Context, bookingID string) ([]models.Payment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Payment{}
	for _, p := range r.s.payments {
		if p.BookingID == bookingID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *paymentStore) Update(_ context.Context, payment *models.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[payment.ID]; !ok {
		return utils.NewNotFoundError("payment %s not found", payment.ID)
	}
	r.s.payments[payment.ID] = *payment
	return nil
}

type scheduleStore struct{ s *Store }

func (r *scheduleStore) Create(_ context.Context, schedule *models.DirectDebitSchedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.schedules[schedule.ScheduleID]; ok {
		return utils.NewConflictError("schedule "+schedule.ScheduleID+" already exists", nil)
	}
	r.s.schedules[schedule.ScheduleID] = *schedule
	return nil
}

func (r *scheduleStore) GetByScheduleID(_ context.Context, scheduleID string) (*models.DirectDebitSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.schedules[scheduleID]
	if !ok {
		return nil, utils.NewNotFoundError("schedule %s not found", scheduleID)
	}
	return &sc, nil
}

func (r *scheduleStore) GetByBookingID(_ context.Context, bookingID string) (*models.DirectDebitSchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *models.DirectDebitSchedule
	for _, sc := range r.s.schedules {
		if sc.BookingID != bookingID {
			continue
		}
		if latest == nil || sc.CreatedAt.After(latest.CreatedAt) {
			found := sc
			latest = &found
		}
	}
	if latest == nil {
		return nil, utils.NewNotFoundError("no schedule for booking %s", bookingID)
	}
	return latest, nil
}

func (r *scheduleStore) UpdateStatus(_ context.Context, scheduleID string, status models.ScheduleStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sc, ok := r.s.schedules[scheduleID]
	if !ok {
		return utils.NewNotFoundError("schedule %s not found", scheduleID)
	}
	sc.Status = status
	sc.UpdatedAt = time.Now().UTC()
	r.s.schedules[scheduleID] = sc
	return nil
}

type installmentStore struct{ s *Store }

func (r *installmentStore) FindByExternalPaymentID(_ context.Context, externalPaymentID string) (*models.DirectDebitInstallment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.installments {
		if i.ExternalPaymentID != "" && i.ExternalPaymentID == externalPaymentID {
			found := i
			return &found, nil
		}
	}
	return nil, nil
}

func (r *installmentStore) FindByScheduleDue(_ context.Context, scheduleID, bookingID string, dueDate time.Time) (*models.DirectDebitInstallment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.installments {
		if i.ScheduleID == scheduleID && i.BookingID == bookingID && i.DueDate.Equal(dueDate) {
			found := i
			return &found, nil
		}
	}
	return nil, nil
}

func (r *installmentStore) Create(_ context.Context, installment *models.DirectDebitInstallment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, i := range r.s.installments {
		if i.ID == installment.ID || sameInstallmentKey(i, *installment) {
			return utils.NewConflictError("installment "+installment.ExternalPaymentID+" already exists", nil)
		}
	}
	r.s.installments[installment.ID] = *installment
	return nil
}

// sameInstallmentKey mirrors the two unique installment indexes.
func sameInstallmentKey(a, b models.DirectDebitInstallment) bool {
	if b.ExternalPaymentID != "" && a.ExternalPaymentID == b.ExternalPaymentID {
		return true
	}
	return a.ScheduleID == b.ScheduleID && a.BookingID == b.BookingID && a.DueDate.Equal(b.DueDate)
}

func (r *installmentStore) Update(_ context.Context, installment *models.DirectDebitInstallment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.installments[installment.ID]; !ok {
		return utils.NewNotFoundError("installment %s not found", installment.ID)
	}
	for id, i := range r.s.installments {
		if id != installment.ID && sameInstallmentKey(i, *installment) {
			return utils.NewConflictError("installment "+installment.ExternalPaymentID+" already exists", nil)
		}
	}
	r.s.installments[installment.ID] = *installment
	return nil
}

func (r *installmentStore) ListBySchedule(_ context.Context, scheduleID string) ([]models.DirectDebitInstallment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.DirectDebitInstallment{}
	for _, i := range r.s.installments {
		if i.ScheduleID == scheduleID {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DueDate.Before(out[b].DueDate) })
	return out, nil
}

type customerStore struct{ s *Store }

func (r *customerStore) GetByUserID(_ context.Context, userID string) (*models.DirectDebitCustomer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.customers[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *customerStore) Create(_ context.Context, customer *models.DirectDebitCustomer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.customers[customer.UserID]; ok {
		return utils.NewConflictError("customer for user "+customer.UserID+" already exists", nil)
	}
	r.s.customers[customer.UserID] = *customer
	return nil
}

func (r *customerStore) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.customers, userID)
	return nil
}
