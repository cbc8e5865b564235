// Package memory holds in-process implementations of the repository interfaces. They honour the
// same unique constraints as the Mongo indexes and roll back failed units of work, which makes
// them suitable for tests and local runs without a replica set.
package memory

import (
	"context"
	"sync"

	bookingRepo "fleetrent/database/repository/booking"
	carRepo "fleetrent/database/repository/car"
	directDebitRepo "fleetrent/database/repository/directdebit"
	paymentRepo "fleetrent/database/repository/payment"
	userRepo "fleetrent/database/repository/user"
	"fleetrent/models"
)

type txKey struct{}

// Store is a single in-memory database shared by all repository views.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	bookings     map[string]models.Booking
	cars         map[string]models.Car
	users        map[string]models.User
	payments     map[string]models.Payment
	schedules    map[string]models.DirectDebitSchedule
	installments map[string]models.DirectDebitInstallment
	customers    map[string]models.DirectDebitCustomer

	// FailPaymentCreate, when set, is returned by the next payment insert and then cleared.
	FailPaymentCreate error
}

func NewStore() *Store {
	return &Store{
		bookings:     map[string]models.Booking{},
		cars:         map[string]models.Car{},
		users:        map[string]models.User{},
		payments:     map[string]models.Payment{},
		schedules:    map[string]models.DirectDebitSchedule{},
		installments: map[string]models.DirectDebitInstallment{},
		customers:    map[string]models.DirectDebitCustomer{},
	}
}

type snapshot struct {
	bookings     map[string]models.Booking
	cars         map[string]models.Car
	payments     map[string]models.Payment
	schedules    map[string]models.DirectDebitSchedule
	installments map[string]models.DirectDebitInstallment
	customers    map[string]models.DirectDebitCustomer
}

func copyMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot{
		bookings:     copyMap(s.bookings),
		cars:         copyMap(s.cars),
		payments:     copyMap(s.payments),
		schedules:    copyMap(s.schedules),
		installments: copyMap(s.installments),
		customers:    copyMap(s.customers),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = snap.bookings
	s.cars = snap.cars
	s.payments = snap.payments
	s.schedules = snap.schedules
	s.installments = snap.installments
	s.customers = snap.customers
}

// WithTransaction serializes units of work and restores the pre-transaction state when fn fails.
// Nested calls join the outer transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *Store) Bookings() bookingRepo.BookingRepository { return &bookingStore{s} }

func (s *Store) Cars() carRepo.CarRepository { return &carStore{s} }

func (s *Store) Users() userRepo.UserRepository { return &userStore{s} }

func (s *Store) Payments() paymentRepo.PaymentRepository { return &paymentStore{s} }

func (s *Store) Schedules() directDebitRepo.ScheduleRepository { return &scheduleStore{s} }

func (s *Store) Installments() directDebitRepo.InstallmentRepository { return &installmentStore{s} }

func (s *Store) Customers() directDebitRepo.CustomerRepository { return &customerStore{s} }

// PutCar seeds or overwrites a car.
func (s *Store) PutCar(car models.Car) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cars[car.ID] = car
}

// PutUser seeds or overwrites a user.
func (s *Store) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

// PutBooking seeds or overwrites a booking, bypassing uniqueness checks.
func (s *Store) PutBooking(booking models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[booking.ID] = booking
}

// PutPayment seeds or overwrites a payment, bypassing uniqueness checks.
func (s *Store) PutPayment(payment models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[payment.ID] = payment
}

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) InstallmentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.installments)
}

func (s *Store) AllPayments() []models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Payment, 0, len(s.payments))
	for _, p := range s.payments {
		out = append(out, p)
	}
	return out
}

func (s *Store) AllInstallments() []models.DirectDebitInstallment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DirectDebitInstallment, 0, len(s.installments))
	for _, i := range s.installments {
		out = append(out, i)
	}
	return out
}
