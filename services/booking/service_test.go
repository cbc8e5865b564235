package booking

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	bookingRepo "fleetrent/database/repository/booking"
	"fleetrent/database/repository/memory"
	"fleetrent/models"
	"fleetrent/utils"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) BookingTransitioned(_ context.Context, b *models.Booking, transition string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, b.ID+":"+transition)
}

type recordingCanceller struct {
	mu       sync.Mutex
	bookings []string
}

func (c *recordingCanceller) CancelForBooking(_ context.Context, bookingID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bookings = append(c.bookings, bookingID)
	return nil
}

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func rate(v float64) *float64 { return &v }

type fixture struct {
	svc       *DefaultBookingService
	store     *memory.Store
	notifier  *recordingNotifier
	canceller *recordingCanceller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutCar(models.Car{ID: "car-1", Make: "Toyota", Model: "Corolla", Year: 2024, DailyRate: 50,
		WeeklyRate: rate(300), MonthlyRate: rate(1200), Status: models.CarAvailable, IsActive: true})
	store.PutCar(models.Car{ID: "car-2", Make: "Mazda", Model: "3", Year: 2023, DailyRate: 100,
		Status: models.CarAvailable, IsActive: true})

	notifier := &recordingNotifier{}
	canceller := &recordingCanceller{}
	svc := NewBookingService(store.Bookings(), store.Cars(), store, notifier, canceller, 1, nil)
	svc.Now = func() time.Time { return testNow }
	return &fixture{svc: svc, store: store, notifier: notifier, canceller: canceller}
}

func (f *fixture) create(t *testing.T, carID string, pickupIn time.Duration, days int) *models.Booking {
	t.Helper()
	pickup := testNow.Add(pickupIn)
	b, err := f.svc.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID: "user-1",
		CarID:      carID,
		PickupDate: pickup,
		ReturnDate: pickup.AddDate(0, 0, days),
	})
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	return b
}

func (f *fixture) carStatus(t *testing.T, id string) models.CarStatus {
	t.Helper()
	car, err := f.store.Cars().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s): %v", id, err)
	}
	return car.Status
}

func TestCreateBookingPricesAndStartsPending(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "car-1", 48*time.Hour, 10)

	if b.Status != models.BookingPending {
		t.Errorf("status = %s, want pending", b.Status)
	}
	if !strings.HasPrefix(b.BookingNumber, "BK20260301") || len(b.BookingNumber) != 14 {
		t.Errorf("booking number = %q, want BK20260301 plus 4 characters", b.BookingNumber)
	}
	if b.TotalDays != 10 || b.Subtotal != 450 || b.TaxAmount != 45 || b.TotalAmount != 495 {
		t.Errorf("pricing = %d days, %v + %v = %v; want 10 days, 450 + 45 = 495",
			b.TotalDays, b.Subtotal, b.TaxAmount, b.TotalAmount)
	}
	if got := f.carStatus(t, "car-1"); got != models.CarAvailable {
		t.Errorf("car status after create = %s, want available", got)
	}
}

func TestCreateBookingValidatesDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, CreateBookingRequest{
		CustomerID: "user-1", CarID: "car-1",
		PickupDate: testNow.Add(48 * time.Hour), ReturnDate: testNow.Add(24 * time.Hour),
	})
	if !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("return before pickup: err = %v, want validation error", err)
	}

	_, err = f.svc.CreateBooking(ctx, CreateBookingRequest{
		CustomerID: "user-1", CarID: "car-1",
		PickupDate: testNow.Add(-48 * time.Hour), ReturnDate: testNow.Add(24 * time.Hour),
	})
	if !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("pickup in past: err = %v, want validation error", err)
	}

	f.svc.MinRentalDays = 7
	_, err = f.svc.CreateBooking(ctx, CreateBookingRequest{
		CustomerID: "user-1", CarID: "car-1",
		PickupDate: testNow.Add(24 * time.Hour), ReturnDate: testNow.Add(72 * time.Hour),
	})
	if !utils.IsKind(err, utils.KindValidation) {
		t.Errorf("short rental: err = %v, want validation error", err)
	}
}

func TestCreateBookingRejectsUnavailableCar(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, "car-1", 48*time.Hour, 5)
	if _, err := f.svc.ConfirmBooking(context.Background(), first.ID); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}

	_, err := f.svc.CreateBooking(context.Background(), CreateBookingRequest{
		CustomerID: "user-2", CarID: "car-1",
		PickupDate: testNow.Add(72 * time.Hour), ReturnDate: testNow.Add(96 * time.Hour),
	})
	if !utils.IsKind(err, utils.KindCarUnavailable) {
		t.Fatalf("err = %v, want car unavailable", err)
	}
}

func TestConfirmReservesCarAndNotifies(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "car-1", 48*time.Hour, 3)

	confirmed, err := f.svc.ConfirmBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if confirmed.Status != models.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", confirmed.Status)
	}
	if got := f.carStatus(t, "car-1"); got != models.CarBooked {
		t.Errorf("car status = %s, want booked", got)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0] != b.ID+":confirmed" {
		t.Errorf("notifications = %v, want one confirmed event", f.notifier.events)
	}
}

func TestConcurrentConfirmOnSameCarHasOneWinner(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, "car-1", 48*time.Hour, 3)
	b := f.create(t, "car-1", 72*time.Hour, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.ConfirmBooking(context.Background(), id)
		}(i, id)
	}
	wg.Wait()

	wins, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case utils.IsKind(err, utils.KindCarUnavailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || lost != 1 {
		t.Fatalf("wins = %d, car-unavailable = %d; want 1 and 1", wins, lost)
	}
}

func TestCompletedBookingRejectsFurtherTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "car-2", 48*time.Hour, 2)
	if _, err := f.svc.ConfirmBooking(ctx, b.ID); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if _, err := f.svc.StartRental(ctx, b.ID, HandoverRequest{}); err != nil {
		t.Fatalf("StartRental: %v", err)
	}
	if _, err := f.svc.CompleteRental(ctx, b.ID, ReturnRequest{}); err != nil {
		t.Fatalf("CompleteRental: %v", err)
	}

	if _, err := f.svc.CancelBooking(ctx, b.ID, "changed mind"); !utils.IsKind(err, utils.KindInvalidTransition) {
		t.Errorf("cancel completed: err = %v, want invalid transition", err)
	}
	if _, err := f.svc.ConfirmBooking(ctx, b.ID); !utils.IsKind(err, utils.KindInvalidTransition) {
		t.Errorf("confirm completed: err = %v, want invalid transition", err)
	}
	if _, err := f.svc.StartRental(ctx, b.ID, HandoverRequest{}); !utils.IsKind(err, utils.KindInvalidTransition) {
		t.Errorf("start completed: err = %v, want invalid transition", err)
	}
	if got := f.carStatus(t, "car-2"); got != models.CarAvailable {
		t.Errorf("car status after return = %s, want available", got)
	}
}

func TestCancellationFeeDependsOnLeadTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	soon := f.create(t, "car-2", 12*time.Hour, 2)
	cancelled, err := f.svc.CancelBooking(ctx, soon.ID, "flight cancelled")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	want := soon.TotalAmount * 0.25
	if cancelled.CancellationFee != want {
		t.Errorf("fee with 12h lead = %v, want %v", cancelled.CancellationFee, want)
	}
	if cancelled.Status != models.BookingCancelled || cancelled.CancelledAt == nil {
		t.Errorf("cancelled booking = %+v", cancelled)
	}

	later := f.create(t, "car-2", 48*time.Hour, 2)
	cancelled, err = f.svc.CancelBooking(ctx, later.ID, "")
	if err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if cancelled.CancellationFee != 0 {
		t.Errorf("fee with 48h lead = %v, want 0", cancelled.CancellationFee)
	}
}

func TestCancelConfirmedReleasesCarAndSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "car-1", 72*time.Hour, 3)
	if _, err := f.svc.ConfirmBooking(ctx, b.ID); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}
	if err := f.store.Bookings().SetDirectDebitSchedule(ctx, b.ID, "sch-1"); err != nil {
		t.Fatalf("SetDirectDebitSchedule: %v", err)
	}

	if _, err := f.svc.CancelBooking(ctx, b.ID, "no longer needed"); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	if got := f.carStatus(t, "car-1"); got != models.CarAvailable {
		t.Errorf("car status = %s, want available", got)
	}
	if len(f.canceller.bookings) != 1 || f.canceller.bookings[0] != b.ID {
		t.Errorf("schedule cancellations = %v, want [%s]", f.canceller.bookings, b.ID)
	}
}

func TestReturnAddsLateFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	returnDate := testNow.Add(-72 * time.Hour)
	f.store.PutCar(models.Car{ID: "car-3", DailyRate: 100, Status: models.CarBooked, IsActive: true})
	f.store.PutBooking(models.Booking{
		ID: "b-late", BookingNumber: "BK20260220LATE", CustomerID: "user-1", CarID: "car-3",
		PickupDate: returnDate.AddDate(0, 0, -5), ReturnDate: returnDate,
		DailyRate: 100, TotalDays: 5, Subtotal: 500, TaxAmount: 50, TotalAmount: 550,
		Status: models.BookingInProgress,
	})

	returnedAt := returnDate.Add(48 * time.Hour)
	odo := 12000
	b, err := f.svc.CompleteRental(ctx, "b-late", ReturnRequest{ReturnedAt: &returnedAt, Odometer: &odo, CompletedBy: "staff-1"})
	if err != nil {
		t.Fatalf("CompleteRental: %v", err)
	}
	if b.AdditionalCharges != 300 {
		t.Errorf("additional charges = %v, want 300", b.AdditionalCharges)
	}
	if b.TotalAmount != 850 {
		t.Errorf("total = %v, want 850", b.TotalAmount)
	}
	if b.ReturnCompletedBy != "staff-1" || b.ReturnOdometer == nil || *b.ReturnOdometer != odo {
		t.Errorf("return metadata not stamped: %+v", b)
	}
	if got := f.carStatus(t, "car-3"); got != models.CarAvailable {
		t.Errorf("car status = %s, want available", got)
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0] != "b-late:completed" {
		t.Errorf("notifications = %v, want one completed event", f.notifier.events)
	}
}

func TestReadAutoAdvancesOverduePickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.PutBooking(models.Booking{
		ID: "b-auto", BookingNumber: "BK20260228AUTO", CarID: "car-1",
		PickupDate: testNow.Add(-time.Hour), ReturnDate: testNow.Add(48 * time.Hour),
		Status: models.BookingConfirmed,
	})

	b, err := f.svc.GetBooking(ctx, "b-auto")
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if b.Status != models.BookingInProgress || b.ActualPickupDate == nil {
		t.Fatalf("status = %s, want in_progress with actual pickup stamped", b.Status)
	}

	again, err := f.svc.GetBooking(ctx, "b-auto")
	if err != nil {
		t.Fatalf("second GetBooking: %v", err)
	}
	if again.Status != models.BookingInProgress || !again.ActualPickupDate.Equal(*b.ActualPickupDate) {
		t.Errorf("second read changed the booking: %+v", again)
	}
}

func TestNoShowRequiresPickupToHavePassed(t *testing.T) {
	f := newFixture(t)
	b := f.create(t, "car-2", 48*time.Hour, 2)
	if _, err := f.svc.MarkNoShow(context.Background(), b.ID); !utils.IsKind(err, utils.KindInvalidTransition) {
		t.Fatalf("err = %v, want invalid transition", err)
	}

	f.svc.Now = func() time.Time { return testNow.Add(50 * time.Hour) }
	noShow, err := f.svc.MarkNoShow(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("MarkNoShow: %v", err)
	}
	if noShow.Status != models.BookingNoShow {
		t.Errorf("status = %s, want no_show", noShow.Status)
	}
}

func TestConfirmFromPaymentRevivesCancelledBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t, "car-1", 48*time.Hour, 3)
	if _, err := f.svc.CancelBooking(ctx, b.ID, ""); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}

	var (
		got     *models.Booking
		changed bool
	)
	err := f.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		got, changed, err = f.svc.ConfirmFromPayment(ctx, b.ID)
		return err
	})
	if err != nil {
		t.Fatalf("ConfirmFromPayment: %v", err)
	}
	if !changed || got.Status != models.BookingConfirmed {
		t.Fatalf("changed = %v, status = %s; want confirmed", changed, got.Status)
	}
	if status := f.carStatus(t, "car-1"); status != models.CarBooked {
		t.Errorf("car status = %s, want booked", status)
	}

	_, changed, err = f.svc.ConfirmFromPayment(ctx, b.ID)
	if err != nil || changed {
		t.Errorf("second ConfirmFromPayment: changed = %v, err = %v; want no-op", changed, err)
	}
}

func TestConfirmFromPaymentFlagsBookingWhoseCarWasTaken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, "car-1", 48*time.Hour, 3)
	if _, err := f.svc.CancelBooking(ctx, first.ID, "card expired"); err != nil {
		t.Fatalf("CancelBooking: %v", err)
	}
	second := f.create(t, "car-1", 48*time.Hour, 3)
	if _, err := f.svc.ConfirmBooking(ctx, second.ID); err != nil {
		t.Fatalf("ConfirmBooking: %v", err)
	}

	var (
		got     *models.Booking
		changed bool
	)
	err := f.store.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		got, changed, err = f.svc.ConfirmFromPayment(ctx, first.ID)
		return err
	})
	if err != nil {
		t.Fatalf("ConfirmFromPayment: %v", err)
	}
	if !changed || got.Status != models.BookingConfirmed || !got.NeedsCarReassignment {
		t.Fatalf("got status %s flagged %v changed %v; want confirmed, flagged", got.Status, got.NeedsCarReassignment, changed)
	}
	if status := f.carStatus(t, "car-1"); status != models.CarBooked {
		t.Errorf("car status = %s, want booked by its current holder", status)
	}
	holder, err := f.svc.GetBooking(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetBooking: %v", err)
	}
	if holder.Status != models.BookingConfirmed || holder.NeedsCarReassignment {
		t.Errorf("holder = status %s flagged %v, want confirmed and unflagged", holder.Status, holder.NeedsCarReassignment)
	}

	flagged, err := f.svc.ListBookings(ctx, bookingRepo.BookingFilter{NeedsCarReassignment: true})
	if err != nil {
		t.Fatalf("ListBookings: %v", err)
	}
	if len(flagged) != 1 || flagged[0].ID != first.ID {
		t.Errorf("flagged bookings = %+v, want only %s", flagged, first.ID)
	}
}
