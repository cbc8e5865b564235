// Package pricing computes rental prices and fees. Every function here is pure.
package pricing

import (
	"math"
	"time"

	"fleetrent/models"
)

const (
	// TaxRate is applied to the subtotal of every booking.
	TaxRate = 0.10
	// LateFeeMultiplier scales the daily rate for each full day a car comes back late.
	LateFeeMultiplier = 1.5
	// CancellationFeeRate is the share of the total kept when a booking is cancelled inside the window.
	CancellationFeeRate = 0.25
	// CancellationWindow is the lead time to pickup under which the cancellation fee applies.
	CancellationWindow = 24 * time.Hour

	daysPerWeek  = 7
	daysPerMonth = 30
)

// Quote is the pricing breakdown for one rental period.
type Quote struct {
	DailyRate float64
	Days      int
	Subtotal  float64
	Tax       float64
	Discount  float64
	Total     float64
}

// Round2 rounds to whole cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// RentalDays is the ceiling of the duration in days, never less than 1.
func RentalDays(pickup, dropoff time.Time) int {
	hours := dropoff.Sub(pickup).Hours()
	days := int(math.Ceil(hours / 24))
	if days < 1 {
		return 1
	}
	return days
}

// Price charges whole months, then whole weeks, at their tier rates when the rental is long
// enough and the tier exists. Remainder days go at the daily rate.
func Price(dailyRate float64, weeklyRate, monthlyRate *float64, days int) float64 {
	if days < 1 {
		days = 1
	}
	switch {
	case days >= daysPerMonth && monthlyRate != nil:
		months := days / daysPerMonth
		rest := days % daysPerMonth
		return Round2(float64(months)**monthlyRate + float64(rest)*dailyRate)
	case days >= daysPerWeek && weeklyRate != nil:
		weeks := days / daysPerWeek
		rest := days % daysPerWeek
		return Round2(float64(weeks)**weeklyRate + float64(rest)*dailyRate)
	default:
		return Round2(float64(days) * dailyRate)
	}
}

// NewQuote prices a car for [pickup, dropoff).
func NewQuote(car *models.Car, pickup, dropoff time.Time) Quote {
	days := RentalDays(pickup, dropoff)
	subtotal := Price(car.DailyRate, car.WeeklyRate, car.MonthlyRate, days)
	tax := Round2(subtotal * TaxRate)
	return Quote{
		DailyRate: car.DailyRate,
		Days:      days,
		Subtotal:  subtotal,
		Tax:       tax,
		Total:     Round2(subtotal + tax),
	}
}

// LateFee charges LateFeeMultiplier times the daily rate for every full day past returnDate.
func LateFee(returnDate, actualReturn time.Time, dailyRate float64) float64 {
	if !actualReturn.After(returnDate) {
		return 0
	}
	daysLate := int(actualReturn.Sub(returnDate).Hours() / 24)
	if daysLate <= 0 {
		return 0
	}
	return Round2(float64(daysLate) * dailyRate * LateFeeMultiplier)
}

// CancellationFee is CancellationFeeRate of total when less than CancellationWindow remains
// before pickup at the time of cancellation, zero otherwise.
func CancellationFee(total float64, pickup, cancelledAt time.Time) float64 {
	if pickup.Sub(cancelledAt) < CancellationWindow {
		return Round2(total * CancellationFeeRate)
	}
	return 0
}
