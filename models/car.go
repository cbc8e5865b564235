package models

import (
	"fmt"
	"time"
)

// Car is the fleet vehicle a booking references. Only the fields the booking core reads are kept here;
// fleet management owns the rest of the record.
type Car struct {
	ID           string    `bson:"id" json:"id"`
	Make         string    `bson:"make" json:"make"`
	Model        string    `bson:"model" json:"model"`
	Year         int       `bson:"year" json:"year"`
	LicensePlate string    `bson:"license_plate" json:"license_plate"`
	DailyRate    float64   `bson:"daily_rate" json:"daily_rate"`
	WeeklyRate   *float64  `bson:"weekly_rate,omitempty" json:"weekly_rate,omitempty"`
	MonthlyRate  *float64  `bson:"monthly_rate,omitempty" json:"monthly_rate,omitempty"`
	Status       CarStatus `bson:"status" json:"status"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"`
}

// IsAvailable reports whether the car can take a new booking right now.
func (c *Car) IsAvailable() bool {
	return c.Status == CarAvailable && c.IsActive
}

func (c *Car) FullName() string {
	return fmt.Sprintf("%d %s %s", c.Year, c.Make, c.Model)
}
