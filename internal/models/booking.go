package models

import "time"

// BookingStatus tracks the lifecycle of a dive session booking.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

// Booking represents a scheduled dive session with an instructor.
type Booking struct {
	ID            string        `db:"id" json:"id"`
	InstructorID  string        `db:"instructor_id" json:"instructor_id"`
	LocationID    *string       `db:"location_id" json:"location_id,omitempty"`
	CustomerName  string        `db:"customer_name" json:"customer_name"`
	CustomerEmail string        `db:"customer_email" json:"customer_email"`
	Date          time.Time     `db:"booking_date" json:"date"`
	StartTime     string        `db:"start_time" json:"start_time"`
	EndTime       string        `db:"end_time" json:"end_time"`
	Status        BookingStatus `db:"status" json:"status"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	InstructorID string
	LocationID   string
	Status       *BookingStatus
	DateFrom     *time.Time
	DateTo       *time.Time
	Page         int
	PageSize     int
}
