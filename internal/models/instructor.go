package models

import "time"

// Instructor represents a dive instructor record.
type Instructor struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	FullName      string    `db:"full_name" json:"full_name"`
	Phone         *string   `db:"phone" json:"phone,omitempty"`
	Certification *string   `db:"certification" json:"certification,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// InstructorFilter captures filtering options for listing instructors.
type InstructorFilter struct {
	Search     string
	Active     *bool
	LocationID string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// InstructorLocation links an instructor to a dive location they teach at.
type InstructorLocation struct {
	ID           string    `db:"id" json:"id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	LocationID   string    `db:"location_id" json:"location_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
