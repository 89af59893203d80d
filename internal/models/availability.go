package models

import "time"

// RuleType discriminates the three kinds of availability rules.
type RuleType string

const (
	// RuleTypeRecurring is a weekly-repeating availability statement keyed by day of week.
	RuleTypeRecurring RuleType = "recurring"
	// RuleTypeOverride is a one-off rule for a specific date superseding the weekly schedule.
	RuleTypeOverride RuleType = "override"
	// RuleTypeTimeOff is a full-day unavailability block with highest precedence.
	RuleTypeTimeOff RuleType = "time_off"
)

// AvailabilityRule is one availability record for an instructor.
//
// The row is stored flat; which fields are meaningful depends on Type:
// recurring rules carry DayOfWeek, override and time-off rules carry Date,
// and a time window is present only when IsAvailable is true and the rule
// is not time off. Use the New*Rule constructors so a rule never mixes
// variant fields, and rely on write-time validation for admin input.
type AvailabilityRule struct {
	ID           string     `db:"id" json:"id"`
	InstructorID string     `db:"instructor_id" json:"instructor_id"`
	Type         RuleType   `db:"rule_type" json:"type"`
	DayOfWeek    *int       `db:"day_of_week" json:"day_of_week,omitempty"`
	Date         *time.Time `db:"rule_date" json:"date,omitempty"`
	StartTime    *string    `db:"start_time" json:"start_time,omitempty"`
	EndTime      *string    `db:"end_time" json:"end_time,omitempty"`
	LocationID   *string    `db:"location_id" json:"location_id,omitempty"`
	IsAvailable  bool       `db:"is_available" json:"is_available"`
	Reason       *string    `db:"reason" json:"reason,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// TimeWindow is a half-open [Start, End) local time-of-day window in "HH:MM".
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// NewRecurringRule builds a weekly rule. A nil window marks the day as
// a non-working day; a nil locationID means the rule applies at all of
// the instructor's locations.
func NewRecurringRule(instructorID string, dayOfWeek int, locationID *string, window *TimeWindow) AvailabilityRule {
	day := dayOfWeek
	rule := AvailabilityRule{
		InstructorID: instructorID,
		Type:         RuleTypeRecurring,
		DayOfWeek:    &day,
		LocationID:   locationID,
	}
	if window != nil {
		rule.IsAvailable = true
		start, end := window.Start, window.End
		rule.StartTime = &start
		rule.EndTime = &end
	}
	return rule
}

// NewOverrideRule builds a one-off rule for date. A nil window blocks the day.
func NewOverrideRule(instructorID string, date time.Time, locationID *string, window *TimeWindow, reason *string) AvailabilityRule {
	day := date
	rule := AvailabilityRule{
		InstructorID: instructorID,
		Type:         RuleTypeOverride,
		Date:         &day,
		LocationID:   locationID,
		Reason:       reason,
	}
	if window != nil {
		rule.IsAvailable = true
		start, end := window.Start, window.End
		rule.StartTime = &start
		rule.EndTime = &end
	}
	return rule
}

// NewTimeOffRule builds a full-day block for date. Time off is always
// unavailable, carries no window, and ignores location scoping.
func NewTimeOffRule(instructorID string, date time.Time, reason *string) AvailabilityRule {
	day := date
	return AvailabilityRule{
		InstructorID: instructorID,
		Type:         RuleTypeTimeOff,
		Date:         &day,
		Reason:       reason,
	}
}

// DayVerdict is the resolved availability for one instructor on one date.
// Field names follow the calendar UI contract, hence camelCase.
type DayVerdict struct {
	Date        string  `json:"date"`
	IsAvailable bool    `json:"isAvailable"`
	LocationID  *string `json:"locationId,omitempty"`
	StartTime   *string `json:"startTime,omitempty"`
	EndTime     *string `json:"endTime,omitempty"`
	Reason      *string `json:"reason,omitempty"`
}

// VerdictDateFormat is the wire format for DayVerdict.Date.
const VerdictDateFormat = "2006-01-02"
