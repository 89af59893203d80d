package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	ListConfirmedForDay(ctx context.Context, instructorID string, date time.Time) ([]models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	Cancel(ctx context.Context, id string) error
}

type dayResolver interface {
	ResolveDay(ctx context.Context, instructorID string, date time.Time, locationID *string, window *models.TimeWindow) (*models.DayVerdict, error)
}

// CreateBookingRequest represents payload for booking a dive session.
type CreateBookingRequest struct {
	InstructorID  string  `json:"instructor_id" validate:"required"`
	LocationID    *string `json:"location_id"`
	CustomerName  string  `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	Date          string  `json:"date" validate:"required"`
	StartTime     string  `json:"start_time" validate:"required"`
	EndTime       string  `json:"end_time" validate:"required"`
	Notes         *string `json:"notes" validate:"omitempty,max=1000"`
}

// BookingService books dive sessions against resolved instructor
// availability. A session is only accepted when the instructor's schedule
// covers the whole requested window and no confirmed booking overlaps it.
type BookingService struct {
	repo         bookingRepository
	availability dayResolver
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(repo bookingRepository, availability dayResolver, validate *validator.Validate, logger *zap.Logger) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{repo: repo, availability: availability, validator: validate, logger: logger}
}

// List returns bookings plus pagination data.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return bookings, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a booking by id.
func (s *BookingService) Get(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// Create books a session. The instructor must be available for the full
// window on that date, and the window must not overlap another confirmed
// booking.
func (s *BookingService) Create(ctx context.Context, req CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	var fields []appErrors.FieldError
	date, ok := parseDate(req.Date)
	if !ok {
		fields = append(fields, appErrors.FieldError{Field: "date", Message: "must be a date in YYYY-MM-DD format"})
	}
	start, okStart := parseClock(req.StartTime)
	if !okStart {
		fields = append(fields, appErrors.FieldError{Field: "start_time", Message: "must be a time in HH:MM format"})
	}
	end, okEnd := parseClock(req.EndTime)
	if !okEnd {
		fields = append(fields, appErrors.FieldError{Field: "end_time", Message: "must be a time in HH:MM format"})
	}
	if okStart && okEnd && start >= end {
		fields = append(fields, appErrors.FieldError{Field: "end_time", Message: "must be after start_time"})
	}
	if len(fields) > 0 {
		return nil, appErrors.Validation("invalid booking", fields...)
	}

	window := &models.TimeWindow{Start: req.StartTime, End: req.EndTime}
	verdict, err := s.availability.ResolveDay(ctx, req.InstructorID, date, req.LocationID, window)
	if err != nil {
		return nil, err
	}
	if !verdict.IsAvailable {
		message := "instructor is not available for the requested window"
		if verdict.Reason != nil {
			message = *verdict.Reason
		}
		return nil, appErrors.Clone(appErrors.ErrUnavailable, message)
	}

	existing, err := s.repo.ListConfirmedForDay(ctx, req.InstructorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check booking overlaps")
	}
	for _, other := range existing {
		if windowsOverlap(req.StartTime, req.EndTime, other.StartTime, other.EndTime) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "instructor already has a booking in this window")
		}
	}

	booking := &models.Booking{
		InstructorID:  req.InstructorID,
		LocationID:    req.LocationID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		Date:          date,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Status:        models.BookingStatusConfirmed,
		Notes:         normalizeOptional(req.Notes),
	}
	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	return booking, nil
}

// Cancel marks a booking cancelled. Cancelling twice is a no-op.
func (s *BookingService) Cancel(ctx context.Context, id string) error {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil
	}
	if err := s.repo.Cancel(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	return nil
}

// windowsOverlap reports whether two half-open [start, end) windows
// intersect. Malformed times count as overlapping so bad data can never
// allow a double booking.
func windowsOverlap(aStart, aEnd, bStart, bEnd string) bool {
	as, ok := parseClock(aStart)
	if !ok {
		return true
	}
	ae, ok := parseClock(aEnd)
	if !ok {
		return true
	}
	bs, ok := parseClock(bStart)
	if !ok {
		return true
	}
	be, ok := parseClock(bEnd)
	if !ok {
		return true
	}
	return as < be && bs < ae
}
