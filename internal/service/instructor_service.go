package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
)

type instructorRepository interface {
	List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error)
	FindByID(ctx context.Context, id string) (*models.Instructor, error)
	ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error)
	Create(ctx context.Context, instructor *models.Instructor) error
	Update(ctx context.Context, instructor *models.Instructor) error
	Deactivate(ctx context.Context, id string) error
	ListLocations(ctx context.Context, instructorID string) ([]models.InstructorLocation, error)
	AssignLocation(ctx context.Context, instructorID, locationID string) error
	UnassignLocation(ctx context.Context, instructorID, locationID string) error
}

type locationFinder interface {
	FindByID(ctx context.Context, id string) (*models.Location, error)
}

// CreateInstructorRequest represents payload for creating instructors.
type CreateInstructorRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	FullName      string  `json:"full_name" validate:"required"`
	Phone         *string `json:"phone" validate:"omitempty,max=50"`
	Certification *string `json:"certification" validate:"omitempty,max=200"`
}

// UpdateInstructorRequest represents payload for updating instructors.
type UpdateInstructorRequest struct {
	Email         string  `json:"email" validate:"required,email"`
	FullName      string  `json:"full_name" validate:"required"`
	Phone         *string `json:"phone" validate:"omitempty,max=50"`
	Certification *string `json:"certification" validate:"omitempty,max=200"`
	Active        *bool   `json:"active"`
}

// InstructorService orchestrates instructor operations.
type InstructorService struct {
	repo      instructorRepository
	locations locationFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewInstructorService constructs an InstructorService.
func NewInstructorService(repo instructorRepository, locations locationFinder, validate *validator.Validate, logger *zap.Logger) *InstructorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstructorService{repo: repo, locations: locations, validator: validate, logger: logger}
}

// List returns instructors plus pagination data.
func (s *InstructorService) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, *models.Pagination, error) {
	instructors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructors")
	}
	pagination := models.NewPagination(filter.Page, filter.PageSize, total)
	return instructors, pagination, nil
}

// Get returns an instructor by id.
func (s *InstructorService) Get(ctx context.Context, id string) (*models.Instructor, error) {
	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	return instructor, nil
}

// Create registers a new instructor record.
func (s *InstructorService) Create(ctx context.Context, req CreateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}
	if err := s.ensureUniqueEmail(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	instructor := &models.Instructor{
		Email:    strings.TrimSpace(req.Email),
		FullName: strings.TrimSpace(req.FullName),
		Active:   true,
	}
	instructor.Phone = normalizeOptional(req.Phone)
	instructor.Certification = normalizeOptional(req.Certification)

	if err := s.repo.Create(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create instructor")
	}
	return instructor, nil
}

// Update modifies an existing instructor.
func (s *InstructorService) Update(ctx context.Context, id string, req UpdateInstructorRequest) (*models.Instructor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid instructor payload")
	}

	instructor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}

	if err := s.ensureUniqueEmail(ctx, req.Email, id); err != nil {
		return nil, err
	}

	instructor.Email = strings.TrimSpace(req.Email)
	instructor.FullName = strings.TrimSpace(req.FullName)
	instructor.Phone = normalizeOptional(req.Phone)
	instructor.Certification = normalizeOptional(req.Certification)
	if req.Active != nil {
		instructor.Active = *req.Active
	}

	if err := s.repo.Update(ctx, instructor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update instructor")
	}
	return instructor, nil
}

// Deactivate marks an instructor inactive.
func (s *InstructorService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "instructor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor")
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate instructor")
	}
	return nil
}

// ListLocations returns the location assignments for an instructor.
func (s *InstructorService) ListLocations(ctx context.Context, instructorID string) ([]models.InstructorLocation, error) {
	if _, err := s.Get(ctx, instructorID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListLocations(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list instructor locations")
	}
	return assignments, nil
}

// AssignLocation links an instructor to an existing location.
func (s *InstructorService) AssignLocation(ctx context.Context, instructorID, locationID string) error {
	if _, err := s.Get(ctx, instructorID); err != nil {
		return err
	}
	if _, err := s.locations.FindByID(ctx, locationID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	if err := s.repo.AssignLocation(ctx, instructorID, locationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign location")
	}
	return nil
}

// UnassignLocation removes an instructor-location link.
func (s *InstructorService) UnassignLocation(ctx context.Context, instructorID, locationID string) error {
	if _, err := s.Get(ctx, instructorID); err != nil {
		return err
	}
	if err := s.repo.UnassignLocation(ctx, instructorID, locationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unassign location")
	}
	return nil
}

func (s *InstructorService) ensureUniqueEmail(ctx context.Context, email, excludeID string) error {
	exists, err := s.repo.ExistsByEmail(ctx, email, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrConflict, "email already used")
	}
	return nil
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
