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

type locationRepository interface {
	List(ctx context.Context, filter models.LocationFilter) ([]models.Location, int, error)
	FindByID(ctx context.Context, id string) (*models.Location, error)
	Create(ctx context.Context, location *models.Location) error
	Update(ctx context.Context, location *models.Location) error
	Deactivate(ctx context.Context, id string) error
}

// CreateLocationRequest represents payload for creating locations.
type CreateLocationRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Address   *string `json:"address" validate:"omitempty,max=500"`
	MaxDepthM *int    `json:"max_depth_m" validate:"omitempty,min=1,max=350"`
}

// UpdateLocationRequest represents payload for updating locations.
type UpdateLocationRequest struct {
	Name      string  `json:"name" validate:"required,max=200"`
	Address   *string `json:"address" validate:"omitempty,max=500"`
	MaxDepthM *int    `json:"max_depth_m" validate:"omitempty,min=1,max=350"`
	Active    *bool   `json:"active"`
}

// LocationService orchestrates dive location operations.
type LocationService struct {
	repo      locationRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLocationService constructs a LocationService.
func NewLocationService(repo locationRepository, validate *validator.Validate, logger *zap.Logger) *LocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationService{repo: repo, validator: validate, logger: logger}
}

// List returns locations plus pagination data.
func (s *LocationService) List(ctx context.Context, filter models.LocationFilter) ([]models.Location, *models.Pagination, error) {
	locations, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list locations")
	}
	return locations, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a location by id.
func (s *LocationService) Get(ctx context.Context, id string) (*models.Location, error) {
	location, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "location not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load location")
	}
	return location, nil
}

// Create registers a new location record.
func (s *LocationService) Create(ctx context.Context, req CreateLocationRequest) (*models.Location, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}

	location := &models.Location{
		Name:      strings.TrimSpace(req.Name),
		Address:   normalizeOptional(req.Address),
		MaxDepthM: req.MaxDepthM,
		Active:    true,
	}
	if err := s.repo.Create(ctx, location); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create location")
	}
	return location, nil
}

// Update modifies an existing location.
func (s *LocationService) Update(ctx context.Context, id string, req UpdateLocationRequest) (*models.Location, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid location payload")
	}

	location, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	location.Name = strings.TrimSpace(req.Name)
	location.Address = normalizeOptional(req.Address)
	location.MaxDepthM = req.MaxDepthM
	if req.Active != nil {
		location.Active = *req.Active
	}

	if err := s.repo.Update(ctx, location); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update location")
	}
	return location, nil
}

// Deactivate marks a location inactive.
func (s *LocationService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate location")
	}
	return nil
}
