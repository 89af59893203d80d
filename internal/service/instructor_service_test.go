package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reefdesk/dive-admin-api/internal/models"
	appErrors "github.com/reefdesk/dive-admin-api/pkg/errors"
)

type mockInstructorRepo struct {
	instructors []models.Instructor
	assignments []models.InstructorLocation
}

func (m *mockInstructorRepo) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	return m.instructors, len(m.instructors), nil
}

func (m *mockInstructorRepo) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	for _, instructor := range m.instructors {
		if instructor.ID == id {
			cp := instructor
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstructorRepo) ExistsByEmail(ctx context.Context, email, excludeID string) (bool, error) {
	for _, instructor := range m.instructors {
		if strings.EqualFold(instructor.Email, email) && instructor.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInstructorRepo) Create(ctx context.Context, instructor *models.Instructor) error {
	instructor.ID = uuid.NewString()
	m.instructors = append(m.instructors, *instructor)
	return nil
}

func (m *mockInstructorRepo) Update(ctx context.Context, instructor *models.Instructor) error {
	for i := range m.instructors {
		if m.instructors[i].ID == instructor.ID {
			m.instructors[i] = *instructor
		}
	}
	return nil
}

func (m *mockInstructorRepo) Deactivate(ctx context.Context, id string) error {
	for i := range m.instructors {
		if m.instructors[i].ID == id {
			m.instructors[i].Active = false
		}
	}
	return nil
}

func (m *mockInstructorRepo) ListLocations(ctx context.Context, instructorID string) ([]models.InstructorLocation, error) {
	var out []models.InstructorLocation
	for _, assignment := range m.assignments {
		if assignment.InstructorID == instructorID {
			out = append(out, assignment)
		}
	}
	return out, nil
}

func (m *mockInstructorRepo) AssignLocation(ctx context.Context, instructorID, locationID string) error {
	for _, assignment := range m.assignments {
		if assignment.InstructorID == instructorID && assignment.LocationID == locationID {
			return nil
		}
	}
	m.assignments = append(m.assignments, models.InstructorLocation{ID: uuid.NewString(), InstructorID: instructorID, LocationID: locationID})
	return nil
}

func (m *mockInstructorRepo) UnassignLocation(ctx context.Context, instructorID, locationID string) error {
	kept := m.assignments[:0]
	for _, assignment := range m.assignments {
		if assignment.InstructorID != instructorID || assignment.LocationID != locationID {
			kept = append(kept, assignment)
		}
	}
	m.assignments = kept
	return nil
}

type mockLocationFinder struct {
	locations map[string]models.Location
}

func (m *mockLocationFinder) FindByID(ctx context.Context, id string) (*models.Location, error) {
	location, ok := m.locations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &location, nil
}

func TestInstructorCreateAndUpdate(t *testing.T) {
	repo := &mockInstructorRepo{}
	svc := NewInstructorService(repo, &mockLocationFinder{}, nil, zap.NewNop())

	created, err := svc.Create(context.Background(), CreateInstructorRequest{
		Email:         "mia@example.com",
		FullName:      " Mia Tan ",
		Certification: strPtr("PADI OWSI"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Mia Tan", created.FullName)
	assert.True(t, created.Active)

	_, err = svc.Create(context.Background(), CreateInstructorRequest{Email: "MIA@example.com", FullName: "Other"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	inactive := false
	updated, err := svc.Update(context.Background(), created.ID, UpdateInstructorRequest{
		Email:    "mia@example.com",
		FullName: "Mia Tan",
		Active:   &inactive,
	})
	require.NoError(t, err)
	assert.False(t, updated.Active)
}

func TestInstructorCreateValidation(t *testing.T) {
	svc := NewInstructorService(&mockInstructorRepo{}, &mockLocationFinder{}, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), CreateInstructorRequest{Email: "not-an-email", FullName: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestInstructorGetNotFound(t *testing.T) {
	svc := NewInstructorService(&mockInstructorRepo{}, &mockLocationFinder{}, nil, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestInstructorLocationAssignment(t *testing.T) {
	repo := &mockInstructorRepo{}
	locations := &mockLocationFinder{locations: map[string]models.Location{"loc-a": {ID: "loc-a", Name: "North Reef"}}}
	svc := NewInstructorService(repo, locations, nil, zap.NewNop())

	instructor, err := svc.Create(context.Background(), CreateInstructorRequest{Email: "mia@example.com", FullName: "Mia Tan"})
	require.NoError(t, err)

	require.NoError(t, svc.AssignLocation(context.Background(), instructor.ID, "loc-a"))

	err = svc.AssignLocation(context.Background(), instructor.ID, "loc-missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	assignments, err := svc.ListLocations(context.Background(), instructor.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "loc-a", assignments[0].LocationID)

	require.NoError(t, svc.UnassignLocation(context.Background(), instructor.ID, "loc-a"))
	assignments, err = svc.ListLocations(context.Background(), instructor.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
}
