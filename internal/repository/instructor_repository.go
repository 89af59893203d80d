package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/reefdesk/dive-admin-api/internal/models"
)

// InstructorRepository manages persistence for instructors and their
// location assignments.
type InstructorRepository struct {
	db *sqlx.DB
}

// NewInstructorRepository constructs an InstructorRepository.
func NewInstructorRepository(db *sqlx.DB) *InstructorRepository {
	return &InstructorRepository{db: db}
}

// List returns instructors matching filters along with total count.
func (r *InstructorRepository) List(ctx context.Context, filter models.InstructorFilter) ([]models.Instructor, int, error) {
	base := "FROM instructors i WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("i.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(i.full_name) LIKE $%d OR LOWER(i.email) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}
	if filter.LocationID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM instructor_locations il WHERE il.instructor_id = i.id AND il.location_id = $%d)", len(args)+1))
		args = append(args, filter.LocationID)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	column, order := orderClause(filter.SortBy, filter.SortOrder, map[string]string{
		"full_name":  "full_name",
		"email":      "email",
		"created_at": "created_at",
		"updated_at": "updated_at",
	}, "created_at")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT i.id, i.email, i.full_name, i.phone, i.certification, i.active, i.created_at, i.updated_at %s ORDER BY i.%s %s LIMIT %d OFFSET %d", base, column, order, limit, offset)
	var instructors []models.Instructor
	if err := r.db.SelectContext(ctx, &instructors, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list instructors: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count instructors: %w", err)
	}

	return instructors, total, nil
}

// FindByID fetches an instructor by ID.
func (r *InstructorRepository) FindByID(ctx context.Context, id string) (*models.Instructor, error) {
	const query = `SELECT id, email, full_name, phone, certification, active, created_at, updated_at FROM instructors WHERE id = $1`
	var instructor models.Instructor
	if err := r.db.GetContext(ctx, &instructor, query, id); err != nil {
		return nil, err
	}
	return &instructor, nil
}

// ExistsByEmail checks if another instructor uses the same email.
func (r *InstructorRepository) ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM instructors WHERE LOWER(email) = LOWER($1)"
	args := []interface{}{email}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check instructor email: %w", err)
	}
	return true, nil
}

// Create inserts a new instructor record.
func (r *InstructorRepository) Create(ctx context.Context, instructor *models.Instructor) error {
	if instructor.ID == "" {
		instructor.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if instructor.CreatedAt.IsZero() {
		instructor.CreatedAt = now
	}
	instructor.UpdatedAt = now

	const query = `INSERT INTO instructors (id, email, full_name, phone, certification, active, created_at, updated_at)
		VALUES (:id, :email, :full_name, :phone, :certification, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("create instructor: %w", err)
	}
	return nil
}

// Update modifies an existing instructor record.
func (r *InstructorRepository) Update(ctx context.Context, instructor *models.Instructor) error {
	instructor.UpdatedAt = time.Now().UTC()
	const query = `UPDATE instructors SET email = :email, full_name = :full_name, phone = :phone, certification = :certification, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, instructor); err != nil {
		return fmt.Errorf("update instructor: %w", err)
	}
	return nil
}

// Deactivate sets an instructor's active flag to false.
func (r *InstructorRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE instructors SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate instructor: %w", err)
	}
	return nil
}

// ListLocations returns the location assignments for one instructor.
func (r *InstructorRepository) ListLocations(ctx context.Context, instructorID string) ([]models.InstructorLocation, error) {
	const query = `SELECT id, instructor_id, location_id, created_at FROM instructor_locations WHERE instructor_id = $1 ORDER BY created_at`
	var assignments []models.InstructorLocation
	if err := r.db.SelectContext(ctx, &assignments, query, instructorID); err != nil {
		return nil, fmt.Errorf("list instructor locations: %w", err)
	}
	return assignments, nil
}

// AssignLocation links an instructor to a location. Assigning an already
// linked location is a no-op.
func (r *InstructorRepository) AssignLocation(ctx context.Context, instructorID, locationID string) error {
	const query = `INSERT INTO instructor_locations (id, instructor_id, location_id, created_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (instructor_id, location_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, uuid.NewString(), instructorID, locationID, time.Now().UTC()); err != nil {
		return fmt.Errorf("assign instructor location: %w", err)
	}
	return nil
}

// UnassignLocation removes an instructor-location link.
func (r *InstructorRepository) UnassignLocation(ctx context.Context, instructorID, locationID string) error {
	const query = `DELETE FROM instructor_locations WHERE instructor_id = $1 AND location_id = $2`
	if _, err := r.db.ExecContext(ctx, query, instructorID, locationID); err != nil {
		return fmt.Errorf("unassign instructor location: %w", err)
	}
	return nil
}
