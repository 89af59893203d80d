package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/reefdesk/dive-admin-api/internal/models"
)

const availabilityColumns = `id, instructor_id, rule_type, day_of_week, rule_date, start_time, end_time, location_id, is_available, reason, created_at, updated_at`

// AvailabilityRepository manages persistence for availability rules.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs an AvailabilityRepository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListByInstructor returns every rule for one instructor, recurring rules
// first and most recent rules first within a type.
func (r *AvailabilityRepository) ListByInstructor(ctx context.Context, instructorID string) ([]models.AvailabilityRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability_rules WHERE instructor_id = $1 ORDER BY rule_type, created_at DESC`, availabilityColumns)
	var rules []models.AvailabilityRule
	if err := r.db.SelectContext(ctx, &rules, query, instructorID); err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	return rules, nil
}

// GetByID fetches a single rule scoped to an instructor.
func (r *AvailabilityRepository) GetByID(ctx context.Context, instructorID, ruleID string) (*models.AvailabilityRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM availability_rules WHERE id = $1 AND instructor_id = $2`, availabilityColumns)
	var rule models.AvailabilityRule
	if err := r.db.GetContext(ctx, &rule, query, ruleID, instructorID); err != nil {
		return nil, err
	}
	return &rule, nil
}

// ReplaceRecurring swaps the instructor's whole recurring schedule in one
// transaction. Overrides and time off are untouched.
func (r *AvailabilityRepository) ReplaceRecurring(ctx context.Context, instructorID string, rules []models.AvailabilityRule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace recurring: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE instructor_id = $1 AND rule_type = $2`, instructorID, models.RuleTypeRecurring); err != nil {
		return fmt.Errorf("clear recurring rules: %w", err)
	}

	const insert = `INSERT INTO availability_rules (id, instructor_id, rule_type, day_of_week, rule_date, start_time, end_time, location_id, is_available, reason, created_at, updated_at)
		VALUES (:id, :instructor_id, :rule_type, :day_of_week, :rule_date, :start_time, :end_time, :location_id, :is_available, :reason, :created_at, :updated_at)`
	now := time.Now().UTC()
	for i := range rules {
		rule := &rules[i]
		if rule.ID == "" {
			rule.ID = uuid.NewString()
		}
		if rule.CreatedAt.IsZero() {
			rule.CreatedAt = now
		}
		rule.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insert, rule); err != nil {
			return fmt.Errorf("insert recurring rule: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace recurring: %w", err)
	}
	return nil
}

// Insert stores one override or time-off rule.
func (r *AvailabilityRepository) Insert(ctx context.Context, rule *models.AvailabilityRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	const query = `INSERT INTO availability_rules (id, instructor_id, rule_type, day_of_week, rule_date, start_time, end_time, location_id, is_available, reason, created_at, updated_at)
		VALUES (:id, :instructor_id, :rule_type, :day_of_week, :rule_date, :start_time, :end_time, :location_id, :is_available, :reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("insert availability rule: %w", err)
	}
	return nil
}

// Delete removes a rule scoped to an instructor.
func (r *AvailabilityRepository) Delete(ctx context.Context, instructorID, ruleID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM availability_rules WHERE id = $1 AND instructor_id = $2`, ruleID, instructorID); err != nil {
		return fmt.Errorf("delete availability rule: %w", err)
	}
	return nil
}
