package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefdesk/dive-admin-api/internal/models"
)

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func availabilityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "instructor_id", "rule_type", "day_of_week", "rule_date", "start_time", "end_time", "location_id", "is_available", "reason", "created_at", "updated_at"})
}

func TestAvailabilityRepositoryListByInstructor(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := availabilityRows().
		AddRow("r1", "ins-1", "recurring", 1, nil, "08:00", "17:00", nil, true, nil, time.Now(), time.Now()).
		AddRow("r2", "ins-1", "time_off", nil, time.Now(), nil, nil, nil, false, "Vacation", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, instructor_id, rule_type, day_of_week, rule_date, start_time, end_time, location_id, is_available, reason, created_at, updated_at FROM availability_rules WHERE instructor_id = $1 ORDER BY rule_type, created_at DESC")).
		WithArgs("ins-1").
		WillReturnRows(rows)

	rules, err := repo.ListByInstructor(context.Background(), "ins-1")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, models.RuleTypeRecurring, rules[0].Type)
	assert.Equal(t, models.RuleTypeTimeOff, rules[1].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("SELECT .* FROM availability_rules WHERE id = \\$1 AND instructor_id = \\$2").
		WithArgs("r1", "ins-1").
		WillReturnRows(availabilityRows().AddRow("r1", "ins-1", "override", nil, time.Now(), "10:00", "14:00", nil, true, nil, time.Now(), time.Now()))

	rule, err := repo.GetByID(context.Background(), "ins-1", "r1")
	require.NoError(t, err)
	assert.Equal(t, models.RuleTypeOverride, rule.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryReplaceRecurring(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rules := []models.AvailabilityRule{
		models.NewRecurringRule("ins-1", 1, nil, &models.TimeWindow{Start: "08:00", End: "17:00"}),
		models.NewRecurringRule("ins-1", 6, nil, nil),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_rules WHERE instructor_id = $1 AND rule_type = $2")).
		WithArgs("ins-1", models.RuleTypeRecurring).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO availability_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO availability_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ReplaceRecurring(context.Background(), "ins-1", rules))
	assert.NotEmpty(t, rules[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryReplaceRecurringRollsBack(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_rules WHERE instructor_id = $1 AND rule_type = $2")).
		WithArgs("ins-1", models.RuleTypeRecurring).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO availability_rules").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.ReplaceRecurring(context.Background(), "ins-1", []models.AvailabilityRule{
		models.NewRecurringRule("ins-1", 2, nil, nil),
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryInsertAndDelete(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rule := models.NewTimeOffRule("ins-1", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), nil)
	mock.ExpectExec("INSERT INTO availability_rules").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Insert(context.Background(), &rule))
	assert.NotEmpty(t, rule.ID)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM availability_rules WHERE id = $1 AND instructor_id = $2")).
		WithArgs(rule.ID, "ins-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "ins-1", rule.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
