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

func newBookingRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func bookingRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "instructor_id", "location_id", "customer_name", "customer_email", "booking_date", "start_time", "end_time", "status", "notes", "created_at", "updated_at"})
}

func TestBookingRepositoryListByInstructor(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM bookings WHERE 1=1 AND instructor_id = \\$1 ORDER BY booking_date, start_time").
		WithArgs("ins-1").
		WillReturnRows(bookingRows().AddRow("b1", "ins-1", nil, "Alex Reyes", "alex@example.com", date, "09:00", "11:00", "CONFIRMED", nil, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM bookings WHERE 1=1 AND instructor_id = \\$1").
		WithArgs("ins-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	bookings, total, err := repo.List(context.Background(), models.BookingFilter{InstructorID: "ins-1"})
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.BookingStatusConfirmed, bookings[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListConfirmedForDay(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	date := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM bookings WHERE instructor_id = \\$1 AND booking_date = \\$2 AND status = \\$3").
		WithArgs("ins-1", date, models.BookingStatusConfirmed).
		WillReturnRows(bookingRows())

	bookings, err := repo.ListConfirmedForDay(context.Background(), "ins-1", date)
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateAndCancel(t *testing.T) {
	db, mock, cleanup := newBookingRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectExec("INSERT INTO bookings").
		WillReturnResult(sqlmock.NewResult(1, 1))

	booking := models.Booking{
		InstructorID:  "ins-1",
		CustomerName:  "Alex Reyes",
		CustomerEmail: "alex@example.com",
		Date:          time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
		StartTime:     "09:00",
		EndTime:       "11:00",
		Status:        models.BookingStatusConfirmed,
	}
	require.NoError(t, repo.Create(context.Background(), &booking))
	assert.NotEmpty(t, booking.ID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs(booking.ID, models.BookingStatusCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Cancel(context.Background(), booking.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}
