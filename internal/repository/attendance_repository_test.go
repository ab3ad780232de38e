package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

func TestAttendanceRepositoryMarkOnce(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Mark(context.Background(), &models.Attendance{RegistrationID: "reg-1", ScannedBy: "org-1"})
	require.NoError(t, err)
	require.True(t, first)

	second, err := repo.Mark(context.Background(), &models.Attendance{RegistrationID: "reg-1", ScannedBy: "org-1"})
	require.NoError(t, err)
	require.False(t, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByRegistrationMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, registration_id, scanned_by, scanned_at FROM attendance WHERE registration_id = $1")).
		WithArgs("reg-404").
		WillReturnRows(sqlmock.NewRows([]string{"id", "registration_id", "scanned_by", "scanned_at"}))

	att, err := repo.FindByRegistration(context.Background(), "reg-404")
	require.NoError(t, err)
	require.Nil(t, att)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryFindByRegistration(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	scanned := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "registration_id", "scanned_by", "scanned_at"}).
		AddRow("att-1", "reg-1", "org-1", scanned)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, registration_id, scanned_by, scanned_at FROM attendance WHERE registration_id = $1")).
		WithArgs("reg-1").
		WillReturnRows(rows)

	att, err := repo.FindByRegistration(context.Background(), "reg-1")
	require.NoError(t, err)
	require.NotNil(t, att)
	require.Equal(t, "att-1", att.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
