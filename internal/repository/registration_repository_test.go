package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryCreateInserts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.Create(context.Background(), &models.Registration{
		EventID:   "evt-1",
		StudentID: "stu-1",
	})
	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateAbsorbsDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Create(context.Background(), &models.Registration{
		EventID:   "evt-1",
		StudentID: "stu-1",
	})
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryUpdatePrizeMissingRow(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE registrations SET prize_position = $2, prize_title = $3, prize_template_id = $4 WHERE id = $1")).
		WithArgs("reg-404", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdatePrize(context.Background(), "reg-404", nil, nil, nil)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
