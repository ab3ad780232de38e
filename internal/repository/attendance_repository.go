package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

// AttendanceRepository handles persistence of attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Mark records attendance for a registration exactly once. The unique
// constraint on registration_id makes concurrent scans idempotent;
// inserted reports whether this call created the row.
func (r *AttendanceRepository) Mark(ctx context.Context, att *models.Attendance) (bool, error) {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.ScannedAt.IsZero() {
		att.ScannedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, registration_id, scanned_by, scanned_at)
        VALUES (:id, :registration_id, :scanned_by, :scanned_at)
        ON CONFLICT (registration_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, att)
	if err != nil {
		return false, fmt.Errorf("mark attendance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark attendance rows: %w", err)
	}
	return n > 0, nil
}

// FindByRegistration returns the attendance row for a registration, or nil
// when none exists.
func (r *AttendanceRepository) FindByRegistration(ctx context.Context, registrationID string) (*models.Attendance, error) {
	const query = `SELECT id, registration_id, scanned_by, scanned_at FROM attendance WHERE registration_id = $1`
	var att models.Attendance
	if err := r.db.GetContext(ctx, &att, query, registrationID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &att, nil
}

// CountByEvent returns how many registrations were marked present.
func (r *AttendanceRepository) CountByEvent(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM attendance a
        JOIN registrations r ON r.id = a.registration_id
        WHERE r.event_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, eventID); err != nil {
		return 0, fmt.Errorf("count event attendance: %w", err)
	}
	return count, nil
}
