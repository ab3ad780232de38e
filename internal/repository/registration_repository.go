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

// RegistrationRepository handles persistence of registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `r.id, r.event_id, r.student_id, r.team_id, r.qr_code, r.prize_position, r.prize_title, r.prize_template_id, r.registered_at`

// Create inserts a registration. The unique (event_id, student_id)
// constraint absorbs concurrent duplicates; inserted reports whether this
// call won the row.
func (r *RegistrationRepository) Create(ctx context.Context, reg *models.Registration) (bool, error) {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = time.Now().UTC()
	}
	const query = `INSERT INTO registrations (id, event_id, student_id, team_id, qr_code, registered_at)
        VALUES (:id, :event_id, :student_id, :team_id, :qr_code, :registered_at)
        ON CONFLICT (event_id, student_id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, reg)
	if err != nil {
		return false, fmt.Errorf("create registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create registration rows: %w", err)
	}
	return n > 0, nil
}

// FindByID returns a registration by ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations r WHERE r.id = $1", registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, id); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindByEventAndStudent returns the student's registration for an event.
func (r *RegistrationRepository) FindByEventAndStudent(ctx context.Context, eventID, studentID string) (*models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations r WHERE r.event_id = $1 AND r.student_id = $2", registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, eventID, studentID); err != nil {
		return nil, err
	}
	return &reg, nil
}

// FindDetailByID returns a registration joined with student, event and
// attendance context.
func (r *RegistrationRepository) FindDetailByID(ctx context.Context, id string) (*models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS student_name, u.email AS student_email,
        e.title AS event_title, e.starts_at AS event_starts_at, e.ends_at AS event_ends_at,
        t.name AS team_name, a.scanned_at AS attended_at
        FROM registrations r
        JOIN users u ON u.id = r.student_id
        JOIN events e ON e.id = r.event_id
        LEFT JOIN teams t ON t.id = r.team_id
        LEFT JOIN attendance a ON a.registration_id = r.id
        WHERE r.id = $1`, registrationColumns)
	var detail models.RegistrationDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByEvent returns an event's participants with attendance markers.
func (r *RegistrationRepository) ListByEvent(ctx context.Context, eventID string) ([]models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS student_name, u.email AS student_email,
        e.title AS event_title, e.starts_at AS event_starts_at, e.ends_at AS event_ends_at,
        t.name AS team_name, a.scanned_at AS attended_at
        FROM registrations r
        JOIN users u ON u.id = r.student_id
        JOIN events e ON e.id = r.event_id
        LEFT JOIN teams t ON t.id = r.team_id
        LEFT JOIN attendance a ON a.registration_id = r.id
        WHERE r.event_id = $1
        ORDER BY u.full_name`, registrationColumns)
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, eventID); err != nil {
		return nil, fmt.Errorf("list event registrations: %w", err)
	}
	return regs, nil
}

// ListByStudent returns the student's registrations, newest event first.
func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.RegistrationDetail, error) {
	query := fmt.Sprintf(`SELECT %s, u.full_name AS student_name, u.email AS student_email,
        e.title AS event_title, e.starts_at AS event_starts_at, e.ends_at AS event_ends_at,
        t.name AS team_name, a.scanned_at AS attended_at
        FROM registrations r
        JOIN users u ON u.id = r.student_id
        JOIN events e ON e.id = r.event_id
        LEFT JOIN teams t ON t.id = r.team_id
        LEFT JOIN attendance a ON a.registration_id = r.id
        WHERE r.student_id = $1
        ORDER BY e.starts_at DESC`, registrationColumns)
	var regs []models.RegistrationDetail
	if err := r.db.SelectContext(ctx, &regs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student registrations: %w", err)
	}
	return regs, nil
}

// FindByEventAndIdentifier matches a participant by email or username for
// bulk attendance uploads.
func (r *RegistrationRepository) FindByEventAndIdentifier(ctx context.Context, eventID, identifier string) (*models.Registration, error) {
	query := fmt.Sprintf(`SELECT %s FROM registrations r
        JOIN users u ON u.id = r.student_id
        WHERE r.event_id = $1 AND (LOWER(u.email) = LOWER($2) OR LOWER(u.username) = LOWER($2))`, registrationColumns)
	var reg models.Registration
	if err := r.db.GetContext(ctx, &reg, query, eventID, identifier); err != nil {
		return nil, err
	}
	return &reg, nil
}

// UpdatePrize sets or clears the individual prize for a registration.
// Passing nil values clears the assignment.
func (r *RegistrationRepository) UpdatePrize(ctx context.Context, id string, position, title, templateID *string) error {
	const query = `UPDATE registrations SET prize_position = $2, prize_title = $3, prize_template_id = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, position, title, templateID)
	if err != nil {
		return fmt.Errorf("update registration prize: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListByTeam returns member registrations of a team.
func (r *RegistrationRepository) ListByTeam(ctx context.Context, teamID string) ([]models.Registration, error) {
	query := fmt.Sprintf("SELECT %s FROM registrations r WHERE r.team_id = $1 ORDER BY r.registered_at", registrationColumns)
	var regs []models.Registration
	if err := r.db.SelectContext(ctx, &regs, query, teamID); err != nil {
		return nil, fmt.Errorf("list team registrations: %w", err)
	}
	return regs, nil
}
