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

// CertificateRepository handles persistence of generated certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Upsert inserts the certificate record or refreshes the file path on
// regeneration. One certificate per (student, event).
func (r *CertificateRepository) Upsert(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	cert.IssuedAt = time.Now().UTC()
	const query = `INSERT INTO certificates (id, student_id, event_id, file_path, issued_at)
        VALUES (:id, :student_id, :event_id, :file_path, :issued_at)
        ON CONFLICT (student_id, event_id)
        DO UPDATE SET file_path = EXCLUDED.file_path, issued_at = EXCLUDED.issued_at`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		return fmt.Errorf("upsert certificate: %w", err)
	}
	return nil
}

// FindByStudentAndEvent returns the certificate, or nil when not yet issued.
func (r *CertificateRepository) FindByStudentAndEvent(ctx context.Context, studentID, eventID string) (*models.Certificate, error) {
	const query = `SELECT id, student_id, event_id, file_path, issued_at FROM certificates
        WHERE student_id = $1 AND event_id = $2`
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, studentID, eventID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &cert, nil
}

// FindDetailByID returns a certificate with joined display fields.
func (r *CertificateRepository) FindDetailByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	const query = `SELECT c.id, c.student_id, c.event_id, c.file_path, c.issued_at,
        e.title AS event_title, e.starts_at AS event_starts_at, u.full_name AS student_name
        FROM certificates c
        JOIN events e ON e.id = c.event_id
        JOIN users u ON u.id = c.student_id
        WHERE c.id = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListByStudent returns the student's certificates, newest first.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	const query = `SELECT c.id, c.student_id, c.event_id, c.file_path, c.issued_at,
        e.title AS event_title, e.starts_at AS event_starts_at, u.full_name AS student_name
        FROM certificates c
        JOIN events e ON e.id = c.event_id
        JOIN users u ON u.id = c.student_id
        WHERE c.student_id = $1
        ORDER BY c.issued_at DESC`
	var certs []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("list student certificates: %w", err)
	}
	return certs, nil
}
