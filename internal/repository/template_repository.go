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

// TemplateRepository handles persistence of certificate templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs the repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, organizer_id, name, image_path, is_default, positions, created_at`

// Create persists a new template record.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.CertificateTemplate) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificate_templates (id, organizer_id, name, image_path, is_default, positions, created_at)
        VALUES (:id, :organizer_id, :name, :image_path, :is_default, :positions, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// FindByID returns a template by ID.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.CertificateTemplate, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_templates WHERE id = $1", templateColumns)
	var tpl models.CertificateTemplate
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// ListByOrganizer returns the organizer's templates, default first.
func (r *TemplateRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]models.CertificateTemplate, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_templates WHERE organizer_id = $1 ORDER BY is_default DESC, created_at DESC", templateColumns)
	var templates []models.CertificateTemplate
	if err := r.db.SelectContext(ctx, &templates, query, organizerID); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// CountByOrganizer returns how many templates the organizer owns.
func (r *TemplateRepository) CountByOrganizer(ctx context.Context, organizerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM certificate_templates WHERE organizer_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, organizerID); err != nil {
		return 0, fmt.Errorf("count templates: %w", err)
	}
	return count, nil
}

// FindDefaultByOrganizer returns the organizer's default template, or nil.
func (r *TemplateRepository) FindDefaultByOrganizer(ctx context.Context, organizerID string) (*models.CertificateTemplate, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_templates WHERE organizer_id = $1 AND is_default = TRUE", templateColumns)
	var tpl models.CertificateTemplate
	if err := r.db.GetContext(ctx, &tpl, query, organizerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find default template: %w", err)
	}
	return &tpl, nil
}

// SetDefault makes one template the organizer's default, demoting any
// other, in a single transaction so exactly one default survives.
func (r *TemplateRepository) SetDefault(ctx context.Context, organizerID, templateID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set default template: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE certificate_templates SET is_default = FALSE WHERE organizer_id = $1 AND is_default = TRUE`, organizerID); err != nil {
		return fmt.Errorf("demote default template: %w", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE certificate_templates SET is_default = TRUE WHERE id = $1 AND organizer_id = $2`, templateID, organizerID)
	if err != nil {
		return fmt.Errorf("promote default template: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit set default template: %w", err)
	}
	commit = true
	return nil
}

// UpdatePositions stores the field placement JSON for a template.
func (r *TemplateRepository) UpdatePositions(ctx context.Context, id, organizerID, positions string) error {
	const query = `UPDATE certificate_templates SET positions = $3 WHERE id = $1 AND organizer_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, organizerID, positions)
	if err != nil {
		return fmt.Errorf("update template positions: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a template. If the deleted one was the default, the most
// recent remaining template is promoted in the same transaction. Events
// and prize assignments referencing it fall back to NULL via the schema.
func (r *TemplateRepository) Delete(ctx context.Context, id, organizerID string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete template: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var wasDefault bool
	if err := tx.GetContext(ctx, &wasDefault, `SELECT is_default FROM certificate_templates WHERE id = $1 AND organizer_id = $2 FOR UPDATE`, id, organizerID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM certificate_templates WHERE id = $1 AND organizer_id = $2`, id, organizerID); err != nil {
		return fmt.Errorf("delete template: %w", err)
	}

	if wasDefault {
		const promote = `UPDATE certificate_templates SET is_default = TRUE
            WHERE id = (SELECT id FROM certificate_templates WHERE organizer_id = $1 ORDER BY created_at DESC LIMIT 1)`
		if _, err := tx.ExecContext(ctx, promote, organizerID); err != nil {
			return fmt.Errorf("promote replacement template: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete template: %w", err)
	}
	commit = true
	return nil
}
