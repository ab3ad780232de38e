package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

// ApprovalRepository handles persistence of approval tasks.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository constructs the repository.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

const approvalColumns = `a.id, a.event_id, a.approver_id, a.role, a.status, a.remarks, a.decided_at, a.created_at`

// ReplaceForEvent atomically discards the event's current approval cycle
// and installs a fresh set of pending tasks. Used on creation and whenever
// a material re-edit restarts the workflow.
func (r *ApprovalRepository) ReplaceForEvent(ctx context.Context, eventID string, approvals []models.Approval) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace approvals: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM approvals WHERE event_id = $1`, eventID); err != nil {
		return fmt.Errorf("clear approvals: %w", err)
	}

	const insert = `INSERT INTO approvals (id, event_id, approver_id, role, status, remarks, decided_at, created_at)
        VALUES (:id, :event_id, :approver_id, :role, :status, :remarks, :decided_at, :created_at)`
	now := time.Now().UTC()
	for i := range approvals {
		if approvals[i].ID == "" {
			approvals[i].ID = uuid.NewString()
		}
		approvals[i].EventID = eventID
		if approvals[i].Status == "" {
			approvals[i].Status = models.ApprovalStatusPending
		}
		if approvals[i].CreatedAt.IsZero() {
			approvals[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, insert, approvals[i]); err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace approvals: %w", err)
	}
	commit = true
	return nil
}

// FindByID returns an approval by ID.
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*models.Approval, error) {
	query := fmt.Sprintf("SELECT %s FROM approvals a WHERE a.id = $1", approvalColumns)
	var approval models.Approval
	if err := r.db.GetContext(ctx, &approval, query, id); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ListByEvent returns all approvals of the event's current cycle.
func (r *ApprovalRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Approval, error) {
	query := fmt.Sprintf("SELECT %s FROM approvals a WHERE a.event_id = $1 ORDER BY a.created_at", approvalColumns)
	var approvals []models.Approval
	if err := r.db.SelectContext(ctx, &approvals, query, eventID); err != nil {
		return nil, fmt.Errorf("list event approvals: %w", err)
	}
	return approvals, nil
}

// ListPendingForApprover returns the approver's open queue with event context.
func (r *ApprovalRepository) ListPendingForApprover(ctx context.Context, approverID string) ([]models.ApprovalDetail, error) {
	query := fmt.Sprintf(`SELECT %s, e.title AS event_title, e.starts_at AS event_starts_at, u.full_name AS organizer_name
        FROM approvals a
        JOIN events e ON e.id = a.event_id
        JOIN users u ON u.id = e.organizer_id
        WHERE a.approver_id = $1 AND a.status = $2
        ORDER BY e.starts_at`, approvalColumns)
	var approvals []models.ApprovalDetail
	if err := r.db.SelectContext(ctx, &approvals, query, approverID, models.ApprovalStatusPending); err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return approvals, nil
}

// Decide records a verdict on a still-pending approval. Returns false when
// the row was already decided or belongs to someone else, so concurrent
// double-decisions lose cleanly.
func (r *ApprovalRepository) Decide(ctx context.Context, id, approverID string, status models.ApprovalStatus, remarks *string) (bool, error) {
	const query = `UPDATE approvals SET status = $3, remarks = $4, decided_at = $5
        WHERE id = $1 AND approver_id = $2 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, approverID, status, remarks, time.Now().UTC(), models.ApprovalStatusPending)
	if err != nil {
		return false, fmt.Errorf("decide approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide approval rows: %w", err)
	}
	return n > 0, nil
}
