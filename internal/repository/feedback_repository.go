package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/muhammed-ajmal-puthanpura/campusconnect/internal/models"
)

// FeedbackRepository handles persistence of event feedback.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Upsert stores the student's feedback, overwriting any prior submission
// for the same event.
func (r *FeedbackRepository) Upsert(ctx context.Context, fb *models.Feedback) error {
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	fb.SubmittedAt = time.Now().UTC()
	const query = `INSERT INTO feedback (id, event_id, student_id, rating, comments, submitted_at)
        VALUES (:id, :event_id, :student_id, :rating, :comments, :submitted_at)
        ON CONFLICT (event_id, student_id)
        DO UPDATE SET rating = EXCLUDED.rating, comments = EXCLUDED.comments, submitted_at = EXCLUDED.submitted_at`
	if _, err := r.db.NamedExecContext(ctx, query, fb); err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}
	return nil
}

// ListByEvent returns an event's feedback with author names.
func (r *FeedbackRepository) ListByEvent(ctx context.Context, eventID string) ([]models.FeedbackDetail, error) {
	const query = `SELECT f.id, f.event_id, f.student_id, f.rating, f.comments, f.submitted_at,
        u.full_name AS student_name
        FROM feedback f
        JOIN users u ON u.id = f.student_id
        WHERE f.event_id = $1
        ORDER BY f.submitted_at DESC`
	var feedback []models.FeedbackDetail
	if err := r.db.SelectContext(ctx, &feedback, query, eventID); err != nil {
		return nil, fmt.Errorf("list event feedback: %w", err)
	}
	return feedback, nil
}

// Summary aggregates the event's ratings.
func (r *FeedbackRepository) Summary(ctx context.Context, eventID string) (*models.FeedbackSummary, error) {
	const query = `SELECT COALESCE(AVG(rating), 0) AS average_rating, COUNT(*) AS count
        FROM feedback WHERE event_id = $1`
	var summary models.FeedbackSummary
	if err := r.db.GetContext(ctx, &summary, query, eventID); err != nil {
		return nil, fmt.Errorf("feedback summary: %w", err)
	}
	return &summary, nil
}
