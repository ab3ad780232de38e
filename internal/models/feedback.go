package models

import "time"

// Feedback is one student's rating for an attended event. Resubmission
// overwrites the previous entry.
type Feedback struct {
	ID          string    `db:"id" json:"id"`
	EventID     string    `db:"event_id" json:"event_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	Rating      int       `db:"rating" json:"rating"`
	Comments    *string   `db:"comments" json:"comments,omitempty"`
	SubmittedAt time.Time `db:"submitted_at" json:"submitted_at"`
}

// FeedbackDetail adds the author's name for organizer views.
type FeedbackDetail struct {
	Feedback
	StudentName string `db:"student_name" json:"student_name"`
}

// FeedbackSummary aggregates ratings for an event.
type FeedbackSummary struct {
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	Count         int     `db:"count" json:"count"`
}
