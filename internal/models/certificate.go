package models

import "time"

// Certificate records a generated PDF for one student at one event.
// Unique per (student, event); regeneration replaces the file in place.
type Certificate struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	FilePath  string    `db:"file_path" json:"-"`
	IssuedAt  time.Time `db:"issued_at" json:"issued_at"`
}

// CertificateDetail adds display context for student downloads.
type CertificateDetail struct {
	Certificate
	EventTitle    string    `db:"event_title" json:"event_title"`
	EventStartsAt time.Time `db:"event_starts_at" json:"event_starts_at"`
	StudentName   string    `db:"student_name" json:"student_name"`
}

// CertificateTemplate is an organizer-owned background image with optional
// field position overrides stored as JSON.
type CertificateTemplate struct {
	ID          string    `db:"id" json:"id"`
	OrganizerID string    `db:"organizer_id" json:"organizer_id"`
	Name        string    `db:"name" json:"name"`
	ImagePath   string    `db:"image_path" json:"-"`
	IsDefault   bool      `db:"is_default" json:"is_default"`
	Positions   *string   `db:"positions" json:"positions,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
