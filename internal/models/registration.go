package models

import "time"

// Registration links a student to an event. Team members each get their
// own row so QR codes and certificates stay per-person.
type Registration struct {
	ID              string    `db:"id" json:"id"`
	EventID         string    `db:"event_id" json:"event_id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	TeamID          *string   `db:"team_id" json:"team_id,omitempty"`
	QRCode          string    `db:"qr_code" json:"qr_code"`
	PrizePosition   *string   `db:"prize_position" json:"prize_position,omitempty"`
	PrizeTitle      *string   `db:"prize_title" json:"prize_title,omitempty"`
	PrizeTemplateID *string   `db:"prize_template_id" json:"prize_template_id,omitempty"`
	RegisteredAt    time.Time `db:"registered_at" json:"registered_at"`
}

// RegistrationDetail carries joined fields for listings and scan results.
type RegistrationDetail struct {
	Registration
	StudentName   string     `db:"student_name" json:"student_name"`
	StudentEmail  string     `db:"student_email" json:"student_email"`
	EventTitle    string     `db:"event_title" json:"event_title"`
	EventStartsAt time.Time  `db:"event_starts_at" json:"event_starts_at"`
	EventEndsAt   time.Time  `db:"event_ends_at" json:"event_ends_at"`
	TeamName      *string    `db:"team_name" json:"team_name,omitempty"`
	AttendedAt    *time.Time `db:"attended_at" json:"attended_at,omitempty"`
}
