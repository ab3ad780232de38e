package models

import "time"

// Attendance marks a registration as present. One row per registration,
// enforced by a unique constraint.
type Attendance struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	ScannedBy      string    `db:"scanned_by" json:"scanned_by"`
	ScannedAt      time.Time `db:"scanned_at" json:"scanned_at"`
}

// ScanOutcome classifies the result of a QR scan.
type ScanOutcome string

const (
	ScanOutcomeSuccess   ScanOutcome = "success"
	ScanOutcomeDuplicate ScanOutcome = "duplicate"
	ScanOutcomeInvalid   ScanOutcome = "invalid"
)

// ScanResult is returned to the scanner UI after each attempt.
type ScanResult struct {
	Outcome      ScanOutcome `json:"outcome"`
	Message      string      `json:"message"`
	StudentName  string      `json:"student_name,omitempty"`
	StudentEmail string      `json:"student_email,omitempty"`
	EventTitle   string      `json:"event_title,omitempty"`
	ScannedAt    *time.Time  `json:"scanned_at,omitempty"`
}

// BulkAttendanceRow identifies one participant in a CSV upload. Either
// field may be used for matching.
type BulkAttendanceRow struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// BulkAttendanceReport summarises the outcome of a bulk upload.
type BulkAttendanceReport struct {
	Marked        int      `json:"marked"`
	AlreadyMarked int      `json:"already_marked"`
	NotRegistered int      `json:"not_registered"`
	Invalid       int      `json:"invalid"`
	Errors        []string `json:"errors,omitempty"`
}
