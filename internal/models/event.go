package models

import "time"

// EventStatus tracks the approval lifecycle of an event.
type EventStatus string

const (
	EventStatusPending  EventStatus = "pending"
	EventStatusApproved EventStatus = "approved"
	EventStatusRejected EventStatus = "rejected"
)

// EventMode distinguishes on-campus events from online ones.
type EventMode string

const (
	EventModeOffline EventMode = "offline"
	EventModeOnline  EventMode = "online"
)

// Event is the central entity of the platform. Offline events require a
// venue; online events require a meeting URL.
type Event struct {
	ID              string      `db:"id" json:"id"`
	Title           string      `db:"title" json:"title"`
	Description     string      `db:"description" json:"description"`
	StartsAt        time.Time   `db:"starts_at" json:"starts_at"`
	EndsAt          time.Time   `db:"ends_at" json:"ends_at"`
	VenueID         *string     `db:"venue_id" json:"venue_id,omitempty"`
	DepartmentID    *string     `db:"department_id" json:"department_id,omitempty"`
	Mode            EventMode   `db:"mode" json:"mode"`
	MeetingURL      *string     `db:"meeting_url" json:"meeting_url,omitempty"`
	PosterPath      *string     `db:"poster_path" json:"poster_path,omitempty"`
	TemplateID      *string     `db:"certificate_template_id" json:"certificate_template_id,omitempty"`
	ScanToken       string      `db:"scan_token" json:"-"`
	OrganizerID     string      `db:"organizer_id" json:"organizer_id"`
	Status          EventStatus `db:"status" json:"status"`
	IsTeamEvent     bool        `db:"is_team_event" json:"is_team_event"`
	MinTeamSize     int         `db:"min_team_size" json:"min_team_size"`
	MaxTeamSize     int         `db:"max_team_size" json:"max_team_size"`
	CampusExclusive bool        `db:"campus_exclusive" json:"campus_exclusive"`
	HasPrizes       bool        `db:"has_prizes" json:"has_prizes"`
	DutyLeave       bool        `db:"duty_leave" json:"duty_leave"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// IsOnline reports whether the event runs remotely.
func (e *Event) IsOnline() bool {
	return e.Mode == EventModeOnline
}

// EventDetail extends the event with joined display fields.
type EventDetail struct {
	Event
	VenueName      *string `db:"venue_name" json:"venue_name,omitempty"`
	DepartmentName *string `db:"department_name" json:"department_name,omitempty"`
	OrganizerName  string  `db:"organizer_name" json:"organizer_name"`
}

// EventFilter captures query criteria for event listings.
type EventFilter struct {
	Status        EventStatus
	DepartmentID  string
	OrganizerID   string
	From          *time.Time
	To            *time.Time
	ExcludeCampus bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// EventStats summarises an event for the organizer dashboard.
type EventStats struct {
	Registrations int `db:"registrations" json:"registrations"`
	Attended      int `db:"attended" json:"attended"`
	Certificates  int `db:"certificates" json:"certificates"`
	Teams         int `db:"teams" json:"teams"`
}
