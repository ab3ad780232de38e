package models

import "time"

// InvitationStatus follows pending -> accepted | rejected. Declines and
// acceptances that fail validation both land on rejected.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusRejected InvitationStatus = "rejected"
)

// Team is a named group competing in a team event. The leader is also a
// member via their own registration row.
type Team struct {
	ID              string    `db:"id" json:"id"`
	EventID         string    `db:"event_id" json:"event_id"`
	Name            string    `db:"name" json:"name"`
	LeaderID        string    `db:"leader_id" json:"leader_id"`
	PrizePosition   *string   `db:"prize_position" json:"prize_position,omitempty"`
	PrizeTitle      *string   `db:"prize_title" json:"prize_title,omitempty"`
	PrizeTemplateID *string   `db:"prize_template_id" json:"prize_template_id,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// TeamDetail adds the current member count for capacity checks and UI.
type TeamDetail struct {
	Team
	MemberCount int    `db:"member_count" json:"member_count"`
	LeaderName  string `db:"leader_name" json:"leader_name"`
}

// TeamInvitation is a leader's offer to a student to join the team.
type TeamInvitation struct {
	ID          string           `db:"id" json:"id"`
	TeamID      string           `db:"team_id" json:"team_id"`
	InviteeID   string           `db:"invitee_id" json:"invitee_id"`
	Status      InvitationStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	RespondedAt *time.Time       `db:"responded_at" json:"responded_at,omitempty"`
}

// InvitationDetail carries joined context for the invitee's inbox.
type InvitationDetail struct {
	TeamInvitation
	TeamName      string    `db:"team_name" json:"team_name"`
	LeaderName    string    `db:"leader_name" json:"leader_name"`
	EventID       string    `db:"event_id" json:"event_id"`
	EventTitle    string    `db:"event_title" json:"event_title"`
	EventStartsAt time.Time `db:"event_starts_at" json:"event_starts_at"`
}
