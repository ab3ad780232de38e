package models

import "time"

// ApprovalRole identifies the tier of an approval gate.
type ApprovalRole string

const (
	ApprovalRoleHOD       ApprovalRole = "HOD"
	ApprovalRolePrincipal ApprovalRole = "PRINCIPAL"
)

// ApprovalStatus is terminal once it leaves pending.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// Approval is one approver's sign-off task for an event. At most one row
// exists per (event, role) for the current submission cycle.
type Approval struct {
	ID         string         `db:"id" json:"id"`
	EventID    string         `db:"event_id" json:"event_id"`
	ApproverID string         `db:"approver_id" json:"approver_id"`
	Role       ApprovalRole   `db:"role" json:"role"`
	Status     ApprovalStatus `db:"status" json:"status"`
	Remarks    *string        `db:"remarks" json:"remarks,omitempty"`
	DecidedAt  *time.Time     `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// ApprovalDetail adds event context for approver queues.
type ApprovalDetail struct {
	Approval
	EventTitle    string    `db:"event_title" json:"event_title"`
	EventStartsAt time.Time `db:"event_starts_at" json:"event_starts_at"`
	OrganizerName string    `db:"organizer_name" json:"organizer_name"`
}
