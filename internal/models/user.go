package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleOrganizer UserRole = "ORGANIZER"
	RoleHOD       UserRole = "HOD"
	RolePrincipal UserRole = "PRINCIPAL"
	RoleStudent   UserRole = "STUDENT"
	RoleGuest     UserRole = "GUEST"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	FullName     string     `db:"full_name" json:"full_name"`
	Username     string     `db:"username" json:"username"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         UserRole   `db:"role" json:"role"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Active       bool       `db:"active" json:"active"`
	GuestExpiry  *time.Time `db:"guest_expiry" json:"guest_expiry,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// IsGuest reports whether the account is a time-limited guest.
func (u *User) IsGuest() bool {
	return u.Role == RoleGuest
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
