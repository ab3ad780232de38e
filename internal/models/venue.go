package models

// Department groups users, venues and events under one academic unit.
type Department struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Venue is a bookable physical location, optionally owned by a department.
type Venue struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"name" json:"name"`
	DepartmentID *string `db:"department_id" json:"department_id,omitempty"`
	Capacity     int     `db:"capacity" json:"capacity"`
}
