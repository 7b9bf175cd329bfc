package models

import "time"

// Staff represents an employee record linked to a user account.
type Staff struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	DepartmentID string     `db:"department_id" json:"department_id"`
	Position     *string    `db:"position" json:"position,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	HiredAt      *time.Time `db:"hired_at" json:"hired_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// StaffFilter constrains staff listing; DepartmentID and UserID implement
// role-scoped visibility.
type StaffFilter struct {
	DepartmentID string
	UserID       string
	Page         int
	PageSize     int
}

// Department groups staff under a department head.
type Department struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	HeadUserID *string   `db:"head_user_id" json:"head_user_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Partner is an external partner organisation.
type Partner struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	Notes        *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}
