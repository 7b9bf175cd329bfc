package models

import "time"

// Client represents a client company with a backing user account.
type Client struct {
	ID           string    `db:"id" json:"id"`
	UserID       string    `db:"user_id" json:"user_id"`
	CompanyName  string    `db:"company_name" json:"company_name"`
	ContactName  *string   `db:"contact_name" json:"contact_name,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	Industry     *string   `db:"industry" json:"industry,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ClientFilter constrains client listing.
type ClientFilter struct {
	Search   string
	Page     int
	PageSize int
}
