package models

import "time"

// NotificationSeverity classifies a message for client rendering.
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "INFO"
	SeveritySuccess NotificationSeverity = "SUCCESS"
	SeverityWarning NotificationSeverity = "WARNING"
	SeverityError   NotificationSeverity = "ERROR"
)

// Notification represents one message instance. Read and acknowledge state
// live on the per-recipient rows, not here.
type Notification struct {
	ID        string               `db:"id" json:"id"`
	ParentID  *string              `db:"parent_id" json:"parent_id,omitempty"`
	Title     string               `db:"title" json:"title"`
	Message   string               `db:"message" json:"message"`
	Severity  NotificationSeverity `db:"severity" json:"severity"`
	SenderID  *string              `db:"sender_id" json:"sender_id,omitempty"`
	Link      *string              `db:"link" json:"link,omitempty"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
}

// NotificationRecipient is the per-user delivery record.
type NotificationRecipient struct {
	NotificationID string     `db:"notification_id" json:"notification_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	IsAcknowledged bool       `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
}

// NotificationAttachment describes a stored file linked to a notification.
type NotificationAttachment struct {
	ID             string    `db:"id" json:"id"`
	NotificationID string    `db:"notification_id" json:"notification_id"`
	Filename       string    `db:"filename" json:"filename"`
	SizeBytes      int64     `db:"size_bytes" json:"size_bytes"`
	StoragePath    string    `db:"storage_path" json:"storage_path"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// InboxItem joins a notification with the caller's delivery state.
type InboxItem struct {
	Notification
	IsRead         bool       `db:"is_read" json:"is_read"`
	IsAcknowledged bool       `db:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
}

// Thread bundles a root notification with its replies.
type Thread struct {
	Root    Notification   `json:"root"`
	Replies []Notification `json:"replies"`
}

// NotificationFilter constrains inbox listing.
type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}
