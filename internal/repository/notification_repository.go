package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/pkg/database"
)

// NotificationRepository persists notifications and per-recipient state.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, parent_id, title, message, severity, sender_id, link, created_at`

// Create inserts a notification together with its recipient rows in one
// transaction so fan-out is all-or-nothing.
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification, recipientIDs []string) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notification tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertNotification = `INSERT INTO notifications (id, parent_id, title, message, severity, sender_id, link, created_at)
VALUES (:id, :parent_id, :title, :message, :severity, :sender_id, :link, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertNotification, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	insertRecipient := r.db.Rebind(`INSERT INTO notification_recipients (notification_id, user_id, is_read, is_acknowledged) VALUES (?, ?, FALSE, FALSE)`)
	for _, userID := range recipientIDs {
		if _, err := tx.ExecContext(ctx, insertRecipient, n.ID, userID); err != nil {
			return fmt.Errorf("create notification recipient: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notification tx: %w", err)
	}
	return nil
}

// GetByID returns a notification by identifier.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`)
	var n models.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListReplies returns child notifications of a root, oldest first.
func (r *NotificationRepository) ListReplies(ctx context.Context, parentID string) ([]models.Notification, error) {
	query := r.db.Rebind(`SELECT ` + notificationColumns + ` FROM notifications WHERE parent_id = ? ORDER BY created_at ASC`)
	var replies []models.Notification
	if err := r.db.SelectContext(ctx, &replies, query, parentID); err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	return replies, nil
}

// RecipientIDs returns every user addressed by a notification.
func (r *NotificationRepository) RecipientIDs(ctx context.Context, notificationID string) ([]string, error) {
	query := r.db.Rebind(`SELECT user_id FROM notification_recipients WHERE notification_id = ?`)
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, notificationID); err != nil {
		return nil, fmt.Errorf("list recipient ids: %w", err)
	}
	return ids, nil
}

// GetRecipient returns the delivery record for one user, sql.ErrNoRows when
// the user is not addressed.
func (r *NotificationRepository) GetRecipient(ctx context.Context, notificationID, userID string) (*models.NotificationRecipient, error) {
	query := r.db.Rebind(`SELECT notification_id, user_id, is_read, is_acknowledged, acknowledged_at FROM notification_recipients WHERE notification_id = ? AND user_id = ?`)
	var rec models.NotificationRecipient
	if err := r.db.GetContext(ctx, &rec, query, notificationID, userID); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkRead flips is_read; repeated calls are no-ops.
func (r *NotificationRepository) MarkRead(ctx context.Context, notificationID, userID string) error {
	query := r.db.Rebind(`UPDATE notification_recipients SET is_read = TRUE WHERE notification_id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark read rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Acknowledge stamps acknowledged_at exactly once. The conditional write
// makes the first caller win; later calls leave the original timestamp.
func (r *NotificationRepository) Acknowledge(ctx context.Context, notificationID, userID string, at time.Time) error {
	query := r.db.Rebind(`UPDATE notification_recipients
SET is_read = TRUE, is_acknowledged = TRUE, acknowledged_at = ?
WHERE notification_id = ? AND user_id = ? AND acknowledged_at IS NULL`)
	if _, err := r.db.ExecContext(ctx, query, at, notificationID, userID); err != nil {
		return fmt.Errorf("acknowledge: %w", err)
	}
	return nil
}

// ListInbox returns the caller's notifications joined with delivery state,
// newest first, with total count.
func (r *NotificationRepository) ListInbox(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.InboxItem, int, error) {
	base := `FROM notifications n JOIN notification_recipients nr ON nr.notification_id = n.id WHERE nr.user_id = ?`
	args := []interface{}{userID}
	if filter.UnreadOnly {
		base += ` AND nr.is_read = FALSE`
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := r.db.Rebind(fmt.Sprintf(`SELECT n.id, n.parent_id, n.title, n.message, n.severity, n.sender_id, n.link, n.created_at,
nr.is_read, nr.is_acknowledged, nr.acknowledged_at
%s ORDER BY n.created_at DESC LIMIT %d OFFSET %d`, base, pageSize, offset))

	var items []models.InboxItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		if isMissingRelation(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("list inbox: %w", err)
	}

	countQuery := r.db.Rebind(fmt.Sprintf("SELECT COUNT(*) %s", base))
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count inbox: %w", err)
	}
	return items, total, nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	query := r.db.Rebind(`SELECT COUNT(*) FROM notification_recipients WHERE user_id = ? AND is_read = FALSE`)
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		if isMissingRelation(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

// CreateAttachment stores an attachment descriptor.
func (r *NotificationRepository) CreateAttachment(ctx context.Context, att *models.NotificationAttachment) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notification_attachments (id, notification_id, filename, size_bytes, storage_path, created_at)
VALUES (:id, :notification_id, :filename, :size_bytes, :storage_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, att); err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	return nil
}

// ListAttachments returns attachment descriptors for a notification.
func (r *NotificationRepository) ListAttachments(ctx context.Context, notificationID string) ([]models.NotificationAttachment, error) {
	query := r.db.Rebind(`SELECT id, notification_id, filename, size_bytes, storage_path, created_at FROM notification_attachments WHERE notification_id = ? ORDER BY created_at ASC`)
	var atts []models.NotificationAttachment
	if err := r.db.SelectContext(ctx, &atts, query, notificationID); err != nil {
		if isMissingRelation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return atts, nil
}

// isMissingRelation detects an incompletely migrated schema so read paths
// can degrade to empty results.
func isMissingRelation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "does not exist") || strings.Contains(msg, "no such table")
}
