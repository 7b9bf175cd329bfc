package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestline-hq/crestline-api/internal/models"
)

func TestCreateNotificationFansOutRecipients(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO notifications").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_recipients (notification_id, user_id, is_read, is_acknowledged) VALUES (?, ?, FALSE, FALSE)")).
		WithArgs("n1", "u1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notification_recipients (notification_id, user_id, is_read, is_acknowledged) VALUES (?, ?, FALSE, FALSE)")).
		WithArgs("n1", "u2").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	n := &models.Notification{ID: "n1", Title: "Maintenance window", Message: "Saturday 02:00", Severity: "INFO"}
	err := repo.Create(context.Background(), n, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkReadUnknownRecipient(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE notification_recipients SET is_read = TRUE WHERE notification_id = ? AND user_id = ?")).
		WithArgs("n1", "stranger").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRead(context.Background(), "n1", "stranger")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcknowledgeOnlyStampsOnce(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	at := time.Now().UTC()
	mock.ExpectExec("UPDATE notification_recipients").
		WithArgs(at, "n1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Acknowledge(context.Background(), "n1", "u1", at))

	// A repeat hits zero rows because acknowledged_at is no longer NULL;
	// that is still a success for the caller.
	mock.ExpectExec("UPDATE notification_recipients").
		WithArgs(at, "n1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Acknowledge(context.Background(), "n1", "u1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountUnreadMissingTable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewNotificationRepository(db)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnError(assertMissingRelationErr{})

	count, err := repo.CountUnread(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type assertMissingRelationErr struct{}

func (assertMissingRelationErr) Error() string { return `relation "notification_recipients" does not exist` }
