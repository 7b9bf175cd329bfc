package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/notify"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type stubBroadcaster struct {
	events []notify.Event
}

func (b *stubBroadcaster) Broadcast(ctx context.Context, event notify.Event) error {
	b.events = append(b.events, event)
	return nil
}

type stubNotifRepo struct {
	notifications map[string]*models.Notification
	recipients    map[string]map[string]*models.NotificationRecipient
	attachments   []*models.NotificationAttachment
}

func newStubNotifRepo() *stubNotifRepo {
	return &stubNotifRepo{
		notifications: make(map[string]*models.Notification),
		recipients:    make(map[string]map[string]*models.NotificationRecipient),
	}
}

func (s *stubNotifRepo) Create(ctx context.Context, n *models.Notification, recipientIDs []string) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	s.notifications[n.ID] = n
	rows := make(map[string]*models.NotificationRecipient, len(recipientIDs))
	for _, id := range recipientIDs {
		rows[id] = &models.NotificationRecipient{NotificationID: n.ID, UserID: id}
	}
	s.recipients[n.ID] = rows
	return nil
}

func (s *stubNotifRepo) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := s.notifications[id]; ok {
		return n, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubNotifRepo) ListReplies(ctx context.Context, parentID string) ([]models.Notification, error) {
	var replies []models.Notification
	for _, n := range s.notifications {
		if n.ParentID != nil && *n.ParentID == parentID {
			replies = append(replies, *n)
		}
	}
	return replies, nil
}

func (s *stubNotifRepo) RecipientIDs(ctx context.Context, notificationID string) ([]string, error) {
	var ids []string
	for id := range s.recipients[notificationID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *stubNotifRepo) GetRecipient(ctx context.Context, notificationID, userID string) (*models.NotificationRecipient, error) {
	if rec, ok := s.recipients[notificationID][userID]; ok {
		return rec, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubNotifRepo) MarkRead(ctx context.Context, notificationID, userID string) error {
	rec, ok := s.recipients[notificationID][userID]
	if !ok {
		return sql.ErrNoRows
	}
	rec.IsRead = true
	return nil
}

func (s *stubNotifRepo) Acknowledge(ctx context.Context, notificationID, userID string, at time.Time) error {
	rec, ok := s.recipients[notificationID][userID]
	if !ok {
		return nil
	}
	if rec.AcknowledgedAt == nil {
		rec.IsRead = true
		rec.IsAcknowledged = true
		rec.AcknowledgedAt = &at
	}
	return nil
}

func (s *stubNotifRepo) ListInbox(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.InboxItem, int, error) {
	var items []models.InboxItem
	for nid, rows := range s.recipients {
		if rec, ok := rows[userID]; ok {
			items = append(items, models.InboxItem{
				Notification:   *s.notifications[nid],
				IsRead:         rec.IsRead,
				IsAcknowledged: rec.IsAcknowledged,
				AcknowledgedAt: rec.AcknowledgedAt,
			})
		}
	}
	return items, len(items), nil
}

func (s *stubNotifRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	count := 0
	for _, rows := range s.recipients {
		if rec, ok := rows[userID]; ok && !rec.IsRead {
			count++
		}
	}
	return count, nil
}

func (s *stubNotifRepo) CreateAttachment(ctx context.Context, att *models.NotificationAttachment) error {
	s.attachments = append(s.attachments, att)
	return nil
}

func (s *stubNotifRepo) ListAttachments(ctx context.Context, notificationID string) ([]models.NotificationAttachment, error) {
	var out []models.NotificationAttachment
	for _, att := range s.attachments {
		if att.NotificationID == notificationID {
			out = append(out, *att)
		}
	}
	return out, nil
}

type stubNotifUsers struct {
	active []models.User
	audits []*models.AuditLog
}

func (s *stubNotifUsers) ListActive(ctx context.Context) ([]models.User, error) {
	return s.active, nil
}

func (s *stubNotifUsers) ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var out []models.User
	for _, u := range s.active {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubNotifUsers) ListActiveByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.User
	for _, u := range s.active {
		if _, ok := want[u.ID]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *stubNotifUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

func newNotifService(repo *stubNotifRepo, users *stubNotifUsers, b notify.Broadcaster) *NotificationService {
	return NewNotificationService(repo, users, b, nil, time.Minute, validator.New(), zap.NewNop())
}

func TestSendToRoleReachesEveryActiveHolder(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{
		{ID: "a1", Role: models.RoleAdmin},
		{ID: "a2", Role: models.RoleAdmin},
		{ID: "a3", Role: models.RoleAdmin},
		{ID: "s1", Role: models.RoleStaff},
	}}
	b := &stubBroadcaster{}
	svc := newNotifService(repo, users, b)

	n, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title:   "Policy update",
		Message: "Please review",
		Role:    models.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Len(t, repo.recipients[n.ID], 3)

	require.Len(t, b.events, 1)
	assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, b.events[0].UserIDs)
	require.Len(t, users.audits, 1)
	assert.Equal(t, models.AuditActionNotificationSend, users.audits[0].Action)
}

func TestSendZeroRecipientsRejected(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	_, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title:   "Hello",
		Message: "Anyone there",
		Role:    models.RoleClient,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.notifications)
}

func TestSendRequiresExactlyOneAddressingMode(t *testing.T) {
	svc := newNotifService(newStubNotifRepo(), &stubNotifUsers{}, &stubBroadcaster{})

	_, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title:     "Hello",
		Message:   "World",
		Broadcast: true,
		Role:      models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSendSkipsInactiveUsers(t *testing.T) {
	repo := newStubNotifRepo()
	// Only u1 is active; u2 is absent from the active set.
	users := &stubNotifUsers{active: []models.User{{ID: "u1", Role: models.RoleStaff}}}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	n, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title:   "Heads up",
		Message: "Only active users get this",
		UserIDs: []string{"u1", "u2"},
	})
	require.NoError(t, err)
	assert.Len(t, repo.recipients[n.ID], 1)
	_, ok := repo.recipients[n.ID]["u1"]
	assert.True(t, ok)
}

func TestAcknowledgeFirstWriteWins(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{{ID: "u1", Role: models.RoleStaff}}}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	n, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title: "Ack me", Message: "Please", UserIDs: []string{"u1"},
	})
	require.NoError(t, err)

	first, err := svc.Acknowledge(context.Background(), n.ID, "u1")
	require.NoError(t, err)
	require.NotNil(t, first.AcknowledgedAt)
	assert.True(t, first.IsRead)

	second, err := svc.Acknowledge(context.Background(), n.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.AcknowledgedAt, second.AcknowledgedAt)
}

func TestAcknowledgeUnknownRecipient(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{{ID: "u1", Role: models.RoleStaff}}}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	n, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title: "Ack me", Message: "Please", UserIDs: []string{"u1"},
	})
	require.NoError(t, err)

	_, err = svc.Acknowledge(context.Background(), n.ID, "stranger")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReplyFansOutToParticipantsMinusReplier(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{
		{ID: "sender", Role: models.RoleAdmin},
		{ID: "u1", Role: models.RoleStaff},
		{ID: "u2", Role: models.RoleStaff},
	}}
	b := &stubBroadcaster{}
	svc := newNotifService(repo, users, b)

	root, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title: "Question", Message: "Thoughts?", UserIDs: []string{"u1", "u2"},
	})
	require.NoError(t, err)

	reply, err := svc.Reply(context.Background(), root.ID, "u1", ReplyRequest{Message: "Looks good"})
	require.NoError(t, err)

	recipients := repo.recipients[reply.ID]
	assert.Len(t, recipients, 2)
	_, hasSender := recipients["sender"]
	_, hasOther := recipients["u2"]
	_, hasReplier := recipients["u1"]
	assert.True(t, hasSender)
	assert.True(t, hasOther)
	assert.False(t, hasReplier)
}

func TestReplyByNonParticipantForbidden(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{
		{ID: "sender", Role: models.RoleAdmin},
		{ID: "u1", Role: models.RoleStaff},
	}}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	root, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title: "Private", Message: "Just us", UserIDs: []string{"u1"},
	})
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), root.ID, "outsider", ReplyRequest{Message: "Hi"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGetThreadForbiddenForNonParticipant(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{
		{ID: "sender", Role: models.RoleAdmin},
		{ID: "u1", Role: models.RoleStaff},
	}}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	root, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title: "Private", Message: "Just us", UserIDs: []string{"u1"},
	})
	require.NoError(t, err)

	_, err = svc.GetThread(context.Background(), root.ID, "outsider")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	thread, err := svc.GetThread(context.Background(), root.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, root.ID, thread.Root.ID)
}

func TestMarkReadIdempotent(t *testing.T) {
	repo := newStubNotifRepo()
	users := &stubNotifUsers{active: []models.User{{ID: "u1", Role: models.RoleStaff}}}
	svc := newNotifService(repo, users, &stubBroadcaster{})

	n, err := svc.Send(context.Background(), "sender", SendNotificationRequest{
		Title: "Read me", Message: "Now", UserIDs: []string{"u1"},
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(context.Background(), n.ID, "u1"))
	require.NoError(t, svc.MarkRead(context.Background(), n.ID, "u1"))

	count, err := svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
