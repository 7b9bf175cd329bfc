package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/crestline-hq/crestline-api/internal/models"
	"github.com/crestline-hq/crestline-api/internal/notify"
	appErrors "github.com/crestline-hq/crestline-api/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification, recipientIDs []string) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListReplies(ctx context.Context, parentID string) ([]models.Notification, error)
	RecipientIDs(ctx context.Context, notificationID string) ([]string, error)
	GetRecipient(ctx context.Context, notificationID, userID string) (*models.NotificationRecipient, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	Acknowledge(ctx context.Context, notificationID, userID string, at time.Time) error
	ListInbox(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.InboxItem, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	CreateAttachment(ctx context.Context, att *models.NotificationAttachment) error
	ListAttachments(ctx context.Context, notificationID string) ([]models.NotificationAttachment, error)
}

type notificationUserRepository interface {
	ListActive(ctx context.Context) ([]models.User, error)
	ListActiveByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
	ListActiveByIDs(ctx context.Context, ids []string) ([]models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SendNotificationRequest addresses a message to exactly one of: everyone,
// every active holder of a role, or an explicit set of user ids.
type SendNotificationRequest struct {
	Title     string                      `json:"title" validate:"required"`
	Message   string                      `json:"message" validate:"required"`
	Severity  models.NotificationSeverity `json:"severity" validate:"omitempty,oneof=INFO SUCCESS WARNING ERROR"`
	Link      *string                     `json:"link"`
	Broadcast bool                        `json:"broadcast"`
	Role      models.UserRole             `json:"role" validate:"omitempty,oneof=ADMIN DEPT_HEAD STAFF CLIENT"`
	UserIDs   []string                    `json:"user_ids"`
}

// ReplyRequest is a follow-up message within an existing thread.
type ReplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// NotificationService implements messaging: fan-out, threads, read and
// acknowledge state, and live push.
type NotificationService struct {
	repo        notificationRepository
	users       notificationUserRepository
	broadcaster notify.Broadcaster
	cache       *CacheService
	unreadTTL   time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo notificationRepository, users notificationUserRepository, broadcaster notify.Broadcaster, cache *CacheService, unreadTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if unreadTTL <= 0 {
		unreadTTL = time.Minute
	}
	return &NotificationService{
		repo:        repo,
		users:       users,
		broadcaster: broadcaster,
		cache:       cache,
		unreadTTL:   unreadTTL,
		validator:   validate,
		logger:      logger,
	}
}

func unreadCacheKey(userID string) string {
	return fmt.Sprintf("notifications:unread:%s", userID)
}

// Send persists a notification with one recipient row per resolved active
// user and pushes it to each of them. Delivery is at-most-once: a failed push
// is logged, never retried.
func (s *NotificationService) Send(ctx context.Context, senderID string, req SendNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	modes := 0
	if req.Broadcast {
		modes++
	}
	if req.Role != "" {
		modes++
	}
	if len(req.UserIDs) > 0 {
		modes++
	}
	if modes != 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of broadcast, role, or user_ids must be set")
	}

	recipients, err := s.resolveRecipients(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "addressing resolved to zero active recipients")
	}

	severity := req.Severity
	if severity == "" {
		severity = models.SeverityInfo
	}

	n := &models.Notification{
		Title:    req.Title,
		Message:  req.Message,
		Severity: severity,
		SenderID: &senderID,
		Link:     req.Link,
	}
	if err := s.repo.Create(ctx, n, recipients); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist notification")
	}

	s.invalidateUnread(ctx, recipients)
	s.push(ctx, "notification", recipients, n)

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &senderID,
		Action:     models.AuditActionNotificationSend,
		Resource:   "notifications",
		ResourceID: &n.ID,
		NewValues:  []byte(fmt.Sprintf(`{"recipients":%d}`, len(recipients))),
	}); err != nil {
		s.logger.Warn("failed to record notification audit log", zap.Error(err))
	}

	return n, nil
}

func (s *NotificationService) resolveRecipients(ctx context.Context, req SendNotificationRequest) ([]string, error) {
	var users []models.User
	var err error
	switch {
	case req.Broadcast:
		users, err = s.users.ListActive(ctx)
	case req.Role != "":
		users, err = s.users.ListActiveByRole(ctx, req.Role)
	default:
		users, err = s.users.ListActiveByIDs(ctx, req.UserIDs)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve recipients")
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Reply appends a message to a thread. Recipients are the thread
// participants (root sender plus root recipients) minus the replier.
func (s *NotificationService) Reply(ctx context.Context, parentID, senderID string, req ReplyRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}

	root, err := s.repo.GetByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if root.ParentID != nil {
		// Replies always attach to the thread root.
		return s.Reply(ctx, *root.ParentID, senderID, req)
	}

	participants, err := s.threadParticipants(ctx, root)
	if err != nil {
		return nil, err
	}
	if _, ok := participants[senderID]; !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller is not part of this thread")
	}

	recipients := make([]string, 0, len(participants))
	for id := range participants {
		if id != senderID {
			recipients = append(recipients, id)
		}
	}

	// Only active participants receive the reply.
	activeUsers, err := s.users.ListActiveByIDs(ctx, recipients)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve thread participants")
	}
	recipients = recipients[:0]
	for _, u := range activeUsers {
		recipients = append(recipients, u.ID)
	}

	reply := &models.Notification{
		ParentID: &root.ID,
		Title:    "Re: " + root.Title,
		Message:  req.Message,
		Severity: root.Severity,
		SenderID: &senderID,
	}
	if err := s.repo.Create(ctx, reply, recipients); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist reply")
	}

	s.invalidateUnread(ctx, recipients)
	s.push(ctx, "notification", recipients, reply)

	return reply, nil
}

// GetThread returns the root and its replies. Only participants may read it.
func (s *NotificationService) GetThread(ctx context.Context, rootID, callerID string) (*models.Thread, error) {
	root, err := s.repo.GetByID(ctx, rootID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if root.ParentID != nil {
		return s.GetThread(ctx, *root.ParentID, callerID)
	}

	participants, err := s.threadParticipants(ctx, root)
	if err != nil {
		return nil, err
	}
	if _, ok := participants[callerID]; !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller is not part of this thread")
	}

	replies, err := s.repo.ListReplies(ctx, root.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replies")
	}

	return &models.Thread{Root: *root, Replies: replies}, nil
}

func (s *NotificationService) threadParticipants(ctx context.Context, root *models.Notification) (map[string]struct{}, error) {
	ids, err := s.repo.RecipientIDs(ctx, root.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipients")
	}
	participants := make(map[string]struct{}, len(ids)+1)
	for _, id := range ids {
		participants[id] = struct{}{}
	}
	if root.SenderID != nil {
		participants[*root.SenderID] = struct{}{}
	}
	return participants, nil
}

// Inbox lists the caller's notifications with delivery state.
func (s *NotificationService) Inbox(ctx context.Context, userID string, filter models.NotificationFilter) ([]models.InboxItem, *models.Pagination, error) {
	items, total, err := s.repo.ListInbox(ctx, userID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inbox")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return items, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// MarkRead marks a delivery as read. Idempotent; NotFoundError when the user
// is not a recipient.
func (s *NotificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	if err := s.repo.MarkRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark read")
	}
	s.invalidateUnread(ctx, []string{userID})
	return nil
}

// Acknowledge stamps the delivery once; repeat calls return the original
// timestamp. Acknowledging implies read.
func (s *NotificationService) Acknowledge(ctx context.Context, notificationID, userID string) (*models.NotificationRecipient, error) {
	if _, err := s.repo.GetRecipient(ctx, notificationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}

	if err := s.repo.Acknowledge(ctx, notificationID, userID, time.Now().UTC()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acknowledge")
	}

	rec, err := s.repo.GetRecipient(ctx, notificationID, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload recipient")
	}

	s.invalidateUnread(ctx, []string{userID})
	s.push(ctx, "notification_acknowledged", []string{userID}, rec)
	return rec, nil
}

// UnreadCount returns the caller's unread total, cached in Redis.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	key := unreadCacheKey(userID)
	var cached int
	if s.cache != nil {
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count unread")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, count, s.unreadTTL); err != nil {
			s.logger.Warn("failed to cache unread count", zap.Error(err))
		}
	}
	return count, nil
}

// AddAttachment records a stored file against a notification. Only the
// sender may attach.
func (s *NotificationService) AddAttachment(ctx context.Context, notificationID, callerID string, att *models.NotificationAttachment) error {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.SenderID == nil || *n.SenderID != callerID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the sender may attach files")
	}

	att.NotificationID = notificationID
	if err := s.repo.CreateAttachment(ctx, att); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
	}
	return nil
}

// Attachments lists stored files for a notification the caller can see.
func (s *NotificationService) Attachments(ctx context.Context, notificationID, callerID string) ([]models.NotificationAttachment, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if n.ParentID != nil {
		root, err := s.repo.GetByID(ctx, *n.ParentID)
		if err == nil {
			n = root
		}
	}
	participants, err := s.threadParticipants(ctx, n)
	if err != nil {
		return nil, err
	}
	if _, ok := participants[callerID]; !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller is not part of this thread")
	}

	atts, err := s.repo.ListAttachments(ctx, notificationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attachments")
	}
	return atts, nil
}

func (s *NotificationService) invalidateUnread(ctx context.Context, userIDs []string) {
	if s.cache == nil {
		return
	}
	for _, id := range userIDs {
		if err := s.cache.Invalidate(ctx, unreadCacheKey(id)); err != nil {
			s.logger.Warn("failed to invalidate unread cache", zap.String("user_id", id), zap.Error(err))
		}
	}
}

func (s *NotificationService) push(ctx context.Context, eventType string, userIDs []string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	err := s.broadcaster.Broadcast(ctx, notify.Event{Type: eventType, UserIDs: userIDs, Payload: payload})
	if err != nil {
		s.logger.Warn("failed to push event", zap.String("type", eventType), zap.Error(err))
	}
}
