package notifications

import (
	"context"
	"encoding/json"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/chamby-mx/chamby-backend/pkg/db/models"
	"github.com/chamby-mx/chamby-backend/pkg/enums"
	pkgerrors "github.com/chamby-mx/chamby-backend/pkg/errors"
	"github.com/chamby-mx/chamby-backend/pkg/logger"
	"github.com/chamby-mx/chamby-backend/pkg/pagination"
)

// Service defines notification creation and list/read operations.
type Service interface {
	Notify(ctx context.Context, input NotifyInput) error
	NotifyMany(ctx context.Context, userIDs []uuid.UUID, input NotifyInput) error
	NotifyAdmins(ctx context.Context, input NotifyInput) error
	HasRecent(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, window time.Duration) (bool, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

// EventPublisher pushes notification events to the delivery topic. Satisfied
// by *pubsub.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

type service struct {
	repo      Repository
	publisher EventPublisher
	logg      *logger.Logger
	now       func() time.Time
}

// NotifyInput carries the content of a new notification.
type NotifyInput struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
	Data    map[string]any
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// ServiceParams groups the notification service dependencies. Publisher and
// logger are optional; delivery falls back to in-app rows only.
type ServiceParams struct {
	Repo      Repository
	Publisher EventPublisher
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewService wires notifications dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:      params.Repo,
		publisher: params.Publisher,
		logg:      params.Logger,
		now:       now,
	}, nil
}

func (s *service) Notify(ctx context.Context, input NotifyInput) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.Title == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}

	notification := &models.Notification{
		UserID:  input.UserID,
		Type:    input.Type,
		Title:   input.Title,
		Message: input.Message,
		Link:    input.Link,
	}
	if input.Data != nil {
		raw, err := json.Marshal(input.Data)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode notification data")
		}
		notification.Data = raw
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	s.publishEvent(ctx, notification)
	return nil
}

func (s *service) NotifyMany(ctx context.Context, userIDs []uuid.UUID, input NotifyInput) error {
	for _, id := range userIDs {
		perUser := input
		perUser.UserID = id
		if err := s.Notify(ctx, perUser); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) NotifyAdmins(ctx context.Context, input NotifyInput) error {
	adminIDs, err := s.repo.ListAdminIDs(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list admins")
	}
	return s.NotifyMany(ctx, adminIDs, input)
}

func (s *service) HasRecent(ctx context.Context, userID uuid.UUID, notificationType enums.NotificationType, window time.Duration) (bool, error) {
	if userID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	since := s.now().Add(-window)
	found, err := s.repo.HasRecent(ctx, userID, notificationType, since)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check recent notifications")
	}
	return found, nil
}

// publishEvent pushes the row to the delivery topic. Delivery is best effort;
// the in-app row is the source of truth.
func (s *service) publishEvent(ctx context.Context, notification *models.Notification) {
	if s.publisher == nil {
		return
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, "encoding notification event failed")
		}
		return
	}
	result := s.publisher.Publish(ctx, &pubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"event_type": "notification.created",
			"type":       string(notification.Type),
			"user_id":    notification.UserID.String(),
		},
	})
	if _, err := result.Get(ctx); err != nil && s.logg != nil {
		s.logg.Error(ctx, "publishing notification event failed", err)
	}
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      pagination.LimitWithBuffer(params.Limit),
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}

	return &ListResult{
		Items:  rows,
		Cursor: cursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
