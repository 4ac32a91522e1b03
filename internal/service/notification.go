package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
	"github.com/HanZheTing7/ReservelyGithub/internal/store"
)

// NotificationService stores per-user notifications. A push-delivery worker
// outside this service consumes the stored records.
type NotificationService struct {
	store     store.Notifications
	ttl       time.Duration
	retention time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

// NewNotificationService constructs a NotificationService. Records expire
// after ttl and are purged once older than retention.
func NewNotificationService(s store.Notifications, ttl, retention time.Duration, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		store:     s,
		ttl:       ttl,
		retention: retention,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a notification on behalf of an authenticated caller.
func (s *NotificationService) Create(ctx context.Context, callerID string, in model.NotificationInput) (*model.Notification, error) {
	if callerID == "" {
		return nil, model.Fail(model.ErrUnauthenticated, "User must be authenticated.")
	}
	return s.create(ctx, in)
}

// Notify stores a notification emitted by the membership workflow.
func (s *NotificationService) Notify(ctx context.Context, in model.NotificationInput) error {
	_, err := s.create(ctx, in)
	return err
}

func (s *NotificationService) create(ctx context.Context, in model.NotificationInput) (*model.Notification, error) {
	for field, v := range map[string]string{
		"to_user_id": in.ToUserID,
		"title":      in.Title,
		"message":    in.Message,
		"type":       in.Type,
		"event_id":   in.EventID,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, model.Invalid("missing required field: %s", field)
		}
	}

	now := s.now()
	n := &model.Notification{
		ID:        uuid.NewString(),
		ToUserID:  in.ToUserID,
		Title:     in.Title,
		Message:   in.Message,
		Type:      in.Type,
		EventID:   in.EventID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		IsRead:    false,
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, model.Failed(err, "failed to create notification")
	}
	s.log.Debug().Str("user_id", n.ToUserID).Str("type", n.Type).Msg("notification stored")
	return n, nil
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, callerID string) ([]model.Notification, error) {
	if callerID == "" {
		return nil, model.Fail(model.ErrUnauthenticated, "User must be authenticated.")
	}
	out, err := s.store.ListNotifications(ctx, callerID)
	if err != nil {
		return nil, model.Failed(err, "failed to list notifications")
	}
	if out == nil {
		out = []model.Notification{}
	}
	return out, nil
}

// Purge deletes notifications older than the retention window.
func (s *NotificationService) Purge(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.retention)
	n, err := s.store.DeleteNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, model.Failed(err, "failed to purge notifications")
	}
	s.log.Info().Int("deleted", n).Time("cutoff", cutoff).Msg("old notifications purged")
	return n, nil
}
