package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/estate-portal/internal/model"
	"github.com/iliyamo/estate-portal/internal/realtime"
	"github.com/iliyamo/estate-portal/internal/session"
)

// ErrRealtimeUnavailable is returned by WatchUnread without a broker.
var ErrRealtimeUnavailable = errors.New("realtime notifications unavailable")

// UpdateService posts community updates and tracks what each identity read.
type UpdateService struct {
	clock
	Updates UpdateStore
	Broker  realtime.Broker
	Log     *zap.Logger
}

// Post stores an update and notifies subscribers.  A failed notification is
// logged; the update is still stored.
func (s *UpdateService) Post(ctx context.Context, author session.AppContext, title, body string) (model.CommunityUpdate, error) {
	title, body = strings.TrimSpace(title), strings.TrimSpace(body)
	if err := required("title", title, "body", body); err != nil {
		return model.CommunityUpdate{}, err
	}
	u := model.CommunityUpdate{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		AuthorID:  author.IdentityID,
		CreatedAt: s.now(),
	}
	if err := s.Updates.Create(ctx, u); err != nil {
		return model.CommunityUpdate{}, fmt.Errorf("create update: %w", err)
	}
	if s.Broker != nil {
		if err := s.Broker.Publish(ctx, realtime.TopicUpdates, u.ID); err != nil {
			s.logger().Warn("publish update notification failed", zap.String("update_id", u.ID), zap.Error(err))
		}
	}
	return u, nil
}

func (s *UpdateService) List(ctx context.Context, identityID string, limit int) ([]model.CommunityUpdate, error) {
	return s.Updates.ListFor(ctx, identityID, limit)
}

func (s *UpdateService) MarkRead(ctx context.Context, identityID, updateID string) error {
	if err := s.Updates.MarkRead(ctx, updateID, identityID); err != nil {
		return notFoundAs(err, ErrNotFound)
	}
	return nil
}

func (s *UpdateService) UnreadCount(ctx context.Context, identityID string) (int, error) {
	return s.Updates.UnreadCount(ctx, identityID)
}

// WatchUnread calls fn with the current unread count and again after every
// change notification, until ctx ends or the subscription is cancelled.
func (s *UpdateService) WatchUnread(ctx context.Context, identityID string, fn func(count int)) (realtime.Subscription, error) {
	n, err := s.UnreadCount(ctx, identityID)
	if err != nil {
		return nil, err
	}
	fn(n)
	if s.Broker == nil {
		return nil, ErrRealtimeUnavailable
	}
	return s.Broker.Subscribe(ctx, realtime.TopicUpdates, func(ctx context.Context, _ string) {
		n, err := s.UnreadCount(ctx, identityID)
		if err != nil {
			if ctx.Err() == nil {
				s.logger().Warn("unread count refresh failed", zap.String("identity_id", identityID), zap.Error(err))
			}
			return
		}
		fn(n)
	})
}

func (s *UpdateService) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
