package service

import (
	"context"
	"log/slog"

	"github.com/mtlprog/teamtask/internal/domain"
	"github.com/mtlprog/teamtask/internal/live"
)

// NotificationStore is the read and read-state side of notification storage.
type NotificationStore interface {
	ListForRecipient(ctx context.Context, recipientID string) ([]*domain.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkAllRead(ctx context.Context, recipientID string) error
	MarkOneRead(ctx context.Context, notificationID, requesterID string) error
}

// NotificationService exposes a member's own notifications. After a read
// state change it signals the member's other sessions so their badges follow.
type NotificationService struct {
	store     NotificationStore
	publisher live.Publisher
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(store NotificationStore, publisher live.Publisher) *NotificationService {
	return &NotificationService{store: store, publisher: publisher}
}

// List returns the member's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, member *domain.Member) ([]*domain.Notification, error) {
	return s.store.ListForRecipient(ctx, member.ID)
}

// UnreadCount returns the number of unread notifications of the member.
func (s *NotificationService) UnreadCount(ctx context.Context, member *domain.Member) (int, error) {
	return s.store.CountUnread(ctx, member.ID)
}

// MarkAllRead marks every notification of the member as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, member *domain.Member) error {
	if err := s.store.MarkAllRead(ctx, member.ID); err != nil {
		return err
	}

	slog.Info("notifications marked read", "member_id", member.ID)
	s.signal(member.ID)
	return nil
}

// MarkRead marks one of the member's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, member *domain.Member, notificationID string) error {
	if err := s.store.MarkOneRead(ctx, notificationID, member.ID); err != nil {
		return err
	}

	slog.Debug("notification marked read", "member_id", member.ID, "notification_id", notificationID)
	s.signal(member.ID)
	return nil
}

func (s *NotificationService) signal(memberID string) {
	if s.publisher != nil {
		s.publisher.Publish(memberID, live.SignalNotificationsChanged)
	}
}
