package notification

import (
	"context"
	"errors"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// List returns a page of p's notifications.
func (s Service) List(ctx context.Context, p domain.Principal, filter repository.NotificationFilter, opts repository.ListOptions) (domain.Page[domain.Notification], error) {
	if p.UserID == "" {
		return domain.Page[domain.Notification]{}, domain.ErrUnauthenticated
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return domain.Page[domain.Notification]{}, domain.NewValidationError("type", "unknown notification type")
	}
	opts, err := opts.Normalize(sortable, "createdAt", 20)
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}
	items, total, err := s.repo.ListNotifications(ctx, p.UserID, filter, opts)
	if err != nil {
		return domain.Page[domain.Notification]{}, err
	}
	return domain.Page[domain.Notification]{Items: items, Pagination: domain.NewPagination(total, opts.Page, opts.Limit)}, nil
}

// UnreadCount counts p's unread notifications.
func (s Service) UnreadCount(ctx context.Context, p domain.Principal) (int, error) {
	if p.UserID == "" {
		return 0, domain.ErrUnauthenticated
	}
	return s.repo.CountUnread(ctx, p.UserID)
}

// MarkRead flags one of p's notifications as read.
func (s Service) MarkRead(ctx context.Context, p domain.Principal, notificationID string) error {
	if p.UserID == "" {
		return domain.ErrUnauthenticated
	}
	return notFound(s.repo.MarkNotificationRead(ctx, notificationID, p.UserID, s.now().UTC()))
}

// MarkAllRead flags all of p's unread notifications.
func (s Service) MarkAllRead(ctx context.Context, p domain.Principal) (int, error) {
	if p.UserID == "" {
		return 0, domain.ErrUnauthenticated
	}
	return s.repo.MarkAllNotificationsRead(ctx, p.UserID, s.now().UTC())
}

// Delete removes one of p's notifications.
func (s Service) Delete(ctx context.Context, p domain.Principal, notificationID string) error {
	if p.UserID == "" {
		return domain.ErrUnauthenticated
	}
	return notFound(s.repo.DeleteNotification(ctx, notificationID, p.UserID))
}

// DeleteRead removes all of p's read notifications.
func (s Service) DeleteRead(ctx context.Context, p domain.Principal) (int, error) {
	if p.UserID == "" {
		return 0, domain.ErrUnauthenticated
	}
	return s.repo.DeleteReadNotifications(ctx, p.UserID)
}

func notFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}
