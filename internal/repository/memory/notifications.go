package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// CreateNotification appends a notification for its recipient.
func (s *Store) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	return s.write(ctx, "CreateNotification", func(st *state) error {
		if _, ok := st.users[notification.UserID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.notifications[notification.ID]; ok {
			return repository.ErrConflict
		}
		st.notifications[notification.ID] = copyNotification(*notification)
		return nil
	})
}

// ListNotifications returns a page of a user's notifications.
func (s *Store) ListNotifications(ctx context.Context, userID string, filter repository.NotificationFilter, opts repository.ListOptions) ([]domain.Notification, int, error) {
	var (
		page  []domain.Notification
		total int
	)
	err := s.read(ctx, "ListNotifications", func(st *state) error {
		matched := make([]domain.Notification, 0)
		for _, n := range st.notifications {
			if n.UserID != userID {
				continue
			}
			if filter.IsRead != nil && n.IsRead != *filter.IsRead {
				continue
			}
			if filter.Type != "" && n.Type != filter.Type {
				continue
			}
			matched = append(matched, copyNotification(n))
		}
		slices.SortFunc(matched, func(a, b domain.Notification) int {
			var c int
			switch opts.SortBy {
			case "type":
				c = cmp.Compare(a.Type, b.Type)
			case "isRead":
				c = cmp.Compare(boolRank(a.IsRead), boolRank(b.IsRead))
			default:
				c = a.CreatedAt.Compare(b.CreatedAt)
			}
			if c == 0 {
				c = cmp.Compare(a.ID, b.ID)
			}
			return ordered(c, opts.SortOrder)
		})
		total = len(matched)
		page = paginate(matched, opts)
		return nil
	})
	return page, total, err
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// CountUnread counts a user's unread notifications.
func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.read(ctx, "CountUnread", func(st *state) error {
		for _, notification := range st.notifications {
			if notification.UserID == userID && !notification.IsRead {
				n++
			}
		}
		return nil
	})
	return n, err
}

// MarkNotificationRead flags one notification owned by userID as read.
func (s *Store) MarkNotificationRead(ctx context.Context, notificationID, userID string, at time.Time) error {
	return s.write(ctx, "MarkNotificationRead", func(st *state) error {
		n, ok := st.notifications[notificationID]
		if !ok || n.UserID != userID {
			return repository.ErrNotFound
		}
		if !n.IsRead {
			n.IsRead = true
			n.ReadAt = &at
			st.notifications[notificationID] = n
		}
		return nil
	})
}

// MarkAllNotificationsRead flags every unread notification of userID.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	var count int
	err := s.write(ctx, "MarkAllNotificationsRead", func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID != userID || n.IsRead {
				continue
			}
			readAt := at
			n.IsRead = true
			n.ReadAt = &readAt
			st.notifications[id] = n
			count++
		}
		return nil
	})
	return count, err
}

// DeleteNotification removes one notification owned by userID.
func (s *Store) DeleteNotification(ctx context.Context, notificationID, userID string) error {
	return s.write(ctx, "DeleteNotification", func(st *state) error {
		n, ok := st.notifications[notificationID]
		if !ok || n.UserID != userID {
			return repository.ErrNotFound
		}
		delete(st.notifications, notificationID)
		return nil
	})
}

// DeleteReadNotifications removes every read notification of userID.
func (s *Store) DeleteReadNotifications(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.write(ctx, "DeleteReadNotifications", func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID && n.IsRead {
				delete(st.notifications, id)
				count++
			}
		}
		return nil
	})
	return count, err
}

// DeleteReadNotificationsBefore removes read notifications created before cutoff.
func (s *Store) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.write(ctx, "DeleteReadNotificationsBefore", func(st *state) error {
		for id, n := range st.notifications {
			if n.IsRead && n.CreatedAt.Before(cutoff) {
				delete(st.notifications, id)
				count++
			}
		}
		return nil
	})
	return count, err
}

// NotificationExists reports whether a notification of typ about taskID was
// sent to userID at or after since.
func (s *Store) NotificationExists(ctx context.Context, userID string, typ domain.NotificationType, taskID string, since time.Time) (bool, error) {
	var found bool
	err := s.read(ctx, "NotificationExists", func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID != userID || n.Type != typ || n.CreatedAt.Before(since) {
				continue
			}
			if id, _ := n.Data["taskId"].(string); id == taskID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}
