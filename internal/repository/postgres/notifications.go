package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

const notificationColumns = `n.id, n.type, n.title, n.message, n.data, n.user_id, n.is_read, n.read_at, n.created_at`

func scanNotification(row pgx.Row) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.Type, &n.Title, &n.Message, &n.Data, &n.UserID, &n.IsRead, &n.ReadAt, &n.CreatedAt)
	return n, err
}

// CreateNotification appends a notification record.
func (r *Repository) CreateNotification(ctx context.Context, notification *domain.Notification) error {
	const query = `INSERT INTO notifications (id, type, title, message, data, user_id, is_read, read_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	data := notification.Data
	if data == nil {
		data = map[string]any{}
	}
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, notification.ID, notification.Type, notification.Title, notification.Message,
			data, notification.UserID, notification.IsRead, notification.ReadAt, notification.CreatedAt)
		return err
	})
}

// ListNotifications returns a page of a user's notifications.
func (r *Repository) ListNotifications(ctx context.Context, userID string, filter repository.NotificationFilter, opts repository.ListOptions) ([]domain.Notification, int, error) {
	var args queryArgs
	conds := []string{"n.user_id = " + args.add(userID)}
	if filter.IsRead != nil {
		conds = append(conds, "n.is_read = "+args.add(*filter.IsRead))
	}
	if filter.Type != "" {
		conds = append(conds, "n.type = "+args.add(filter.Type))
	}
	order, err := orderBy(notificationSortColumns, opts, "n.id")
	if err != nil {
		return nil, 0, err
	}
	countQuery := `SELECT COUNT(1) FROM notifications n` + where(conds)
	countArgs := append([]any(nil), args...)
	listQuery := `SELECT ` + notificationColumns + ` FROM notifications n` + where(conds) + order + limitOffset(opts, &args)

	var (
		items []domain.Notification
		total int
	)
	err = r.run(ctx, func(q querier) error {
		if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return err
		}
		rows, err := q.Query(ctx, listQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		items = make([]domain.Notification, 0)
		for rows.Next() {
			n, err := scanNotification(rows)
			if err != nil {
				return err
			}
			items = append(items, n)
		}
		return rows.Err()
	})
	return items, total, err
}

// CountUnread counts a user's unread notifications.
func (r *Repository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, `SELECT COUNT(1) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	})
	return n, err
}

// MarkNotificationRead flags a notification owned by userID as read.
func (r *Repository) MarkNotificationRead(ctx context.Context, notificationID, userID string, at time.Time) error {
	const query = `UPDATE notifications SET is_read = TRUE, read_at = COALESCE(read_at, $3) WHERE id = $1 AND user_id = $2`
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, notificationID, userID, at)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// MarkAllNotificationsRead flags every unread notification of userID.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error) {
	return r.execCount(ctx, `UPDATE notifications SET is_read = TRUE, read_at = $2 WHERE user_id = $1 AND NOT is_read`, userID, at)
}

// DeleteNotification removes a notification owned by userID.
func (r *Repository) DeleteNotification(ctx context.Context, notificationID, userID string) error {
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, notificationID, userID)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// DeleteReadNotifications removes every read notification of userID.
func (r *Repository) DeleteReadNotifications(ctx context.Context, userID string) (int, error) {
	return r.execCount(ctx, `DELETE FROM notifications WHERE user_id = $1 AND is_read`, userID)
}

// DeleteReadNotificationsBefore removes read notifications created before
// cutoff in one statement.
func (r *Repository) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return r.execCount(ctx, `DELETE FROM notifications WHERE is_read AND created_at < $1`, cutoff)
}

// NotificationExists reports whether userID received a notification of typ
// about taskID at or after since.
func (r *Repository) NotificationExists(ctx context.Context, userID string, typ domain.NotificationType, taskID string, since time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM notifications
		WHERE user_id = $1 AND type = $2 AND data->>'taskId' = $3 AND created_at >= $4)`
	var found bool
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, userID, typ, taskID, since).Scan(&found)
	})
	return found, err
}

func (r *Repository) execCount(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	err := r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		return nil
	})
	return n, err
}
