// Package notification records in-app notifications for domain events and
// serves each user's inbox.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

const (
	// DefaultRetention is how long read notifications are kept.
	DefaultRetention = 30 * 24 * time.Hour
	// ReminderWindow is how far ahead deadline reminders look.
	ReminderWindow = 24 * time.Hour

	recordTimeout = 5 * time.Second
)

// ErrNotificationNotFound is returned for missing notifications and for those
// owned by someone else.
var ErrNotificationNotFound = fmt.Errorf("notification %w", domain.ErrNotFound)

var sortable = []string{"createdAt", "type", "isRead"}

// Store is the persistence surface the recorder needs.
type Store interface {
	repository.NotificationRepository
	ListMembers(ctx context.Context, projectID string) ([]domain.MemberDetail, error)
	ListDueTasks(ctx context.Context, cutoff time.Time) ([]domain.Task, error)
}

// Config tunes the recorder.
type Config struct {
	Retention       time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// Service is the Notification Recorder.
type Service struct {
	repo      Store
	log       *slog.Logger
	breaker   *gobreaker.CircuitBreaker
	retention time.Duration
	now       func() time.Time
}

// New constructs the recorder.
func New(repo Store, log *slog.Logger, cfg Config) Service {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	initMetrics()
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "notification-recorder",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notification breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return Service{repo: repo, log: log, breaker: breaker, retention: cfg.Retention, now: time.Now}
}

// Record appends a notification for recipientID. It never fails the caller:
// errors are logged and counted.
func (s Service) Record(ctx context.Context, typ domain.NotificationType, recipientID, title, message string, data map[string]any) {
	if recipientID == "" || !typ.Valid() {
		s.log.Warn("notification skipped", "type", typ, "user_id", recipientID)
		recordOutcome.WithLabelValues(string(typ), "skipped").Inc()
		return
	}
	n := &domain.Notification{
		ID:        uuid.NewString(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Data:      data,
		UserID:    recipientID,
		CreatedAt: s.now().UTC(),
	}

	// The triggering operation has committed; its cancellation must not drop
	// the record.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.repo.CreateNotification(writeCtx, n)
	})
	switch {
	case err == nil:
		recordOutcome.WithLabelValues(string(typ), "recorded").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		recordOutcome.WithLabelValues(string(typ), "breaker_open").Inc()
		s.log.Warn("notification dropped, breaker open", "type", typ, "user_id", recipientID)
	default:
		recordOutcome.WithLabelValues(string(typ), "failed").Inc()
		s.log.Error("record notification", "type", typ, "user_id", recipientID, "error", err)
	}
}

// TaskAssigned notifies the new assignee unless they assigned themselves.
func (s Service) TaskAssigned(ctx context.Context, actor domain.Principal, task domain.Task) {
	if task.AssigneeID == nil || *task.AssigneeID == actor.UserID {
		return
	}
	s.Record(ctx, domain.NotifyTaskAssigned, *task.AssigneeID, "New Task Assigned",
		fmt.Sprintf("%s assigned you to task %q", actor.DisplayName(), task.Title),
		map[string]any{"taskId": task.ID, "projectId": task.ProjectID, "assignedBy": actor.UserID})
}

// TaskCompleted notifies the task creator unless they completed it.
func (s Service) TaskCompleted(ctx context.Context, actor domain.Principal, task domain.Task) {
	if task.CreatedByID == "" || task.CreatedByID == actor.UserID {
		return
	}
	s.Record(ctx, domain.NotifyTaskCompleted, task.CreatedByID, "Task Completed",
		fmt.Sprintf("%s completed task %q", actor.DisplayName(), task.Title),
		map[string]any{"taskId": task.ID, "projectId": task.ProjectID, "completedBy": actor.UserID})
}

// CommentAdded notifies the task assignee unless they wrote the comment.
func (s Service) CommentAdded(ctx context.Context, actor domain.Principal, task domain.Task, commentID string) {
	if task.AssigneeID == nil || *task.AssigneeID == actor.UserID {
		return
	}
	s.Record(ctx, domain.NotifyCommentAdded, *task.AssigneeID, "New Comment",
		fmt.Sprintf("%s commented on task %q", actor.DisplayName(), task.Title),
		map[string]any{"taskId": task.ID, "projectId": task.ProjectID, "commentId": commentID, "commentedBy": actor.UserID})
}

// ProjectInvitation notifies a user added to a project.
func (s Service) ProjectInvitation(ctx context.Context, actor domain.Principal, project domain.Project, inviteeID string, role domain.ProjectRole) {
	s.Record(ctx, domain.NotifyProjectInvitation, inviteeID, "Project Invitation",
		fmt.Sprintf("%s added you to project %q as %s", actor.DisplayName(), project.Name, role),
		map[string]any{"projectId": project.ID, "invitedBy": actor.UserID, "role": string(role)})
}

// ProjectUpdated notifies every member except the updater.
func (s Service) ProjectUpdated(ctx context.Context, actor domain.Principal, project domain.Project) {
	members, err := s.repo.ListMembers(ctx, project.ID)
	if err != nil {
		s.log.Error("list members for project update notice", "project_id", project.ID, "error", err)
		return
	}
	for _, m := range members {
		if m.ID == actor.UserID {
			continue
		}
		s.Record(ctx, domain.NotifyProjectUpdate, m.ID, "Project Updated",
			fmt.Sprintf("%s updated project %q", actor.DisplayName(), project.Name),
			map[string]any{"projectId": project.ID, "updatedBy": actor.UserID})
	}
}

// RemindDeadlines emits a deadline reminder for assigned tasks due within the
// next ReminderWindow and an overdue notice for those already past due. Each
// recipient gets at most one notice of each type per task per UTC day.
func (s Service) RemindDeadlines(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()
	tasks, err := s.repo.ListDueTasks(ctx, now.Add(ReminderWindow))
	if err != nil {
		return 0, err
	}
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	sent := 0
	for _, task := range tasks {
		if task.AssigneeID == nil || task.DueDate == nil {
			continue
		}
		typ, title, message := domain.NotifyDeadlineReminder, "Deadline Approaching",
			fmt.Sprintf("Task %q is due %s", task.Title, task.DueDate.UTC().Format(time.RFC1123))
		if task.IsOverdue(now) {
			typ, title, message = domain.NotifyTaskOverdue, "Task Overdue",
				fmt.Sprintf("Task %q was due %s", task.Title, task.DueDate.UTC().Format(time.RFC1123))
		}
		exists, err := s.repo.NotificationExists(ctx, *task.AssigneeID, typ, task.ID, dayStart)
		if err != nil {
			return sent, err
		}
		if exists {
			continue
		}
		s.Record(ctx, typ, *task.AssigneeID, title, message,
			map[string]any{"taskId": task.ID, "projectId": task.ProjectID, "dueDate": task.DueDate.UTC().Format(time.RFC3339)})
		remindersSent.WithLabelValues(string(typ)).Inc()
		sent++
	}
	if sent > 0 {
		s.log.Info("deadline notices emitted", "count", sent)
	}
	return sent, nil
}

// Sweep deletes read notifications older than the retention window. Running
// it again without new reads deletes nothing.
func (s Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-s.retention)
	n, err := s.repo.DeleteReadNotificationsBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	sweepDeleted.Add(float64(n))
	s.log.Info("notification sweep finished", "deleted", n, "cutoff", cutoff)
	return n, nil
}
