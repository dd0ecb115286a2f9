package repository

import (
	"context"
	"time"

	"github.com/splax/taskhub/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUser(ctx context.Context, user *domain.User) error
	ListUsers(ctx context.Context, filter UserFilter, opts ListOptions) ([]domain.User, int, error)
	SearchUsers(ctx context.Context, query, excludeProjectID string, limit int) ([]domain.User, error)
}

// ProjectRepository persists projects.
type ProjectRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	// LockProject reads a project and, inside a transaction, holds a row lock
	// on it until commit so concurrent membership changes serialise.
	LockProject(ctx context.Context, projectID string) (*domain.Project, error)
	UpdateProject(ctx context.Context, project *domain.Project) error
	DeleteProject(ctx context.Context, projectID string) error
	ListProjects(ctx context.Context, scope Visibility, filter ProjectFilter, opts ListOptions) ([]domain.Project, int, error)
}

// MemberRepository manages project memberships.
type MemberRepository interface {
	AddMember(ctx context.Context, member *domain.ProjectMember) error
	GetMember(ctx context.Context, projectID, userID string) (*domain.ProjectMember, error)
	UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.ProjectRole) error
	DeleteMember(ctx context.Context, projectID, userID string) error
	DeleteMembersByProject(ctx context.Context, projectID string) error
	ListMembers(ctx context.Context, projectID string) ([]domain.MemberDetail, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	CreateTask(ctx context.Context, task *domain.Task) error
	GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error)
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, taskID string) error
	DeleteTasksByProject(ctx context.Context, projectID string) error
	ListTasks(ctx context.Context, scope Visibility, filter TaskFilter, opts ListOptions) ([]domain.Task, int, error)
	ListTaskIDsByAssignee(ctx context.Context, projectID, userID string) ([]string, error)
	UnassignTasks(ctx context.Context, taskIDs []string) (int, error)
	// ListDueTasks returns assigned tasks that are not done and due before cutoff.
	ListDueTasks(ctx context.Context, cutoff time.Time) ([]domain.Task, error)
}

// CommentRepository persists task comments.
type CommentRepository interface {
	CreateComment(ctx context.Context, comment *domain.Comment) error
	ListComments(ctx context.Context, taskID string) ([]domain.Comment, error)
	DeleteCommentsByTask(ctx context.Context, taskID string) error
	DeleteCommentsByProject(ctx context.Context, projectID string) error
}

// NotificationRepository persists notification records.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	ListNotifications(ctx context.Context, userID string, filter NotificationFilter, opts ListOptions) ([]domain.Notification, int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkNotificationRead(ctx context.Context, notificationID, userID string, at time.Time) error
	MarkAllNotificationsRead(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteNotification(ctx context.Context, notificationID, userID string) error
	DeleteReadNotifications(ctx context.Context, userID string) (int, error)
	// DeleteReadNotificationsBefore removes read notifications created before cutoff.
	DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error)
	// NotificationExists reports whether userID received a notification of typ
	// about taskID at or after since.
	NotificationExists(ctx context.Context, userID string, typ domain.NotificationType, taskID string, since time.Time) (bool, error)
}

// AnalyticsRepository serves aggregate reads.
type AnalyticsRepository interface {
	CountProjects(ctx context.Context, scope Visibility) (int, error)
	CountTasks(ctx context.Context, query TaskQuery) (int, error)
	TaskStatusCounts(ctx context.Context, query TaskQuery) (map[domain.TaskStatus]int, error)
	TaskPriorityCounts(ctx context.Context, query TaskQuery) (map[domain.Priority]int, error)
	TaskAssigneeCounts(ctx context.Context, projectID string) ([]domain.AssigneeCount, error)
	TaskHourTotals(ctx context.Context, projectID string) (domain.HourTotals, error)
	// CompletionsByDay counts done tasks by the UTC date of their last update.
	CompletionsByDay(ctx context.Context, query TaskQuery) ([]domain.DailyCount, error)
	ProjectStatusCounts(ctx context.Context) (map[domain.ProjectStatus]int, error)
	ProjectTaskStats(ctx context.Context, projectIDs []string) (map[string]domain.TaskStats, error)
	// UserProductivity aggregates tasks per active user. When completedSince
	// is set only completions updated after it count as completed.
	UserProductivity(ctx context.Context, completedSince *time.Time) ([]domain.UserProductivity, error)
	CountUsers(ctx context.Context, activeOnly bool) (int, error)
	RecentTasks(ctx context.Context, scope Visibility, since time.Time, limit int) ([]domain.Task, error)
}

// Repositories groups every repository a unit of work may touch.
type Repositories interface {
	UserRepository
	ProjectRepository
	MemberRepository
	TaskRepository
	CommentRepository
	NotificationRepository
	AnalyticsRepository
}

// Store is the Entity Store. WithinTx runs fn in a single transaction: every
// write through tx commits together or not at all.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
