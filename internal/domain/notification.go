package domain

import "time"

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotifyTaskAssigned      NotificationType = "task_assigned"
	NotifyTaskCompleted     NotificationType = "task_completed"
	NotifyTaskOverdue       NotificationType = "task_overdue"
	NotifyProjectInvitation NotificationType = "project_invitation"
	NotifyProjectUpdate     NotificationType = "project_update"
	NotifyCommentAdded      NotificationType = "comment_added"
	NotifyDeadlineReminder  NotificationType = "deadline_reminder"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotifyTaskAssigned, NotifyTaskCompleted, NotifyTaskOverdue, NotifyProjectInvitation,
		NotifyProjectUpdate, NotifyCommentAdded, NotifyDeadlineReminder:
		return true
	}
	return false
}

// Notification is an in-app message for one recipient.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      map[string]any   `json:"data"`
	UserID    string           `json:"userId"`
	IsRead    bool             `json:"isRead"`
	ReadAt    *time.Time       `json:"readAt,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}
