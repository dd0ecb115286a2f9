package domain

import (
	"strings"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in-progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses lists every task status in workflow order.
var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskReview, TaskDone}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Task is a unit of work inside a project.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Status         TaskStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *int       `json:"estimatedHours,omitempty"`
	ActualHours    int        `json:"actualHours"`
	Tags           []string   `json:"tags"`
	ProjectID      string     `json:"projectId"`
	AssigneeID     *string    `json:"assigneeId"`
	CreatedByID    string     `json:"createdById"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// IsOverdue reports whether the task is past due and not done at now.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskDone
}

// AssignedTo reports whether the task's assignee is userID.
func (t Task) AssignedTo(userID string) bool {
	return t.AssigneeID != nil && *t.AssigneeID == userID
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps the order
// of first appearance.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// CommentType classifies comments.
type CommentType string

const (
	CommentPlain        CommentType = "comment"
	CommentStatusChange CommentType = "status-change"
	CommentAssignment   CommentType = "assignment"
)

// Valid reports whether c is a known comment type.
func (c CommentType) Valid() bool {
	switch c {
	case CommentPlain, CommentStatusChange, CommentAssignment:
		return true
	}
	return false
}

// Comment is an append-only note on a task.
type Comment struct {
	ID        string      `json:"id"`
	Content   string      `json:"content"`
	Type      CommentType `json:"type"`
	TaskID    string      `json:"taskId"`
	AuthorID  string      `json:"authorId"`
	CreatedAt time.Time   `json:"createdAt"`
}
