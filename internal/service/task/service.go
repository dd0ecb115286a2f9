// Package task implements task and comment CRUD scoped by project
// visibility.
package task

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
)

var sortable = []string{"createdAt", "updatedAt", "title", "status", "priority", "dueDate"}

// CreateInput holds the attributes of a new task.
type CreateInput struct {
	ProjectID      string
	Title          string
	Description    string
	Status         domain.TaskStatus
	Priority       domain.Priority
	AssigneeID     *string
	DueDate        *time.Time
	EstimatedHours *int
	Tags           []string
}

// UpdateInput is a partial update. An AssigneeID pointing at "" unassigns.
type UpdateInput struct {
	Title          *string
	Description    *string
	Status         *domain.TaskStatus
	Priority       *domain.Priority
	AssigneeID     *string
	DueDate        *time.Time
	EstimatedHours *int
	ActualHours    *int
	Tags           []string
}

// CommentInput holds a new comment.
type CommentInput struct {
	Content string
	Type    domain.CommentType
}

// Detail is a task with its comments, oldest first.
type Detail struct {
	domain.Task
	Comments []domain.Comment `json:"comments"`
}

// Notifier receives task events after commit.
type Notifier interface {
	TaskAssigned(ctx context.Context, actor domain.Principal, task domain.Task)
	TaskCompleted(ctx context.Context, actor domain.Principal, task domain.Task)
	CommentAdded(ctx context.Context, actor domain.Principal, task domain.Task, commentID string)
}

// Service manages tasks and comments.
type Service struct {
	store  repository.Store
	access access.Evaluator
	notify Notifier
	log    *slog.Logger
	now    func() time.Time
}

// New constructs the task service.
func New(store repository.Store, notify Notifier, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return Service{store: store, access: access.New(store), notify: notify, log: log, now: time.Now}
}

func validateHours(verr *domain.ValidationError, field string, hours *int) {
	if hours != nil && *hours < 0 {
		verr.Add(field, "must not be negative")
	}
}

// List returns a page of tasks visible to p.
func (s Service) List(ctx context.Context, p domain.Principal, filter repository.TaskFilter, opts repository.ListOptions) (domain.Page[domain.Task], error) {
	verr := &domain.ValidationError{}
	if filter.Status != "" && !filter.Status.Valid() {
		verr.Add("status", "unknown task status")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		verr.Add("priority", "unknown priority")
	}
	if err := verr.Err(); err != nil {
		return domain.Page[domain.Task]{}, err
	}
	opts, err := opts.Normalize(sortable, "createdAt", repository.DefaultLimit)
	if err != nil {
		return domain.Page[domain.Task]{}, err
	}
	if filter.ProjectID != "" {
		if _, _, err := s.access.AuthorizeProjectRead(ctx, p, filter.ProjectID); err != nil {
			return domain.Page[domain.Task]{}, err
		}
	}
	items, total, err := s.store.ListTasks(ctx, s.access.VisibleTasks(p), filter, opts)
	if err != nil {
		return domain.Page[domain.Task]{}, err
	}
	return domain.Page[domain.Task]{Items: items, Pagination: domain.NewPagination(total, opts.Page, opts.Limit)}, nil
}

// Get returns a visible task with its comments.
func (s Service) Get(ctx context.Context, p domain.Principal, taskID string) (Detail, error) {
	task, err := s.access.AuthorizeTask(ctx, p, taskID)
	if err != nil {
		return Detail{}, err
	}
	comments, err := s.store.ListComments(ctx, task.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Task: *task, Comments: comments}, nil
}

// Create adds a task to a project visible to p. The assignee, when given,
// must be a member of that project.
func (s Service) Create(ctx context.Context, p domain.Principal, input CreateInput) (*domain.Task, error) {
	verr := &domain.ValidationError{}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		verr.Add("title", "task title is required")
	}
	if strings.TrimSpace(input.ProjectID) == "" {
		verr.Add("projectId", "project id is required")
	}
	if input.Status == "" {
		input.Status = domain.TaskTodo
	}
	if !input.Status.Valid() {
		verr.Add("status", "unknown task status")
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !input.Priority.Valid() {
		verr.Add("priority", "unknown priority")
	}
	validateHours(verr, "estimatedHours", input.EstimatedHours)
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if input.AssigneeID != nil && *input.AssigneeID == "" {
		input.AssigneeID = nil
	}

	now := s.now().UTC()
	task := &domain.Task{
		ID:             uuid.NewString(),
		Title:          title,
		Description:    strings.TrimSpace(input.Description),
		Status:         input.Status,
		Priority:       input.Priority,
		DueDate:        input.DueDate,
		EstimatedHours: input.EstimatedHours,
		Tags:           domain.NormalizeTags(input.Tags),
		ProjectID:      input.ProjectID,
		AssigneeID:     input.AssigneeID,
		CreatedByID:    p.UserID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		guard := s.access.Within(tx)
		if _, _, err := guard.AuthorizeProjectRead(ctx, p, input.ProjectID); err != nil {
			return err
		}
		if task.AssigneeID != nil {
			if err := guard.RequireAssignable(ctx, task.ProjectID, *task.AssigneeID); err != nil {
				return err
			}
		}
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task created", "task_id", task.ID, "project_id", task.ProjectID, "actor", p.UserID)
	if s.notify != nil && task.AssigneeID != nil {
		s.notify.TaskAssigned(ctx, p, *task)
	}
	return task, nil
}

// Update applies a partial update to a visible task. A new assignee is
// checked against the project's memberships inside the same transaction.
func (s Service) Update(ctx context.Context, p domain.Principal, taskID string, input UpdateInput) (*domain.Task, error) {
	var (
		task                *domain.Task
		reassigned, closing bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		guard := s.access.Within(tx)
		current, err := guard.AuthorizeTask(ctx, p, taskID)
		if err != nil {
			return err
		}
		before := *current
		if err := apply(current, input); err != nil {
			return err
		}
		reassigned = current.AssigneeID != nil && !before.AssignedTo(*current.AssigneeID)
		closing = before.Status != domain.TaskDone && current.Status == domain.TaskDone
		if reassigned {
			if err := guard.RequireAssignable(ctx, current.ProjectID, *current.AssigneeID); err != nil {
				return err
			}
		}
		current.UpdatedAt = s.now().UTC()
		if err := tx.UpdateTask(ctx, current); err != nil {
			return err
		}
		task = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("task updated", "task_id", task.ID, "status", task.Status, "actor", p.UserID)
	if s.notify != nil {
		if reassigned {
			s.notify.TaskAssigned(ctx, p, *task)
		}
		if closing {
			s.notify.TaskCompleted(ctx, p, *task)
		}
	}
	return task, nil
}

func apply(task *domain.Task, input UpdateInput) error {
	verr := &domain.ValidationError{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			verr.Add("title", "task title cannot be empty")
		}
		task.Title = title
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			verr.Add("status", "unknown task status")
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			verr.Add("priority", "unknown priority")
		}
		task.Priority = *input.Priority
	}
	if input.AssigneeID != nil {
		if *input.AssigneeID == "" {
			task.AssigneeID = nil
		} else {
			id := *input.AssigneeID
			task.AssigneeID = &id
		}
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.EstimatedHours != nil {
		validateHours(verr, "estimatedHours", input.EstimatedHours)
		task.EstimatedHours = input.EstimatedHours
	}
	if input.ActualHours != nil {
		validateHours(verr, "actualHours", input.ActualHours)
		task.ActualHours = *input.ActualHours
	}
	if input.Tags != nil {
		task.Tags = domain.NormalizeTags(input.Tags)
	}
	return verr.Err()
}

// Delete removes a visible task and its comments.
func (s Service) Delete(ctx context.Context, p domain.Principal, taskID string) error {
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		if _, err := s.access.Within(tx).AuthorizeTask(ctx, p, taskID); err != nil {
			return err
		}
		if err := tx.DeleteCommentsByTask(ctx, taskID); err != nil {
			return err
		}
		return tx.DeleteTask(ctx, taskID)
	})
	if err != nil {
		return err
	}
	s.log.Info("task deleted", "task_id", taskID, "actor", p.UserID)
	return nil
}

// AddComment appends a comment to a visible task.
func (s Service) AddComment(ctx context.Context, p domain.Principal, taskID string, input CommentInput) (*domain.Comment, error) {
	verr := &domain.ValidationError{}
	content := strings.TrimSpace(input.Content)
	if content == "" {
		verr.Add("content", "comment content is required")
	}
	if input.Type == "" {
		input.Type = domain.CommentPlain
	}
	if !input.Type.Valid() {
		verr.Add("type", "unknown comment type")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	var task *domain.Task
	comment := &domain.Comment{
		ID:        uuid.NewString(),
		Content:   content,
		Type:      input.Type,
		TaskID:    taskID,
		AuthorID:  p.UserID,
		CreatedAt: s.now().UTC(),
	}
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		var err error
		if task, err = s.access.Within(tx).AuthorizeTask(ctx, p, taskID); err != nil {
			return err
		}
		return tx.CreateComment(ctx, comment)
	})
	if err != nil {
		return nil, err
	}
	if s.notify != nil {
		s.notify.CommentAdded(ctx, p, *task, comment.ID)
	}
	return comment, nil
}

// ListComments returns a visible task's comments oldest first.
func (s Service) ListComments(ctx context.Context, p domain.Principal, taskID string) ([]domain.Comment, error) {
	if _, err := s.access.AuthorizeTask(ctx, p, taskID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, taskID)
}
