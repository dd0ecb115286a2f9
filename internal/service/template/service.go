// Package template stamps projects out of the built-in blueprints.
package template

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

var ErrTemplateNotFound = fmt.Errorf("template %w", domain.ErrNotFound)

const week = 7 * 24 * time.Hour

// Summary is a template list item.
type Summary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	TaskCount      int    `json:"taskCount"`
	EstimatedHours int    `json:"estimatedHours"`
}

// CreateInput customises the stamped project.
type CreateInput struct {
	Name        string
	Description string
	Priority    domain.Priority
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *float64
	MemberIDs   []string
}

// Result is the created project with its tasks.
type Result struct {
	Project  domain.Project `json:"project"`
	Tasks    []domain.Task  `json:"tasks"`
	Template Summary        `json:"template"`
}

// Notifier receives invitations for the extra members after commit.
type Notifier interface {
	ProjectInvitation(ctx context.Context, actor domain.Principal, project domain.Project, inviteeID string, role domain.ProjectRole)
}

// Service serves the template catalogue.
type Service struct {
	store  repository.Store
	notify Notifier
	log    *slog.Logger
	now    func() time.Time
}

// New constructs the template service.
func New(store repository.Store, notify Notifier, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return Service{store: store, notify: notify, log: log, now: time.Now}
}

func summarize(t Template) Summary {
	return Summary{ID: t.ID, Name: t.Name, Description: t.Description, TaskCount: len(t.Tasks), EstimatedHours: t.EstimatedHours()}
}

// List returns every built-in template.
func (s Service) List() []Summary {
	out := make([]Summary, 0, len(builtins))
	for _, t := range builtins {
		out = append(out, summarize(t))
	}
	return out
}

// Get returns one template with its tasks.
func (s Service) Get(id string) (Template, error) {
	i := slices.IndexFunc(builtins, func(t Template) bool { return t.ID == id })
	if i < 0 {
		return Template{}, ErrTemplateNotFound
	}
	return builtins[i], nil
}

// CreateProject creates a planning project owned by p from the template,
// adds the requested members and one todo task per template entry, all in a
// single transaction. With a start date each task is due one more week after
// it than the previous.
func (s Service) CreateProject(ctx context.Context, p domain.Principal, templateID string, input CreateInput) (Result, error) {
	if p.UserID == "" {
		return Result{}, domain.ErrUnauthenticated
	}
	tmpl, err := s.Get(templateID)
	if err != nil {
		return Result{}, err
	}
	verr := &domain.ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		verr.Add("name", "project name is required")
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !input.Priority.Valid() {
		verr.Add("priority", "unknown priority")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		verr.Add("endDate", "must not be before startDate")
	}
	if input.Budget != nil && *input.Budget < 0 {
		verr.Add("budget", "must not be negative")
	}
	if err := verr.Err(); err != nil {
		return Result{}, err
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		description = tmpl.Description
	}

	now := s.now().UTC()
	project := domain.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      domain.ProjectPlanning,
		Priority:    input.Priority,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Budget:      input.Budget,
		OwnerID:     p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	members := make([]string, 0, len(input.MemberIDs))
	for _, id := range input.MemberIDs {
		if id != "" && id != p.UserID && !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	tasks := make([]domain.Task, 0, len(tmpl.Tasks))
	for i, entry := range tmpl.Tasks {
		entry := entry // per-iteration copy; &entry.EstimatedHours escapes (module targets go 1.21 loop semantics)
		task := domain.Task{
			ID:             uuid.NewString(),
			Title:          entry.Title,
			Description:    entry.Description,
			Status:         domain.TaskTodo,
			Priority:       entry.Priority,
			EstimatedHours: &entry.EstimatedHours,
			Tags:           slices.Clone(entry.Tags),
			ProjectID:      project.ID,
			CreatedByID:    p.UserID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if input.StartDate != nil {
			due := input.StartDate.Add(time.Duration(i+1) * week)
			task.DueDate = &due
		}
		tasks = append(tasks, task)
	}

	err = s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.CreateProject(ctx, &project); err != nil {
			return err
		}
		if err := tx.AddMember(ctx, &domain.ProjectMember{ProjectID: project.ID, UserID: p.UserID, Role: domain.ProjectRoleOwner, JoinedAt: now}); err != nil {
			return err
		}
		for _, id := range members {
			user, err := tx.GetUserByID(ctx, id)
			if err != nil || !user.IsActive {
				if err == nil || errors.Is(err, domain.ErrNotFound) {
					return domain.NewValidationError("memberIds", "unknown or inactive user "+id)
				}
				return err
			}
			if err := tx.AddMember(ctx, &domain.ProjectMember{ProjectID: project.ID, UserID: id, Role: domain.ProjectRoleMember, JoinedAt: now}); err != nil {
				return err
			}
		}
		for i := range tasks {
			if err := tx.CreateTask(ctx, &tasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.Info("project created from template", "project_id", project.ID, "template_id", tmpl.ID, "tasks", len(tasks), "members", len(members))
	if s.notify != nil {
		for _, id := range members {
			s.notify.ProjectInvitation(ctx, p, project, id, domain.ProjectRoleMember)
		}
	}
	return Result{Project: project, Tasks: tasks, Template: summarize(tmpl)}, nil
}
