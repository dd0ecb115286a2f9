// Package project implements project CRUD on top of the access evaluator.
package project

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
	"github.com/splax/taskhub/internal/service/analytics"
)

var sortable = []string{"createdAt", "name", "status", "priority", "endDate"}

// CreateInput encapsulates project creation attributes.
type CreateInput struct {
	Name        string
	Description string
	Status      domain.ProjectStatus
	Priority    domain.Priority
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *float64
}

// UpdateInput carries a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Name        *string
	Description *string
	Status      *domain.ProjectStatus
	Priority    *domain.Priority
	StartDate   *time.Time
	EndDate     *time.Time
	Budget      *float64
	Progress    *int
}

// Summary is a list item: the project with stats derived from its tasks.
type Summary struct {
	domain.Project
	TaskStats domain.TaskStats `json:"taskStats"`
}

// Detail is the single-project view.
type Detail struct {
	domain.Project
	Owner              domain.UserSummary        `json:"owner"`
	Members            []domain.MemberDetail     `json:"members"`
	TaskStats          map[domain.TaskStatus]int `json:"taskStats"`
	TotalTasks         int                       `json:"totalTasks"`
	CompletedTasks     int                       `json:"completedTasks"`
	ProgressPercentage int                       `json:"progressPercentage"`
}

// Notifier receives project update events after commit.
type Notifier interface {
	ProjectUpdated(ctx context.Context, actor domain.Principal, project domain.Project)
}

// Service orchestrates project management.
type Service struct {
	store  repository.Store
	access access.Evaluator
	notify Notifier
	logger *slog.Logger
	now    func() time.Time
}

// New returns a project service.
func New(store repository.Store, notify Notifier, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{store: store, access: access.New(store), notify: notify, logger: logger, now: time.Now}
}

func validateDates(verr *domain.ValidationError, start, end *time.Time) {
	if start != nil && end != nil && end.Before(*start) {
		verr.Add("endDate", "must not be before startDate")
	}
}

func validateBudget(verr *domain.ValidationError, budget *float64) {
	if budget != nil && *budget < 0 {
		verr.Add("budget", "must not be negative")
	}
}

// List returns a page of projects visible to p, each with task stats.
func (s Service) List(ctx context.Context, p domain.Principal, filter repository.ProjectFilter, opts repository.ListOptions) (domain.Page[Summary], error) {
	verr := &domain.ValidationError{}
	if filter.Status != "" && !filter.Status.Valid() {
		verr.Add("status", "unknown project status")
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		verr.Add("priority", "unknown priority")
	}
	if err := verr.Err(); err != nil {
		return domain.Page[Summary]{}, err
	}
	opts, err := opts.Normalize(sortable, "createdAt", repository.DefaultLimit)
	if err != nil {
		return domain.Page[Summary]{}, err
	}
	return s.list(ctx, s.access.VisibleProjects(p), filter, opts)
}

// ListForUser returns the projects userID is a member of. Only the user
// themself and global admins may ask.
func (s Service) ListForUser(ctx context.Context, p domain.Principal, userID string, opts repository.ListOptions) (domain.Page[Summary], error) {
	if p.UserID != userID {
		if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
			return domain.Page[Summary]{}, err
		}
	}
	opts, err := opts.Normalize(sortable, "createdAt", repository.DefaultLimit)
	if err != nil {
		return domain.Page[Summary]{}, err
	}
	scope := s.access.VisibleProjects(p)
	if p.UserID != userID {
		scope = repository.Unrestricted()
	}
	return s.list(ctx, scope, repository.ProjectFilter{MemberID: userID}, opts)
}

func (s Service) list(ctx context.Context, scope repository.Visibility, filter repository.ProjectFilter, opts repository.ListOptions) (domain.Page[Summary], error) {
	projects, total, err := s.store.ListProjects(ctx, scope, filter, opts)
	if err != nil {
		return domain.Page[Summary]{}, err
	}
	ids := make([]string, 0, len(projects))
	for _, project := range projects {
		ids = append(ids, project.ID)
	}
	stats, err := s.store.ProjectTaskStats(ctx, ids)
	if err != nil {
		return domain.Page[Summary]{}, err
	}
	items := make([]Summary, 0, len(projects))
	for _, project := range projects {
		st := stats[project.ID]
		st.Progress = analytics.Percent(st.Completed, st.Total)
		items = append(items, Summary{Project: project, TaskStats: st})
	}
	return domain.Page[Summary]{Items: items, Pagination: domain.NewPagination(total, opts.Page, opts.Limit)}, nil
}

// Get returns project details when the project is visible to p.
func (s Service) Get(ctx context.Context, p domain.Principal, projectID string) (Detail, error) {
	project, _, err := s.access.AuthorizeProjectRead(ctx, p, projectID)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Project: *project}
	owner, err := s.store.GetUserByID(ctx, project.OwnerID)
	if err != nil {
		return Detail{}, err
	}
	detail.Owner = owner.Summary()
	if detail.Members, err = s.store.ListMembers(ctx, projectID); err != nil {
		return Detail{}, err
	}
	counts, err := s.store.TaskStatusCounts(ctx, repository.TaskQuery{Scope: s.access.VisibleTasks(p), ProjectID: projectID})
	if err != nil {
		return Detail{}, err
	}
	detail.TaskStats = make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for _, status := range domain.TaskStatuses {
		detail.TaskStats[status] = counts[status]
		detail.TotalTasks += counts[status]
	}
	detail.CompletedTasks = counts[domain.TaskDone]
	detail.ProgressPercentage = analytics.Percent(detail.CompletedTasks, detail.TotalTasks)
	return detail, nil
}

// Create inserts the project and the creator's owner membership together.
func (s Service) Create(ctx context.Context, p domain.Principal, input CreateInput) (*domain.Project, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	verr := &domain.ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		verr.Add("name", "project name is required")
	}
	if input.Status == "" {
		input.Status = domain.ProjectPlanning
	}
	if !input.Status.Valid() {
		verr.Add("status", "unknown project status")
	}
	if input.Priority == "" {
		input.Priority = domain.PriorityMedium
	}
	if !input.Priority.Valid() {
		verr.Add("priority", "unknown priority")
	}
	validateDates(verr, input.StartDate, input.EndDate)
	validateBudget(verr, input.Budget)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	project := &domain.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Status:      input.Status,
		Priority:    input.Priority,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Budget:      input.Budget,
		OwnerID:     p.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.CreateProject(ctx, project); err != nil {
			return err
		}
		return tx.AddMember(ctx, &domain.ProjectMember{ProjectID: project.ID, UserID: p.UserID, Role: domain.ProjectRoleOwner, JoinedAt: now})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", project.ID, "owner_id", project.OwnerID)
	return project, nil
}

// Update applies a partial update. Owners and project admins only.
func (s Service) Update(ctx context.Context, p domain.Principal, projectID string, input UpdateInput) (*domain.Project, error) {
	var project *domain.Project
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		current, err := s.access.Within(tx).AuthorizeProjectMutation(ctx, p, projectID)
		if err != nil {
			return err
		}
		if err := apply(current, input); err != nil {
			return err
		}
		current.UpdatedAt = s.now().UTC()
		if err := tx.UpdateProject(ctx, current); err != nil {
			return err
		}
		project = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("project updated", "project_id", project.ID, "actor", p.UserID)
	if s.notify != nil {
		s.notify.ProjectUpdated(ctx, p, *project)
	}
	return project, nil
}

func apply(project *domain.Project, input UpdateInput) error {
	verr := &domain.ValidationError{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			verr.Add("name", "project name is required")
		}
		project.Name = name
	}
	if input.Description != nil {
		project.Description = strings.TrimSpace(*input.Description)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			verr.Add("status", "unknown project status")
		}
		project.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			verr.Add("priority", "unknown priority")
		}
		project.Priority = *input.Priority
	}
	if input.StartDate != nil {
		project.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		project.EndDate = input.EndDate
	}
	validateDates(verr, project.StartDate, project.EndDate)
	if input.Budget != nil {
		validateBudget(verr, input.Budget)
		project.Budget = input.Budget
	}
	if input.Progress != nil {
		if *input.Progress < 0 || *input.Progress > 100 {
			verr.Add("progress", "must be between 0 and 100")
		}
		project.Progress = *input.Progress
	}
	return verr.Err()
}

// Delete removes the project with its comments, tasks and memberships in one
// transaction. Owners and project admins only.
func (s Service) Delete(ctx context.Context, p domain.Principal, projectID string) error {
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		if _, err := tx.LockProject(ctx, projectID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return access.ErrProjectNotFound
			}
			return err
		}
		if _, err := s.access.Within(tx).AuthorizeProjectMutation(ctx, p, projectID); err != nil {
			return err
		}
		if err := tx.DeleteCommentsByProject(ctx, projectID); err != nil {
			return err
		}
		if err := tx.DeleteTasksByProject(ctx, projectID); err != nil {
			return err
		}
		if err := tx.DeleteMembersByProject(ctx, projectID); err != nil {
			return err
		}
		return tx.DeleteProject(ctx, projectID)
	})
	if err != nil {
		return err
	}
	s.logger.Info("project deleted", "project_id", projectID, "actor", p.UserID)
	return nil
}
