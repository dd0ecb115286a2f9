// Package access decides who may see or mutate projects and tasks.
package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// Hidden and missing rows share these errors so callers cannot test for
// existence.
var (
	ErrProjectNotFound = fmt.Errorf("project %w", domain.ErrNotFound)
	ErrTaskNotFound    = fmt.Errorf("task %w", domain.ErrNotFound)
	// ErrNotAssignable rejects an assignee without a membership on the project.
	ErrNotAssignable = domain.NewValidationError("assigneeId", "user is not a member of this project")
	errNoPrincipal   = fmt.Errorf("principal missing: %w", domain.ErrUnauthenticated)
)

// ManagerRoles may mutate a project and its memberships.
var ManagerRoles = []domain.ProjectRole{domain.ProjectRoleOwner, domain.ProjectRoleAdmin}

// Reader is the store surface the evaluator consults.
type Reader interface {
	GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error)
	GetMember(ctx context.Context, projectID, userID string) (*domain.ProjectMember, error)
	GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error)
}

// Evaluator is the Access Control Evaluator. It performs no writes.
type Evaluator struct {
	reader Reader
}

// New binds an evaluator to reader.
func New(reader Reader) Evaluator {
	return Evaluator{reader: reader}
}

// Within rebinds the evaluator to a transaction so checks run against the
// same snapshot as the write that follows.
func (e Evaluator) Within(tx Reader) Evaluator {
	return Evaluator{reader: tx}
}

// VisibleProjects returns the predicate narrowing project queries for p.
func (e Evaluator) VisibleProjects(p domain.Principal) repository.Visibility {
	if p.UserID == "" {
		return repository.Visibility{}
	}
	return repository.VisibleTo(p.UserID)
}

// VisibleTasks returns the predicate narrowing task queries for p. A task is
// visible exactly when its project is.
func (e Evaluator) VisibleTasks(p domain.Principal) repository.Visibility {
	return e.VisibleProjects(p)
}

// projectRole resolves p's role on project; ok is false without ownership or
// membership.
func (e Evaluator) projectRole(ctx context.Context, p domain.Principal, project *domain.Project) (domain.ProjectRole, bool, error) {
	if project.OwnerID == p.UserID {
		return domain.ProjectRoleOwner, true, nil
	}
	member, err := e.reader.GetMember(ctx, project.ID, p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return member.Role, true, nil
}

func (e Evaluator) loadProject(ctx context.Context, projectID string) (*domain.Project, error) {
	project, err := e.reader.GetProjectByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return project, nil
}

// CanAccessProject reports whether p owns or is a member of the project.
func (e Evaluator) CanAccessProject(ctx context.Context, p domain.Principal, projectID string) (bool, error) {
	if p.UserID == "" {
		return false, nil
	}
	project, err := e.loadProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return false, nil
		}
		return false, err
	}
	_, ok, err := e.projectRole(ctx, p, project)
	return ok, err
}

// AuthorizeProjectRead returns the project and p's role on it when the
// project is visible to p, ErrProjectNotFound otherwise.
func (e Evaluator) AuthorizeProjectRead(ctx context.Context, p domain.Principal, projectID string) (*domain.Project, domain.ProjectRole, error) {
	if p.UserID == "" {
		return nil, "", errNoPrincipal
	}
	project, err := e.loadProject(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	role, ok, err := e.projectRole(ctx, p, project)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", ErrProjectNotFound
	}
	return project, role, nil
}

// AuthorizeProjectMutation admits owners and project admins. Invisible
// projects report ErrProjectNotFound; visible ones without the role report
// domain.ErrForbidden. The global admin role grants nothing here.
func (e Evaluator) AuthorizeProjectMutation(ctx context.Context, p domain.Principal, projectID string) (*domain.Project, error) {
	project, role, err := e.AuthorizeProjectRead(ctx, p, projectID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(ManagerRoles, role) {
		return nil, fmt.Errorf("project role %q cannot modify project: %w", role, domain.ErrForbidden)
	}
	return project, nil
}

// RequireProjectRole fails with domain.ErrForbidden unless p owns the project
// or holds one of roles on it. A missing project is also Forbidden so
// role-gated paths do not leak existence.
func (e Evaluator) RequireProjectRole(ctx context.Context, p domain.Principal, projectID string, roles ...domain.ProjectRole) error {
	if p.UserID == "" {
		return errNoPrincipal
	}
	project, err := e.loadProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return fmt.Errorf("project role required: %w", domain.ErrForbidden)
		}
		return err
	}
	role, ok, err := e.projectRole(ctx, p, project)
	if err != nil {
		return err
	}
	if !ok || (role != domain.ProjectRoleOwner && !slices.Contains(roles, role)) {
		return fmt.Errorf("project role required: %w", domain.ErrForbidden)
	}
	return nil
}

// AuthorizeTask returns the task when its project is visible to p. Any
// membership role may read and mutate tasks.
func (e Evaluator) AuthorizeTask(ctx context.Context, p domain.Principal, taskID string) (*domain.Task, error) {
	if p.UserID == "" {
		return nil, errNoPrincipal
	}
	task, err := e.reader.GetTaskByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	if _, _, err := e.AuthorizeProjectRead(ctx, p, task.ProjectID); err != nil {
		if errors.Is(err, ErrProjectNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// RequireAssignable fails with ErrNotAssignable unless userID currently holds
// a membership on the project.
func (e Evaluator) RequireAssignable(ctx context.Context, projectID, userID string) error {
	if _, err := e.reader.GetMember(ctx, projectID, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ErrNotAssignable
		}
		return err
	}
	return nil
}

// RequireGlobalRole fails with domain.ErrForbidden unless p holds one of roles.
func RequireGlobalRole(p domain.Principal, roles ...domain.GlobalRole) error {
	if p.UserID == "" {
		return errNoPrincipal
	}
	if !slices.Contains(roles, p.Role) {
		return fmt.Errorf("global role required: %w", domain.ErrForbidden)
	}
	return nil
}
