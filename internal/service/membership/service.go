// Package membership mutates project memberships under role guards.
package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
)

var (
	ErrUserNotFound   = fmt.Errorf("user %w", domain.ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("membership %w", domain.ErrNotFound)
	ErrAlreadyMember  = fmt.Errorf("user is already a project member: %w", domain.ErrConflict)
	// ErrOwnerImmutable guards the owner row against demotion and removal.
	ErrOwnerImmutable = fmt.Errorf("owner membership cannot be changed or removed: %w", domain.ErrInvariantViolation)
)

// Notifier receives invitation events after commit.
type Notifier interface {
	ProjectInvitation(ctx context.Context, actor domain.Principal, project domain.Project, inviteeID string, role domain.ProjectRole)
}

// Service is the Membership Manager.
type Service struct {
	store  repository.Store
	access access.Evaluator
	notify Notifier
	log    *slog.Logger
	now    func() time.Time
}

// New constructs the manager.
func New(store repository.Store, notify Notifier, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return Service{store: store, access: access.New(store), notify: notify, log: log, now: time.Now}
}

func validRole(role domain.ProjectRole) error {
	if !role.Assignable() {
		return domain.NewValidationError("role", "must be one of admin, member, viewer")
	}
	return nil
}

// guard runs the shared preconditions inside tx, in order: p manages the
// project, then the target user exists (and is active when requireActive).
// The project row stays locked until commit.
func (s Service) guard(ctx context.Context, tx repository.Repositories, p domain.Principal, projectID, userID string, requireActive bool) (*domain.Project, error) {
	project, err := tx.LockProject(ctx, projectID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if err := s.access.Within(tx).RequireProjectRole(ctx, p, projectID, access.ManagerRoles...); err != nil {
		return nil, err
	}
	user, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if requireActive && !user.IsActive {
		return nil, ErrUserNotFound
	}
	return project, nil
}

// existing loads the target membership and rejects the owner row.
func existing(ctx context.Context, tx repository.Repositories, project *domain.Project, userID string) (*domain.ProjectMember, error) {
	member, err := tx.GetMember(ctx, project.ID, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if member.Role == domain.ProjectRoleOwner || project.OwnerID == userID {
		return nil, ErrOwnerImmutable
	}
	return member, nil
}

// AddMember grants userID role on the project. An empty role means member.
// The invitee is notified after commit.
func (s Service) AddMember(ctx context.Context, p domain.Principal, projectID, userID string, role domain.ProjectRole) (domain.ProjectMember, error) {
	if role == "" {
		role = domain.ProjectRoleMember
	}
	if err := validRole(role); err != nil {
		return domain.ProjectMember{}, err
	}

	var (
		member  domain.ProjectMember
		project *domain.Project
	)
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		var err error
		project, err = s.guard(ctx, tx, p, projectID, userID, true)
		if err != nil {
			return err
		}
		if _, err := tx.GetMember(ctx, projectID, userID); err == nil {
			return ErrAlreadyMember
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		member = domain.ProjectMember{ProjectID: projectID, UserID: userID, Role: role, JoinedAt: s.now().UTC()}
		if err := tx.AddMember(ctx, &member); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return ErrAlreadyMember
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.ProjectMember{}, err
	}

	s.log.Info("project member added", "project_id", projectID, "user_id", userID, "role", role, "actor", p.UserID)
	if s.notify != nil {
		s.notify.ProjectInvitation(ctx, p, *project, userID, role)
	}
	return member, nil
}

// ChangeMemberRole sets a non-owner member's role.
func (s Service) ChangeMemberRole(ctx context.Context, p domain.Principal, projectID, userID string, role domain.ProjectRole) (domain.ProjectMember, error) {
	if err := validRole(role); err != nil {
		return domain.ProjectMember{}, err
	}
	var member domain.ProjectMember
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		project, err := s.guard(ctx, tx, p, projectID, userID, true)
		if err != nil {
			return err
		}
		current, err := existing(ctx, tx, project, userID)
		if err != nil {
			return err
		}
		if err := tx.UpdateMemberRole(ctx, projectID, userID, role); err != nil {
			return err
		}
		member = *current
		member.Role = role
		return nil
	})
	if err != nil {
		return domain.ProjectMember{}, err
	}
	s.log.Info("project member role changed", "project_id", projectID, "user_id", userID, "role", role, "actor", p.UserID)
	return member, nil
}

// RemoveMember deletes a non-owner membership and unassigns every task of the
// project assigned to that user, atomically. It returns the unassigned task
// IDs.
func (s Service) RemoveMember(ctx context.Context, p domain.Principal, projectID, userID string) ([]string, error) {
	var unassigned []string
	err := s.store.WithinTx(ctx, func(tx repository.Repositories) error {
		project, err := s.guard(ctx, tx, p, projectID, userID, false)
		if err != nil {
			return err
		}
		if _, err := existing(ctx, tx, project, userID); err != nil {
			return err
		}
		ids, err := tx.ListTaskIDsByAssignee(ctx, projectID, userID)
		if err != nil {
			return err
		}
		if err := tx.DeleteMember(ctx, projectID, userID); err != nil {
			return err
		}
		if _, err := tx.UnassignTasks(ctx, ids); err != nil {
			return err
		}
		unassigned = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("project member removed", "project_id", projectID, "user_id", userID, "unassigned_tasks", len(unassigned), "actor", p.UserID)
	return unassigned, nil
}

// ListMembers lists a visible project's members ordered by name.
func (s Service) ListMembers(ctx context.Context, p domain.Principal, projectID string) ([]domain.MemberDetail, error) {
	if _, _, err := s.access.AuthorizeProjectRead(ctx, p, projectID); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, projectID)
}
