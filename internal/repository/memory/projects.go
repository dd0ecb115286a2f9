package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// CreateProject inserts a project. The owner must exist.
func (s *Store) CreateProject(ctx context.Context, project *domain.Project) error {
	return s.write(ctx, "CreateProject", func(st *state) error {
		if _, ok := st.projects[project.ID]; ok {
			return repository.ErrConflict
		}
		if _, ok := st.users[project.OwnerID]; !ok {
			return repository.ErrNotFound
		}
		st.projects[project.ID] = copyProject(*project)
		return nil
	})
}

// GetProjectByID fetches a project.
func (s *Store) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	var out *domain.Project
	err := s.read(ctx, "GetProjectByID", func(st *state) error {
		p, ok := st.projects[projectID]
		if !ok {
			return repository.ErrNotFound
		}
		p = copyProject(p)
		out = &p
		return nil
	})
	return out, err
}

// LockProject reads a project. Transactions are already serialised, so no
// extra locking is needed.
func (s *Store) LockProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if err := s.fault(ctx, "LockProject"); err != nil {
		return nil, err
	}
	return s.GetProjectByID(ctx, projectID)
}

// UpdateProject replaces a project's mutable fields.
func (s *Store) UpdateProject(ctx context.Context, project *domain.Project) error {
	return s.write(ctx, "UpdateProject", func(st *state) error {
		existing, ok := st.projects[project.ID]
		if !ok {
			return repository.ErrNotFound
		}
		updated := copyProject(*project)
		updated.OwnerID = existing.OwnerID
		updated.CreatedAt = existing.CreatedAt
		st.projects[project.ID] = updated
		return nil
	})
}

// DeleteProject removes a project row. Dependent rows are removed by the
// caller beforehand.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	return s.write(ctx, "DeleteProject", func(st *state) error {
		if _, ok := st.projects[projectID]; !ok {
			return repository.ErrNotFound
		}
		delete(st.projects, projectID)
		return nil
	})
}

// ListProjects returns a page of projects visible under scope.
func (s *Store) ListProjects(ctx context.Context, scope repository.Visibility, filter repository.ProjectFilter, opts repository.ListOptions) ([]domain.Project, int, error) {
	var (
		page  []domain.Project
		total int
	)
	err := s.read(ctx, "ListProjects", func(st *state) error {
		matched := make([]domain.Project, 0)
		for _, p := range st.projects {
			if !st.projectVisible(scope, p) {
				continue
			}
			if filter.Status != "" && p.Status != filter.Status {
				continue
			}
			if filter.Priority != "" && p.Priority != filter.Priority {
				continue
			}
			if filter.MemberID != "" && !st.isMember(p.ID, filter.MemberID) {
				continue
			}
			if filter.Search != "" && !containsFold(p.Name, filter.Search) && !containsFold(p.Description, filter.Search) {
				continue
			}
			matched = append(matched, copyProject(p))
		}
		slices.SortFunc(matched, func(a, b domain.Project) int {
			var c int
			switch opts.SortBy {
			case "name":
				c = cmp.Compare(a.Name, b.Name)
			case "status":
				c = cmp.Compare(rank(domain.ProjectStatuses, a.Status), rank(domain.ProjectStatuses, b.Status))
			case "priority":
				c = cmp.Compare(rank(domain.Priorities, a.Priority), rank(domain.Priorities, b.Priority))
			case "endDate":
				c = compareTimePtr(a.EndDate, b.EndDate)
			default:
				c = a.CreatedAt.Compare(b.CreatedAt)
			}
			if c == 0 {
				c = cmp.Compare(a.ID, b.ID)
			}
			return ordered(c, opts.SortOrder)
		})
		total = len(matched)
		page = paginate(matched, opts)
		return nil
	})
	return page, total, err
}

// AddMember inserts a membership; duplicates conflict.
func (s *Store) AddMember(ctx context.Context, member *domain.ProjectMember) error {
	return s.write(ctx, "AddMember", func(st *state) error {
		if _, ok := st.projects[member.ProjectID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[member.UserID]; !ok {
			return repository.ErrNotFound
		}
		key := memberKey{projectID: member.ProjectID, userID: member.UserID}
		if _, ok := st.members[key]; ok {
			return repository.ErrConflict
		}
		st.members[key] = *member
		return nil
	})
}

// GetMember fetches one membership.
func (s *Store) GetMember(ctx context.Context, projectID, userID string) (*domain.ProjectMember, error) {
	var out *domain.ProjectMember
	err := s.read(ctx, "GetMember", func(st *state) error {
		m, ok := st.members[memberKey{projectID: projectID, userID: userID}]
		if !ok {
			return repository.ErrNotFound
		}
		out = &m
		return nil
	})
	return out, err
}

// UpdateMemberRole changes a membership role.
func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.ProjectRole) error {
	return s.write(ctx, "UpdateMemberRole", func(st *state) error {
		key := memberKey{projectID: projectID, userID: userID}
		m, ok := st.members[key]
		if !ok {
			return repository.ErrNotFound
		}
		m.Role = role
		st.members[key] = m
		return nil
	})
}

// DeleteMember removes a membership.
func (s *Store) DeleteMember(ctx context.Context, projectID, userID string) error {
	return s.write(ctx, "DeleteMember", func(st *state) error {
		key := memberKey{projectID: projectID, userID: userID}
		if _, ok := st.members[key]; !ok {
			return repository.ErrNotFound
		}
		delete(st.members, key)
		return nil
	})
}

// DeleteMembersByProject removes every membership of a project.
func (s *Store) DeleteMembersByProject(ctx context.Context, projectID string) error {
	return s.write(ctx, "DeleteMembersByProject", func(st *state) error {
		for key := range st.members {
			if key.projectID == projectID {
				delete(st.members, key)
			}
		}
		return nil
	})
}

// ListMembers returns memberships joined with users, ordered by name.
func (s *Store) ListMembers(ctx context.Context, projectID string) ([]domain.MemberDetail, error) {
	var out []domain.MemberDetail
	err := s.read(ctx, "ListMembers", func(st *state) error {
		out = make([]domain.MemberDetail, 0)
		for key, m := range st.members {
			if key.projectID != projectID {
				continue
			}
			u := st.users[m.UserID]
			out = append(out, domain.MemberDetail{
				UserSummary: u.Summary(),
				GlobalRole:  u.Role,
				Role:        m.Role,
				JoinedAt:    m.JoinedAt,
			})
		}
		slices.SortFunc(out, func(a, b domain.MemberDetail) int {
			if c := cmp.Compare(a.FirstName, b.FirstName); c != 0 {
				return c
			}
			if c := cmp.Compare(a.LastName, b.LastName); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		return nil
	})
	return out, err
}
