package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

const projectColumns = `p.id, p.name, p.description, p.status, p.priority, p.start_date, p.end_date, p.budget, p.progress, p.owner_id, p.created_at, p.updated_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.Priority, &p.StartDate, &p.EndDate,
		&p.Budget, &p.Progress, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// CreateProject inserts a project.
func (r *Repository) CreateProject(ctx context.Context, project *domain.Project) error {
	const query = `INSERT INTO projects (id, name, description, status, priority, start_date, end_date, budget, progress, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, project.ID, project.Name, project.Description, project.Status, project.Priority,
			project.StartDate, project.EndDate, project.Budget, project.Progress, project.OwnerID, project.CreatedAt, project.UpdatedAt)
		return err
	})
}

// GetProjectByID fetches project details.
func (r *Repository) GetProjectByID(ctx context.Context, projectID string) (*domain.Project, error) {
	return r.getProject(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1`, projectID)
}

// LockProject fetches a project and, inside a transaction, locks its row
// until commit.
func (r *Repository) LockProject(ctx context.Context, projectID string) (*domain.Project, error) {
	return r.getProject(ctx, `SELECT `+projectColumns+` FROM projects p WHERE p.id = $1 FOR UPDATE`, projectID)
}

func (r *Repository) getProject(ctx context.Context, query, projectID string) (*domain.Project, error) {
	var p domain.Project
	err := r.run(ctx, func(q querier) error {
		var err error
		p, err = scanProject(q.QueryRow(ctx, query, projectID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject persists a project's mutable fields. Owner and creation time
// are immutable.
func (r *Repository) UpdateProject(ctx context.Context, project *domain.Project) error {
	const query = `UPDATE projects
		SET name = $2, description = $3, status = $4, priority = $5, start_date = $6, end_date = $7,
			budget = $8, progress = $9, updated_at = $10
		WHERE id = $1`
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, project.ID, project.Name, project.Description, project.Status, project.Priority,
			project.StartDate, project.EndDate, project.Budget, project.Progress, project.UpdatedAt)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// DeleteProject removes the project row. Dependents are deleted beforehand by
// the caller in the same transaction.
func (r *Repository) DeleteProject(ctx context.Context, projectID string) error {
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// ListProjects returns a page of projects visible under scope.
func (r *Repository) ListProjects(ctx context.Context, scope repository.Visibility, filter repository.ProjectFilter, opts repository.ListOptions) ([]domain.Project, int, error) {
	var args queryArgs
	conds := []string{visibleProject(scope, "p", &args)}
	if filter.Status != "" {
		conds = append(conds, "p.status = "+args.add(filter.Status))
	}
	if filter.Priority != "" {
		conds = append(conds, "p.priority = "+args.add(filter.Priority))
	}
	if filter.MemberID != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM project_members fm WHERE fm.project_id = p.id AND fm.user_id = "+args.add(filter.MemberID)+")")
	}
	if strings.TrimSpace(filter.Search) != "" {
		p := args.add(likePattern(filter.Search))
		conds = append(conds, "(p.name ILIKE "+p+" OR p.description ILIKE "+p+")")
	}
	order, err := orderBy(projectSortColumns, opts, "p.id")
	if err != nil {
		return nil, 0, err
	}
	countQuery := `SELECT COUNT(1) FROM projects p` + where(conds)
	countArgs := append([]any(nil), args...)
	listQuery := `SELECT ` + projectColumns + ` FROM projects p` + where(conds) + order + limitOffset(opts, &args)

	var (
		projects []domain.Project
		total    int
	)
	err = r.run(ctx, func(q querier) error {
		if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return err
		}
		rows, err := q.Query(ctx, listQuery, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		projects = make([]domain.Project, 0)
		for rows.Next() {
			p, err := scanProject(rows)
			if err != nil {
				return err
			}
			projects = append(projects, p)
		}
		return rows.Err()
	})
	return projects, total, err
}

// AddMember inserts a membership row. A duplicate pair conflicts.
func (r *Repository) AddMember(ctx context.Context, member *domain.ProjectMember) error {
	const query = `INSERT INTO project_members (project_id, user_id, role, joined_at) VALUES ($1, $2, $3, $4)`
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, member.ProjectID, member.UserID, member.Role, member.JoinedAt)
		return err
	})
}

// GetMember fetches one membership. Inside a transaction the row is locked
// until commit.
func (r *Repository) GetMember(ctx context.Context, projectID, userID string) (*domain.ProjectMember, error) {
	query := `SELECT project_id, user_id, role, joined_at FROM project_members WHERE project_id = $1 AND user_id = $2`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}
	var m domain.ProjectMember
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, projectID, userID).Scan(&m.ProjectID, &m.UserID, &m.Role, &m.JoinedAt)
	})
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMemberRole changes a membership role.
func (r *Repository) UpdateMemberRole(ctx context.Context, projectID, userID string, role domain.ProjectRole) error {
	const query = `UPDATE project_members SET role = $3 WHERE project_id = $1 AND user_id = $2`
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, projectID, userID, role)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// DeleteMember removes a membership row.
func (r *Repository) DeleteMember(ctx context.Context, projectID, userID string) error {
	const query = `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, projectID, userID)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// DeleteMembersByProject removes every membership of a project.
func (r *Repository) DeleteMembersByProject(ctx context.Context, projectID string) error {
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, projectID)
		return err
	})
}

// ListMembers returns memberships joined with their users, ordered by name.
func (r *Repository) ListMembers(ctx context.Context, projectID string) ([]domain.MemberDetail, error) {
	const query = `SELECT u.id, u.first_name, u.last_name, u.email, u.role, pm.role, pm.joined_at
		FROM project_members pm
		INNER JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = $1
		ORDER BY u.first_name, u.last_name, u.id`
	var members []domain.MemberDetail
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()
		members = make([]domain.MemberDetail, 0)
		for rows.Next() {
			var m domain.MemberDetail
			if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.GlobalRole, &m.Role, &m.JoinedAt); err != nil {
				return err
			}
			members = append(members, m)
		}
		return rows.Err()
	})
	return members, err
}
