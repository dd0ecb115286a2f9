package postgres

import (
	"context"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// taskConds renders the predicates of query over tasks aliased as t.
func taskConds(query repository.TaskQuery, args *queryArgs) []string {
	conds := []string{visibleTask(query.Scope, "t", args)}
	if query.ProjectID != "" {
		conds = append(conds, "t.project_id = "+args.add(query.ProjectID))
	}
	if query.AssigneeID != "" {
		conds = append(conds, "t.assignee_id = "+args.add(query.AssigneeID))
	}
	if query.Status != "" {
		conds = append(conds, "t.status = "+args.add(query.Status))
	}
	if query.ExcludeDone {
		conds = append(conds, "t.status <> 'done'")
	}
	if query.DueBefore != nil {
		conds = append(conds, "t.due_date < "+args.add(*query.DueBefore))
	}
	if query.UpdatedSince != nil {
		conds = append(conds, "t.updated_at >= "+args.add(*query.UpdatedSince))
	}
	return conds
}

// CountProjects counts projects visible under scope.
func (r *Repository) CountProjects(ctx context.Context, scope repository.Visibility) (int, error) {
	var args queryArgs
	query := `SELECT COUNT(1) FROM projects p WHERE ` + visibleProject(scope, "p", &args)
	var n int
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, args...).Scan(&n)
	})
	return n, err
}

// CountTasks counts tasks matching query.
func (r *Repository) CountTasks(ctx context.Context, query repository.TaskQuery) (int, error) {
	var args queryArgs
	sql := `SELECT COUNT(1) FROM tasks t` + where(taskConds(query, &args))
	var n int
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, sql, args...).Scan(&n)
	})
	return n, err
}

// TaskStatusCounts groups tasks matching query by status.
func (r *Repository) TaskStatusCounts(ctx context.Context, query repository.TaskQuery) (map[domain.TaskStatus]int, error) {
	out := make(map[domain.TaskStatus]int)
	err := r.groupCount(ctx, "t.status", query, func(key string, n int) {
		out[domain.TaskStatus(key)] = n
	})
	return out, err
}

// TaskPriorityCounts groups tasks matching query by priority.
func (r *Repository) TaskPriorityCounts(ctx context.Context, query repository.TaskQuery) (map[domain.Priority]int, error) {
	out := make(map[domain.Priority]int)
	err := r.groupCount(ctx, "t.priority", query, func(key string, n int) {
		out[domain.Priority(key)] = n
	})
	return out, err
}

func (r *Repository) groupCount(ctx context.Context, column string, query repository.TaskQuery, emit func(key string, n int)) error {
	var args queryArgs
	sql := `SELECT ` + column + `, COUNT(1) FROM tasks t` + where(taskConds(query, &args)) + ` GROUP BY ` + column
	return r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				key string
				n   int
			)
			if err := rows.Scan(&key, &n); err != nil {
				return err
			}
			emit(key, n)
		}
		return rows.Err()
	})
}

// TaskAssigneeCounts groups a project's tasks by assignee, largest first. The
// unassigned bucket carries a nil AssigneeID.
func (r *Repository) TaskAssigneeCounts(ctx context.Context, projectID string) ([]domain.AssigneeCount, error) {
	const query = `SELECT t.assignee_id, COALESCE(u.first_name, ''), COALESCE(u.last_name, ''), COUNT(1)
		FROM tasks t
		LEFT JOIN users u ON u.id = t.assignee_id
		WHERE t.project_id = $1
		GROUP BY t.assignee_id, u.first_name, u.last_name
		ORDER BY COUNT(1) DESC, t.assignee_id NULLS FIRST`
	var out []domain.AssigneeCount
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, projectID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.AssigneeCount, 0)
		for rows.Next() {
			var c domain.AssigneeCount
			if err := rows.Scan(&c.AssigneeID, &c.FirstName, &c.LastName, &c.Count); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// TaskHourTotals sums and averages a project's hours with AVG semantics.
func (r *Repository) TaskHourTotals(ctx context.Context, projectID string) (domain.HourTotals, error) {
	const query = `SELECT COALESCE(SUM(estimated_hours), 0), COALESCE(SUM(actual_hours), 0),
			COALESCE(AVG(estimated_hours), 0)::float8, COALESCE(AVG(actual_hours), 0)::float8
		FROM tasks WHERE project_id = $1`
	var out domain.HourTotals
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, query, projectID).Scan(&out.TotalEstimated, &out.TotalActual, &out.AvgEstimated, &out.AvgActual)
	})
	return out, err
}

// CompletionsByDay counts done tasks matching query by the UTC day of their
// last update, ascending.
func (r *Repository) CompletionsByDay(ctx context.Context, query repository.TaskQuery) ([]domain.DailyCount, error) {
	query.Status = domain.TaskDone
	var args queryArgs
	sql := `SELECT date_trunc('day', t.updated_at AT TIME ZONE 'UTC') AS day, COUNT(1)
		FROM tasks t` + where(taskConds(query, &args)) + `
		GROUP BY day ORDER BY day`
	var out []domain.DailyCount
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.DailyCount, 0)
		for rows.Next() {
			var (
				day time.Time
				n   int
			)
			if err := rows.Scan(&day, &n); err != nil {
				return err
			}
			out = append(out, domain.DailyCount{
				Date:  time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC),
				Count: n,
			})
		}
		return rows.Err()
	})
	return out, err
}

// ProjectStatusCounts groups every project by status.
func (r *Repository) ProjectStatusCounts(ctx context.Context) (map[domain.ProjectStatus]int, error) {
	out := make(map[domain.ProjectStatus]int)
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, `SELECT status, COUNT(1) FROM projects GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				status string
				n      int
			)
			if err := rows.Scan(&status, &n); err != nil {
				return err
			}
			out[domain.ProjectStatus(status)] = n
		}
		return rows.Err()
	})
	return out, err
}

// ProjectTaskStats returns total and completed task counts per project.
func (r *Repository) ProjectTaskStats(ctx context.Context, projectIDs []string) (map[string]domain.TaskStats, error) {
	out := make(map[string]domain.TaskStats, len(projectIDs))
	if len(projectIDs) == 0 {
		return out, nil
	}
	for _, id := range projectIDs {
		out[id] = domain.TaskStats{}
	}
	const query = `SELECT project_id, COUNT(1), COUNT(1) FILTER (WHERE status = 'done')
		FROM tasks WHERE project_id = ANY($1) GROUP BY project_id`
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, projectIDs)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				id    string
				stats domain.TaskStats
			)
			if err := rows.Scan(&id, &stats.Total, &stats.Completed); err != nil {
				return err
			}
			out[id] = stats
		}
		return rows.Err()
	})
	return out, err
}

// UserProductivity aggregates assigned tasks per active user, ordered by name.
func (r *Repository) UserProductivity(ctx context.Context, completedSince *time.Time) ([]domain.UserProductivity, error) {
	const query = `SELECT u.id, u.first_name, u.last_name, u.email, u.role,
			COUNT(t.id),
			COUNT(t.id) FILTER (WHERE t.status = 'done' AND ($1::timestamptz IS NULL OR t.updated_at >= $1)),
			COALESCE(SUM(t.actual_hours), 0)
		FROM users u
		LEFT JOIN tasks t ON t.assignee_id = u.id
		WHERE u.is_active
		GROUP BY u.id
		ORDER BY u.first_name, u.last_name, u.id`
	var out []domain.UserProductivity
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, completedSince)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = make([]domain.UserProductivity, 0)
		for rows.Next() {
			var p domain.UserProductivity
			if err := rows.Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Email, &p.Role, &p.TotalTasks, &p.CompletedTasks, &p.TotalHours); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	return out, err
}

// CountUsers counts users, optionally only active ones.
func (r *Repository) CountUsers(ctx context.Context, activeOnly bool) (int, error) {
	var n int
	err := r.run(ctx, func(q querier) error {
		return q.QueryRow(ctx, `SELECT COUNT(1) FROM users WHERE is_active OR NOT $1`, activeOnly).Scan(&n)
	})
	return n, err
}

// RecentTasks returns visible tasks updated at or after since, newest first.
func (r *Repository) RecentTasks(ctx context.Context, scope repository.Visibility, since time.Time, limit int) ([]domain.Task, error) {
	var args queryArgs
	sql := `SELECT ` + taskColumns + ` FROM tasks t` +
		where(taskConds(repository.TaskQuery{Scope: scope, UpdatedSince: &since}, &args)) +
		` ORDER BY t.updated_at DESC, t.id`
	if limit > 0 {
		sql += ` LIMIT ` + args.add(limit)
	}
	var tasks []domain.Task
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		tasks, err = collectTasks(rows)
		return err
	})
	return tasks, err
}
