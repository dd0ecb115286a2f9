package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

const taskColumns = `t.id, t.title, t.description, t.status, t.priority, t.due_date, t.estimated_hours, t.actual_hours,
	t.tags, t.project_id, t.assignee_id, t.created_by_id, t.created_at, t.updated_at`

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &t.DueDate, &t.EstimatedHours,
		&t.ActualHours, &t.Tags, &t.ProjectID, &t.AssigneeID, &t.CreatedByID, &t.CreatedAt, &t.UpdatedAt)
	if t.Tags == nil {
		t.Tags = []string{}
	}
	return t, err
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	defer rows.Close()
	tasks := make([]domain.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// CreateTask inserts a task.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO tasks (id, title, description, status, priority, due_date, estimated_hours, actual_hours,
			tags, project_id, assignee_id, created_by_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
			task.EstimatedHours, task.ActualHours, tagsOrEmpty(task.Tags), task.ProjectID, task.AssigneeID,
			task.CreatedByID, task.CreatedAt, task.UpdatedAt)
		return err
	})
}

// GetTaskByID fetches a task.
func (r *Repository) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}
	var t domain.Task
	err := r.run(ctx, func(q querier) error {
		var err error
		t, err = scanTask(q.QueryRow(ctx, query, taskID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask persists a task's mutable fields. Project and creator are
// immutable.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.Task) error {
	const query = `UPDATE tasks
		SET title = $2, description = $3, status = $4, priority = $5, due_date = $6, estimated_hours = $7,
			actual_hours = $8, tags = $9, assignee_id = $10, updated_at = $11
		WHERE id = $1`
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, task.ID, task.Title, task.Description, task.Status, task.Priority, task.DueDate,
			task.EstimatedHours, task.ActualHours, tagsOrEmpty(task.Tags), task.AssigneeID, task.UpdatedAt)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// DeleteTask removes a task row.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) error {
	return r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
		if err != nil {
			return err
		}
		return expectOne(tag)
	})
}

// DeleteTasksByProject removes every task of a project.
func (r *Repository) DeleteTasksByProject(ctx context.Context, projectID string) error {
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID)
		return err
	})
}

// ListTasks returns a page of tasks visible under scope.
func (r *Repository) ListTasks(ctx context.Context, scope repository.Visibility, filter repository.TaskFilter, opts repository.ListOptions) ([]domain.Task, int, error) {
	var args queryArgs
	conds := []string{visibleTask(scope, "t", &args)}
	if filter.Status != "" {
		conds = append(conds, "t.status = "+args.add(filter.Status))
	}
	if filter.Priority != "" {
		conds = append(conds, "t.priority = "+args.add(filter.Priority))
	}
	if filter.ProjectID != "" {
		conds = append(conds, "t.project_id = "+args.add(filter.ProjectID))
	}
	if filter.AssigneeID != "" {
		conds = append(conds, "t.assignee_id = "+args.add(filter.AssigneeID))
	}
	if strings.TrimSpace(filter.Search) != "" {
		p := args.add(likePattern(filter.Search))
		conds = append(conds, "(t.title ILIKE "+p+" OR t.description ILIKE "+p+")")
	}
	order, err := orderBy(taskSortColumns, opts, "t.id")
	if err != nil {
		return nil, 0, err
	}
	countQuery := `SELECT COUNT(1) FROM tasks t` + where(conds)
	countArgs := append([]any(nil), args...)
	listQuery := `SELECT ` + taskColumns + ` FROM tasks t` + where(conds) + order + limitOffset(opts, &args)

	var (
		tasks []domain.Task
		total int
	)
	err = r.run(ctx, func(q querier) error {
		if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return err
		}
		rows, err := q.Query(ctx, listQuery, args...)
		if err != nil {
			return err
		}
		tasks, err = collectTasks(rows)
		return err
	})
	return tasks, total, err
}

// ListTaskIDsByAssignee returns the IDs of a project's tasks assigned to
// userID. Inside a transaction the rows are locked until commit.
func (r *Repository) ListTaskIDsByAssignee(ctx context.Context, projectID, userID string) ([]string, error) {
	query := `SELECT id FROM tasks WHERE project_id = $1 AND assignee_id = $2 ORDER BY id`
	if r.tx != nil {
		query += ` FOR UPDATE`
	}
	var ids []string
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, projectID, userID)
		if err != nil {
			return err
		}
		ids, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if ids == nil && err == nil {
		ids = []string{}
	}
	return ids, err
}

// UnassignTasks clears the assignee of the given tasks.
func (r *Repository) UnassignTasks(ctx context.Context, taskIDs []string) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	const query = `UPDATE tasks SET assignee_id = NULL WHERE id = ANY($1) AND assignee_id IS NOT NULL`
	var n int
	err := r.run(ctx, func(q querier) error {
		tag, err := q.Exec(ctx, query, taskIDs)
		if err != nil {
			return err
		}
		n = int(tag.RowsAffected())
		return nil
	})
	return n, err
}

// ListDueTasks returns assigned, unfinished tasks due before cutoff.
func (r *Repository) ListDueTasks(ctx context.Context, cutoff time.Time) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks t
		WHERE t.assignee_id IS NOT NULL AND t.status <> 'done' AND t.due_date < $1
		ORDER BY t.due_date, t.id`
	var tasks []domain.Task
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, cutoff)
		if err != nil {
			return err
		}
		tasks, err = collectTasks(rows)
		return err
	})
	return tasks, err
}

// CreateComment appends a comment to a task.
func (r *Repository) CreateComment(ctx context.Context, comment *domain.Comment) error {
	const query = `INSERT INTO comments (id, content, type, task_id, author_id, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, comment.ID, comment.Content, comment.Type, comment.TaskID, comment.AuthorID, comment.CreatedAt)
		return err
	})
}

// ListComments returns a task's comments oldest first.
func (r *Repository) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	const query = `SELECT id, content, type, task_id, author_id, created_at FROM comments WHERE task_id = $1 ORDER BY created_at, id`
	var comments []domain.Comment
	err := r.run(ctx, func(q querier) error {
		rows, err := q.Query(ctx, query, taskID)
		if err != nil {
			return err
		}
		defer rows.Close()
		comments = make([]domain.Comment, 0)
		for rows.Next() {
			var c domain.Comment
			if err := rows.Scan(&c.ID, &c.Content, &c.Type, &c.TaskID, &c.AuthorID, &c.CreatedAt); err != nil {
				return err
			}
			comments = append(comments, c)
		}
		return rows.Err()
	})
	return comments, err
}

// DeleteCommentsByTask removes a task's comments.
func (r *Repository) DeleteCommentsByTask(ctx context.Context, taskID string) error {
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, `DELETE FROM comments WHERE task_id = $1`, taskID)
		return err
	})
}

// DeleteCommentsByProject removes the comments of every task in a project.
func (r *Repository) DeleteCommentsByProject(ctx context.Context, projectID string) error {
	const query = `DELETE FROM comments c USING tasks t WHERE c.task_id = t.id AND t.project_id = $1`
	return r.run(ctx, func(q querier) error {
		_, err := q.Exec(ctx, query, projectID)
		return err
	})
}
