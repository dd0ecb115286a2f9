package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// CreateTask inserts a task. Project, creator and assignee must exist.
func (s *Store) CreateTask(ctx context.Context, task *domain.Task) error {
	return s.write(ctx, "CreateTask", func(st *state) error {
		if _, ok := st.tasks[task.ID]; ok {
			return repository.ErrConflict
		}
		if err := st.checkTaskRefs(*task); err != nil {
			return err
		}
		st.tasks[task.ID] = copyTask(*task)
		return nil
	})
}

func (st *state) checkTaskRefs(t domain.Task) error {
	if _, ok := st.projects[t.ProjectID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := st.users[t.CreatedByID]; !ok {
		return repository.ErrNotFound
	}
	if t.AssigneeID != nil {
		if _, ok := st.users[*t.AssigneeID]; !ok {
			return repository.ErrNotFound
		}
	}
	return nil
}

// GetTaskByID fetches a task.
func (s *Store) GetTaskByID(ctx context.Context, taskID string) (*domain.Task, error) {
	var out *domain.Task
	err := s.read(ctx, "GetTaskByID", func(st *state) error {
		t, ok := st.tasks[taskID]
		if !ok {
			return repository.ErrNotFound
		}
		t = copyTask(t)
		out = &t
		return nil
	})
	return out, err
}

// UpdateTask replaces a task's mutable fields. The project and creator never
// change.
func (s *Store) UpdateTask(ctx context.Context, task *domain.Task) error {
	return s.write(ctx, "UpdateTask", func(st *state) error {
		existing, ok := st.tasks[task.ID]
		if !ok {
			return repository.ErrNotFound
		}
		updated := copyTask(*task)
		updated.ProjectID = existing.ProjectID
		updated.CreatedByID = existing.CreatedByID
		updated.CreatedAt = existing.CreatedAt
		if err := st.checkTaskRefs(updated); err != nil {
			return err
		}
		st.tasks[task.ID] = updated
		return nil
	})
}

// DeleteTask removes a task row.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	return s.write(ctx, "DeleteTask", func(st *state) error {
		if _, ok := st.tasks[taskID]; !ok {
			return repository.ErrNotFound
		}
		delete(st.tasks, taskID)
		return nil
	})
}

// DeleteTasksByProject removes every task of a project.
func (s *Store) DeleteTasksByProject(ctx context.Context, projectID string) error {
	return s.write(ctx, "DeleteTasksByProject", func(st *state) error {
		for id, t := range st.tasks {
			if t.ProjectID == projectID {
				delete(st.tasks, id)
			}
		}
		return nil
	})
}

// ListTasks returns a page of tasks visible under scope.
func (s *Store) ListTasks(ctx context.Context, scope repository.Visibility, filter repository.TaskFilter, opts repository.ListOptions) ([]domain.Task, int, error) {
	var (
		page  []domain.Task
		total int
	)
	err := s.read(ctx, "ListTasks", func(st *state) error {
		matched := make([]domain.Task, 0)
		for _, t := range st.tasks {
			if !st.taskVisible(scope, t) {
				continue
			}
			if filter.Status != "" && t.Status != filter.Status {
				continue
			}
			if filter.Priority != "" && t.Priority != filter.Priority {
				continue
			}
			if filter.ProjectID != "" && t.ProjectID != filter.ProjectID {
				continue
			}
			if filter.AssigneeID != "" && !t.AssignedTo(filter.AssigneeID) {
				continue
			}
			if filter.Search != "" && !containsFold(t.Title, filter.Search) && !containsFold(t.Description, filter.Search) {
				continue
			}
			matched = append(matched, copyTask(t))
		}
		slices.SortFunc(matched, func(a, b domain.Task) int {
			var c int
			switch opts.SortBy {
			case "updatedAt":
				c = a.UpdatedAt.Compare(b.UpdatedAt)
			case "title":
				c = cmp.Compare(a.Title, b.Title)
			case "status":
				c = cmp.Compare(rank(domain.TaskStatuses, a.Status), rank(domain.TaskStatuses, b.Status))
			case "priority":
				c = cmp.Compare(rank(domain.Priorities, a.Priority), rank(domain.Priorities, b.Priority))
			case "dueDate":
				c = compareTimePtr(a.DueDate, b.DueDate)
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

// ListTaskIDsByAssignee returns the IDs of a project's tasks assigned to userID.
func (s *Store) ListTaskIDsByAssignee(ctx context.Context, projectID, userID string) ([]string, error) {
	var ids []string
	err := s.read(ctx, "ListTaskIDsByAssignee", func(st *state) error {
		ids = make([]string, 0)
		for id, t := range st.tasks {
			if t.ProjectID == projectID && t.AssignedTo(userID) {
				ids = append(ids, id)
			}
		}
		slices.Sort(ids)
		return nil
	})
	return ids, err
}

// UnassignTasks clears the assignee of the given tasks.
func (s *Store) UnassignTasks(ctx context.Context, taskIDs []string) (int, error) {
	var n int
	err := s.write(ctx, "UnassignTasks", func(st *state) error {
		for _, id := range taskIDs {
			t, ok := st.tasks[id]
			if !ok || t.AssigneeID == nil {
				continue
			}
			t.AssigneeID = nil
			st.tasks[id] = t
			n++
		}
		return nil
	})
	return n, err
}

// ListDueTasks returns assigned, unfinished tasks due before cutoff.
func (s *Store) ListDueTasks(ctx context.Context, cutoff time.Time) ([]domain.Task, error) {
	var out []domain.Task
	err := s.read(ctx, "ListDueTasks", func(st *state) error {
		out = make([]domain.Task, 0)
		for _, t := range st.tasks {
			if t.AssigneeID == nil || t.Status == domain.TaskDone || t.DueDate == nil || !t.DueDate.Before(cutoff) {
				continue
			}
			out = append(out, copyTask(t))
		}
		slices.SortFunc(out, func(a, b domain.Task) int {
			if c := compareTimePtr(a.DueDate, b.DueDate); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		return nil
	})
	return out, err
}

// CreateComment appends a comment to a task.
func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) error {
	return s.write(ctx, "CreateComment", func(st *state) error {
		if _, ok := st.tasks[comment.TaskID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[comment.AuthorID]; !ok {
			return repository.ErrNotFound
		}
		st.comments[comment.ID] = *comment
		return nil
	})
}

// ListComments returns a task's comments oldest first.
func (s *Store) ListComments(ctx context.Context, taskID string) ([]domain.Comment, error) {
	var out []domain.Comment
	err := s.read(ctx, "ListComments", func(st *state) error {
		out = make([]domain.Comment, 0)
		for _, c := range st.comments {
			if c.TaskID == taskID {
				out = append(out, c)
			}
		}
		slices.SortFunc(out, func(a, b domain.Comment) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		return nil
	})
	return out, err
}

// DeleteCommentsByTask removes a task's comments.
func (s *Store) DeleteCommentsByTask(ctx context.Context, taskID string) error {
	return s.write(ctx, "DeleteCommentsByTask", func(st *state) error {
		for id, c := range st.comments {
			if c.TaskID == taskID {
				delete(st.comments, id)
			}
		}
		return nil
	})
}

// DeleteCommentsByProject removes the comments of every task in a project.
func (s *Store) DeleteCommentsByProject(ctx context.Context, projectID string) error {
	return s.write(ctx, "DeleteCommentsByProject", func(st *state) error {
		for id, c := range st.comments {
			if t, ok := st.tasks[c.TaskID]; ok && t.ProjectID == projectID {
				delete(st.comments, id)
			}
		}
		return nil
	})
}
