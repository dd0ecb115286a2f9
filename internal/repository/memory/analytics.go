package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

func (st *state) taskMatches(q repository.TaskQuery, t domain.Task) bool {
	if !st.taskVisible(q.Scope, t) {
		return false
	}
	if q.ProjectID != "" && t.ProjectID != q.ProjectID {
		return false
	}
	if q.AssigneeID != "" && !t.AssignedTo(q.AssigneeID) {
		return false
	}
	if q.Status != "" && t.Status != q.Status {
		return false
	}
	if q.ExcludeDone && t.Status == domain.TaskDone {
		return false
	}
	if q.DueBefore != nil && (t.DueDate == nil || !t.DueDate.Before(*q.DueBefore)) {
		return false
	}
	if q.UpdatedSince != nil && t.UpdatedAt.Before(*q.UpdatedSince) {
		return false
	}
	return true
}

// CountProjects counts projects visible under scope.
func (s *Store) CountProjects(ctx context.Context, scope repository.Visibility) (int, error) {
	var n int
	err := s.read(ctx, "CountProjects", func(st *state) error {
		for _, p := range st.projects {
			if st.projectVisible(scope, p) {
				n++
			}
		}
		return nil
	})
	return n, err
}

// CountTasks counts tasks matching query.
func (s *Store) CountTasks(ctx context.Context, query repository.TaskQuery) (int, error) {
	var n int
	err := s.read(ctx, "CountTasks", func(st *state) error {
		for _, t := range st.tasks {
			if st.taskMatches(query, t) {
				n++
			}
		}
		return nil
	})
	return n, err
}

// TaskStatusCounts groups tasks matching query by status.
func (s *Store) TaskStatusCounts(ctx context.Context, query repository.TaskQuery) (map[domain.TaskStatus]int, error) {
	out := make(map[domain.TaskStatus]int)
	err := s.read(ctx, "TaskStatusCounts", func(st *state) error {
		for _, t := range st.tasks {
			if st.taskMatches(query, t) {
				out[t.Status]++
			}
		}
		return nil
	})
	return out, err
}

// TaskPriorityCounts groups tasks matching query by priority.
func (s *Store) TaskPriorityCounts(ctx context.Context, query repository.TaskQuery) (map[domain.Priority]int, error) {
	out := make(map[domain.Priority]int)
	err := s.read(ctx, "TaskPriorityCounts", func(st *state) error {
		for _, t := range st.tasks {
			if st.taskMatches(query, t) {
				out[t.Priority]++
			}
		}
		return nil
	})
	return out, err
}

// TaskAssigneeCounts groups a project's tasks by assignee, largest first.
func (s *Store) TaskAssigneeCounts(ctx context.Context, projectID string) ([]domain.AssigneeCount, error) {
	var out []domain.AssigneeCount
	err := s.read(ctx, "TaskAssigneeCounts", func(st *state) error {
		counts := make(map[string]int)
		unassigned := 0
		for _, t := range st.tasks {
			if t.ProjectID != projectID {
				continue
			}
			if t.AssigneeID == nil {
				unassigned++
				continue
			}
			counts[*t.AssigneeID]++
		}
		out = make([]domain.AssigneeCount, 0, len(counts)+1)
		for id, n := range counts {
			u := st.users[id]
			assignee := id
			out = append(out, domain.AssigneeCount{AssigneeID: &assignee, FirstName: u.FirstName, LastName: u.LastName, Count: n})
		}
		if unassigned > 0 {
			out = append(out, domain.AssigneeCount{Count: unassigned})
		}
		slices.SortFunc(out, func(a, b domain.AssigneeCount) int {
			if c := cmp.Compare(b.Count, a.Count); c != 0 {
				return c
			}
			return cmp.Compare(assigneeKey(a), assigneeKey(b))
		})
		return nil
	})
	return out, err
}

func assigneeKey(a domain.AssigneeCount) string {
	if a.AssigneeID == nil {
		return ""
	}
	return *a.AssigneeID
}

// TaskHourTotals sums and averages a project's hours. Tasks without an
// estimate are ignored by the estimate average.
func (s *Store) TaskHourTotals(ctx context.Context, projectID string) (domain.HourTotals, error) {
	var out domain.HourTotals
	err := s.read(ctx, "TaskHourTotals", func(st *state) error {
		var tasks, estimated int
		for _, t := range st.tasks {
			if t.ProjectID != projectID {
				continue
			}
			tasks++
			out.TotalActual += t.ActualHours
			if t.EstimatedHours != nil {
				estimated++
				out.TotalEstimated += *t.EstimatedHours
			}
		}
		if estimated > 0 {
			out.AvgEstimated = float64(out.TotalEstimated) / float64(estimated)
		}
		if tasks > 0 {
			out.AvgActual = float64(out.TotalActual) / float64(tasks)
		}
		return nil
	})
	return out, err
}

// CompletionsByDay counts done tasks matching query by the UTC day of their
// last update, ascending. Days without completions are omitted.
func (s *Store) CompletionsByDay(ctx context.Context, query repository.TaskQuery) ([]domain.DailyCount, error) {
	var out []domain.DailyCount
	err := s.read(ctx, "CompletionsByDay", func(st *state) error {
		query.Status = domain.TaskDone
		byDay := make(map[time.Time]int)
		for _, t := range st.tasks {
			if !st.taskMatches(query, t) {
				continue
			}
			u := t.UpdatedAt.UTC()
			byDay[time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)]++
		}
		out = make([]domain.DailyCount, 0, len(byDay))
		for day, n := range byDay {
			out = append(out, domain.DailyCount{Date: day, Count: n})
		}
		slices.SortFunc(out, func(a, b domain.DailyCount) int { return a.Date.Compare(b.Date) })
		return nil
	})
	return out, err
}

// ProjectStatusCounts groups every project by status.
func (s *Store) ProjectStatusCounts(ctx context.Context) (map[domain.ProjectStatus]int, error) {
	out := make(map[domain.ProjectStatus]int)
	err := s.read(ctx, "ProjectStatusCounts", func(st *state) error {
		for _, p := range st.projects {
			out[p.Status]++
		}
		return nil
	})
	return out, err
}

// ProjectTaskStats returns total and completed task counts per project.
// Projects without tasks are present with zero counts.
func (s *Store) ProjectTaskStats(ctx context.Context, projectIDs []string) (map[string]domain.TaskStats, error) {
	out := make(map[string]domain.TaskStats, len(projectIDs))
	err := s.read(ctx, "ProjectTaskStats", func(st *state) error {
		for _, id := range projectIDs {
			out[id] = domain.TaskStats{}
		}
		for _, t := range st.tasks {
			stats, ok := out[t.ProjectID]
			if !ok {
				continue
			}
			stats.Total++
			if t.Status == domain.TaskDone {
				stats.Completed++
			}
			out[t.ProjectID] = stats
		}
		return nil
	})
	return out, err
}

// UserProductivity aggregates assigned tasks per active user, ordered by name.
func (s *Store) UserProductivity(ctx context.Context, completedSince *time.Time) ([]domain.UserProductivity, error) {
	var out []domain.UserProductivity
	err := s.read(ctx, "UserProductivity", func(st *state) error {
		rows := make(map[string]*domain.UserProductivity)
		for _, u := range st.users {
			if !u.IsActive {
				continue
			}
			rows[u.ID] = &domain.UserProductivity{UserID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email, Role: u.Role}
		}
		for _, t := range st.tasks {
			if t.AssigneeID == nil {
				continue
			}
			row, ok := rows[*t.AssigneeID]
			if !ok {
				continue
			}
			row.TotalTasks++
			row.TotalHours += t.ActualHours
			if t.Status == domain.TaskDone && (completedSince == nil || !t.UpdatedAt.Before(*completedSince)) {
				row.CompletedTasks++
			}
		}
		out = make([]domain.UserProductivity, 0, len(rows))
		for _, row := range rows {
			out = append(out, *row)
		}
		slices.SortFunc(out, func(a, b domain.UserProductivity) int {
			if c := cmp.Compare(a.FirstName, b.FirstName); c != 0 {
				return c
			}
			if c := cmp.Compare(a.LastName, b.LastName); c != 0 {
				return c
			}
			return cmp.Compare(a.UserID, b.UserID)
		})
		return nil
	})
	return out, err
}

// CountUsers counts users, optionally only active ones.
func (s *Store) CountUsers(ctx context.Context, activeOnly bool) (int, error) {
	var n int
	err := s.read(ctx, "CountUsers", func(st *state) error {
		for _, u := range st.users {
			if !activeOnly || u.IsActive {
				n++
			}
		}
		return nil
	})
	return n, err
}

// RecentTasks returns visible tasks updated at or after since, newest first.
func (s *Store) RecentTasks(ctx context.Context, scope repository.Visibility, since time.Time, limit int) ([]domain.Task, error) {
	var out []domain.Task
	err := s.read(ctx, "RecentTasks", func(st *state) error {
		out = make([]domain.Task, 0)
		q := repository.TaskQuery{Scope: scope, UpdatedSince: &since}
		for _, t := range st.tasks {
			if st.taskMatches(q, t) {
				out = append(out, copyTask(t))
			}
		}
		slices.SortFunc(out, func(a, b domain.Task) int {
			if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}
