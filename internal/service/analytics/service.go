// Package analytics computes derived statistics over the visible subset of
// the store. It never raises business errors for empty data.
package analytics

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
)

const (
	trendDays        = 30
	activityWindow   = 7 * 24 * time.Hour
	activityLimit    = 10
	progressListSize = 5
	topPerformers    = 10
	maxOverviewDays  = 365
)

// Store is the read surface the engine aggregates over.
type Store interface {
	access.Reader
	repository.AnalyticsRepository
	ListProjects(ctx context.Context, scope repository.Visibility, filter repository.ProjectFilter, opts repository.ListOptions) ([]domain.Project, int, error)
}

// Service is the Aggregation Engine.
type Service struct {
	repo   Store
	access access.Evaluator
	log    *slog.Logger
	now    func() time.Time
}

// New constructs the engine.
func New(repo Store, log *slog.Logger) Service {
	if log == nil {
		log = slog.Default()
	}
	return Service{repo: repo, access: access.New(repo), log: log, now: time.Now}
}

// Percent returns round-half-up(100*num/den) in integer arithmetic, or 0 when
// den is not positive.
func Percent(num, den int) int {
	if den <= 0 || num <= 0 {
		return 0
	}
	return (100*num + den/2) / den
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// withProgress fills Progress from Total and Completed.
func withProgress(stats domain.TaskStats) domain.TaskStats {
	stats.Progress = Percent(stats.Completed, stats.Total)
	return stats
}

// ProjectProgress derives a project's completion percentage from its tasks.
// The stored progress field is never consulted.
func (s Service) ProjectProgress(ctx context.Context, projectID string) (int, error) {
	stats, err := s.repo.ProjectTaskStats(ctx, []string{projectID})
	if err != nil {
		return 0, err
	}
	st := stats[projectID]
	return Percent(st.Completed, st.Total), nil
}

// ProjectProgressFor reports progress for a project visible to p.
func (s Service) ProjectProgressFor(ctx context.Context, p domain.Principal, projectID string) (domain.ProjectProgress, error) {
	project, _, err := s.access.AuthorizeProjectRead(ctx, p, projectID)
	if err != nil {
		return domain.ProjectProgress{}, err
	}
	stats, err := s.repo.ProjectTaskStats(ctx, []string{projectID})
	if err != nil {
		return domain.ProjectProgress{}, err
	}
	return progressRow(*project, stats[projectID]), nil
}

func progressRow(p domain.Project, stats domain.TaskStats) domain.ProjectProgress {
	return domain.ProjectProgress{
		ID:                 p.ID,
		Name:               p.Name,
		Status:             p.Status,
		Priority:           p.Priority,
		StoredProgress:     p.Progress,
		TotalTasks:         stats.Total,
		CompletedTasks:     stats.Completed,
		ProgressPercentage: Percent(stats.Completed, stats.Total),
	}
}

// TaskStats returns derived task statistics for the given projects.
func (s Service) TaskStats(ctx context.Context, projectIDs []string) (map[string]domain.TaskStats, error) {
	stats, err := s.repo.ProjectTaskStats(ctx, projectIDs)
	if err != nil {
		return nil, err
	}
	for id, st := range stats {
		stats[id] = withProgress(st)
	}
	return stats, nil
}

func statusDistribution(counts map[domain.TaskStatus]int) map[domain.TaskStatus]int {
	out := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for _, status := range domain.TaskStatuses {
		out[status] = counts[status]
	}
	return out
}

func priorityDistribution(counts map[domain.Priority]int) map[domain.Priority]int {
	out := make(map[domain.Priority]int, len(domain.Priorities))
	for _, priority := range domain.Priorities {
		out[priority] = counts[priority]
	}
	return out
}

func projectStatusDistribution(counts map[domain.ProjectStatus]int) map[domain.ProjectStatus]int {
	out := make(map[domain.ProjectStatus]int, len(domain.ProjectStatuses))
	for _, status := range domain.ProjectStatuses {
		out[status] = counts[status]
	}
	return out
}

// zeroFill returns one bucket per day from first through first+days-1.
func zeroFill(first time.Time, days int, counts []domain.DailyCount) []domain.DailyCount {
	byDay := make(map[time.Time]int, len(counts))
	for _, c := range counts {
		byDay[utcDay(c.Date)] += c.Count
	}
	out := make([]domain.DailyCount, days)
	for i := range out {
		day := first.AddDate(0, 0, i)
		out[i] = domain.DailyCount{Date: day, Count: byDay[day]}
	}
	return out
}

func (s Service) completionTrend(ctx context.Context, query repository.TaskQuery, days int) ([]domain.DailyCount, error) {
	first := utcDay(s.now()).AddDate(0, 0, -(days - 1))
	query.UpdatedSince = &first
	counts, err := s.repo.CompletionsByDay(ctx, query)
	if err != nil {
		return nil, err
	}
	return zeroFill(first, days, counts), nil
}

func withRates(rows []domain.UserProductivity) []domain.UserProductivity {
	for i := range rows {
		rows[i].CompletionRate = Percent(rows[i].CompletedTasks, rows[i].TotalTasks)
	}
	return rows
}

func byCompletions(a, b domain.UserProductivity) int {
	if c := cmp.Compare(b.CompletedTasks, a.CompletedTasks); c != 0 {
		return c
	}
	if c := cmp.Compare(a.FirstName, b.FirstName); c != 0 {
		return c
	}
	return cmp.Compare(a.UserID, b.UserID)
}
