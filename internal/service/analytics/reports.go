package analytics

import (
	"context"
	"slices"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/service/access"
)

// Dashboard is the per-user summary.
type Dashboard struct {
	ProjectsCount      int                       `json:"projectsCount"`
	AssignedTasksCount int                       `json:"assignedTasksCount"`
	OverdueTasksCount  int                       `json:"overdueTasksCount"`
	TaskStatusCounts   map[domain.TaskStatus]int `json:"taskStatusCounts"`
	RecentActivity     []domain.Task             `json:"recentActivity"`
	ProjectProgress    []domain.ProjectProgress  `json:"projectProgress"`
}

// ProjectReport is the owner/admin analytics view of one project.
type ProjectReport struct {
	ProjectID            string                    `json:"projectId"`
	StatusDistribution   map[domain.TaskStatus]int `json:"statusDistribution"`
	PriorityDistribution map[domain.Priority]int   `json:"priorityDistribution"`
	AssigneeDistribution []domain.AssigneeCount    `json:"assigneeDistribution"`
	TimeTracking         domain.HourTotals         `json:"timeTracking"`
	CompletionTrend      []domain.DailyCount       `json:"completionTrend"`
	OverdueTasks         int                       `json:"overdueTasks"`
	Progress             domain.TaskStats          `json:"progress"`
}

// TeamSummary holds organisation-wide counters.
type TeamSummary struct {
	TotalMembers  int `json:"totalMembers"`
	ActiveMembers int `json:"activeMembers"`
	TotalProjects int `json:"totalProjects"`
	ActiveTasks   int `json:"activeTasks"`
}

// TeamReport is the organisation-wide productivity view.
type TeamReport struct {
	Members                   []domain.UserProductivity    `json:"members"`
	ProjectStatusDistribution map[domain.ProjectStatus]int `json:"projectStatusDistribution"`
	Summary                   TeamSummary                  `json:"summary"`
}

// Overview is the organisation dashboard over a window of days.
type Overview struct {
	Days                      int                          `json:"days"`
	TotalProjects             int                          `json:"totalProjects"`
	CompletedTasks            int                          `json:"completedTasks"`
	SuccessRate               int                          `json:"successRate"`
	ProjectStatusDistribution map[domain.ProjectStatus]int `json:"projectStatusDistribution"`
	TaskPriorityDistribution  map[domain.Priority]int      `json:"taskPriorityDistribution"`
	CompletionTrend           []domain.DailyCount          `json:"completionTrend"`
	TopPerformers             []domain.UserProductivity    `json:"topPerformers"`
}

// Dashboard summarises what p can see and what is assigned to p.
func (s Service) Dashboard(ctx context.Context, p domain.Principal) (Dashboard, error) {
	if p.UserID == "" {
		return Dashboard{}, domain.ErrUnauthenticated
	}
	scope := s.access.VisibleProjects(p)
	now := s.now().UTC()
	var (
		out Dashboard
		err error
	)
	if out.ProjectsCount, err = s.repo.CountProjects(ctx, scope); err != nil {
		return Dashboard{}, err
	}
	if out.AssignedTasksCount, err = s.repo.CountTasks(ctx, repository.TaskQuery{Scope: scope, AssigneeID: p.UserID}); err != nil {
		return Dashboard{}, err
	}
	overdue := repository.TaskQuery{Scope: scope, AssigneeID: p.UserID, ExcludeDone: true, DueBefore: &now}
	if out.OverdueTasksCount, err = s.repo.CountTasks(ctx, overdue); err != nil {
		return Dashboard{}, err
	}
	counts, err := s.repo.TaskStatusCounts(ctx, repository.TaskQuery{Scope: scope})
	if err != nil {
		return Dashboard{}, err
	}
	out.TaskStatusCounts = statusDistribution(counts)

	if out.RecentActivity, err = s.repo.RecentTasks(ctx, scope, now.Add(-activityWindow), activityLimit); err != nil {
		return Dashboard{}, err
	}

	latest := repository.ListOptions{Page: 1, Limit: progressListSize, SortBy: "createdAt", SortOrder: repository.SortDesc}
	projects, _, err := s.repo.ListProjects(ctx, scope, repository.ProjectFilter{}, latest)
	if err != nil {
		return Dashboard{}, err
	}
	ids := make([]string, len(projects))
	for i, project := range projects {
		ids[i] = project.ID
	}
	stats, err := s.repo.ProjectTaskStats(ctx, ids)
	if err != nil {
		return Dashboard{}, err
	}
	out.ProjectProgress = make([]domain.ProjectProgress, len(projects))
	for i, project := range projects {
		out.ProjectProgress[i] = progressRow(project, stats[project.ID])
	}
	return out, nil
}

// RecentActivity lists tasks updated in the last seven days in projects
// visible to p, newest first.
func (s Service) RecentActivity(ctx context.Context, p domain.Principal) ([]domain.Task, error) {
	if p.UserID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.repo.RecentTasks(ctx, s.access.VisibleTasks(p), s.now().UTC().Add(-activityWindow), activityLimit)
}

// ProjectAnalytics reports distributions for one project. Only its owner and
// project admins may read it; everyone else gets domain.ErrForbidden.
func (s Service) ProjectAnalytics(ctx context.Context, p domain.Principal, projectID string) (ProjectReport, error) {
	if err := s.access.RequireProjectRole(ctx, p, projectID, access.ManagerRoles...); err != nil {
		return ProjectReport{}, err
	}
	query := repository.TaskQuery{Scope: s.access.VisibleTasks(p), ProjectID: projectID}
	out := ProjectReport{ProjectID: projectID}

	statuses, err := s.repo.TaskStatusCounts(ctx, query)
	if err != nil {
		return ProjectReport{}, err
	}
	out.StatusDistribution = statusDistribution(statuses)

	priorities, err := s.repo.TaskPriorityCounts(ctx, query)
	if err != nil {
		return ProjectReport{}, err
	}
	out.PriorityDistribution = priorityDistribution(priorities)

	if out.AssigneeDistribution, err = s.repo.TaskAssigneeCounts(ctx, projectID); err != nil {
		return ProjectReport{}, err
	}

	hours, err := s.repo.TaskHourTotals(ctx, projectID)
	if err != nil {
		return ProjectReport{}, err
	}
	hours.AvgEstimated = round2(hours.AvgEstimated)
	hours.AvgActual = round2(hours.AvgActual)
	out.TimeTracking = hours

	if out.CompletionTrend, err = s.completionTrend(ctx, query, trendDays); err != nil {
		return ProjectReport{}, err
	}

	now := s.now().UTC()
	overdue := query
	overdue.ExcludeDone = true
	overdue.DueBefore = &now
	if out.OverdueTasks, err = s.repo.CountTasks(ctx, overdue); err != nil {
		return ProjectReport{}, err
	}

	total := 0
	for _, n := range out.StatusDistribution {
		total += n
	}
	out.Progress = withProgress(domain.TaskStats{Total: total, Completed: out.StatusDistribution[domain.TaskDone]})
	return out, nil
}

// TeamAnalytics reports per-user productivity across the organisation. It is
// restricted to global admins and ignores project visibility.
func (s Service) TeamAnalytics(ctx context.Context, p domain.Principal) (TeamReport, error) {
	if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
		return TeamReport{}, err
	}
	rows, err := s.repo.UserProductivity(ctx, nil)
	if err != nil {
		return TeamReport{}, err
	}
	statuses, err := s.repo.ProjectStatusCounts(ctx)
	if err != nil {
		return TeamReport{}, err
	}
	var summary TeamSummary
	if summary.TotalMembers, err = s.repo.CountUsers(ctx, false); err != nil {
		return TeamReport{}, err
	}
	if summary.ActiveMembers, err = s.repo.CountUsers(ctx, true); err != nil {
		return TeamReport{}, err
	}
	if summary.TotalProjects, err = s.repo.CountProjects(ctx, repository.Unrestricted()); err != nil {
		return TeamReport{}, err
	}
	if summary.ActiveTasks, err = s.repo.CountTasks(ctx, repository.TaskQuery{Scope: repository.Unrestricted(), ExcludeDone: true}); err != nil {
		return TeamReport{}, err
	}
	return TeamReport{
		Members:                   withRates(rows),
		ProjectStatusDistribution: projectStatusDistribution(statuses),
		Summary:                   summary,
	}, nil
}

// Overview reports organisation-wide delivery over the last days days.
func (s Service) Overview(ctx context.Context, p domain.Principal, days int) (Overview, error) {
	if err := access.RequireGlobalRole(p, domain.GlobalRoleAdmin); err != nil {
		return Overview{}, err
	}
	if days <= 0 {
		days = trendDays
	}
	if days > maxOverviewDays {
		return Overview{}, domain.NewValidationError("days", "must be at most 365")
	}
	out := Overview{Days: days}
	all := repository.Unrestricted()
	since := utcDay(s.now()).AddDate(0, 0, -(days - 1))

	statuses, err := s.repo.ProjectStatusCounts(ctx)
	if err != nil {
		return Overview{}, err
	}
	out.ProjectStatusDistribution = projectStatusDistribution(statuses)
	for _, n := range out.ProjectStatusDistribution {
		out.TotalProjects += n
	}
	out.SuccessRate = Percent(out.ProjectStatusDistribution[domain.ProjectCompleted], out.TotalProjects)

	done := repository.TaskQuery{Scope: all, Status: domain.TaskDone, UpdatedSince: &since}
	if out.CompletedTasks, err = s.repo.CountTasks(ctx, done); err != nil {
		return Overview{}, err
	}
	priorities, err := s.repo.TaskPriorityCounts(ctx, repository.TaskQuery{Scope: all})
	if err != nil {
		return Overview{}, err
	}
	out.TaskPriorityDistribution = priorityDistribution(priorities)

	if out.CompletionTrend, err = s.completionTrend(ctx, repository.TaskQuery{Scope: all}, days); err != nil {
		return Overview{}, err
	}

	rows, err := s.repo.UserProductivity(ctx, &since)
	if err != nil {
		return Overview{}, err
	}
	rows = withRates(rows)
	slices.SortStableFunc(rows, byCompletions)
	if len(rows) > topPerformers {
		rows = rows[:topPerformers]
	}
	out.TopPerformers = rows
	return out, nil
}
