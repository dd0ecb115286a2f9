package domain

import "time"

// TaskStats summarises task completion for one project.
type TaskStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Progress  int `json:"progress"`
}

// AssigneeCount is one bucket of the per-assignee task distribution. The
// unassigned bucket has a nil AssigneeID.
type AssigneeCount struct {
	AssigneeID *string `json:"assigneeId"`
	FirstName  string  `json:"firstName,omitempty"`
	LastName   string  `json:"lastName,omitempty"`
	Count      int     `json:"count"`
}

// HourTotals aggregates estimated and actual hours. Averages follow SQL AVG
// semantics: tasks without an estimate are ignored for AvgEstimated.
type HourTotals struct {
	TotalEstimated int     `json:"totalEstimated"`
	TotalActual    int     `json:"totalActual"`
	AvgEstimated   float64 `json:"avgEstimated"`
	AvgActual      float64 `json:"avgActual"`
}

// DailyCount is a date-bucketed counter; Date is midnight UTC.
type DailyCount struct {
	Date  time.Time `json:"date"`
	Count int       `json:"count"`
}

// UserProductivity holds per-user task totals for team analytics.
type UserProductivity struct {
	UserID         string     `json:"id"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	Role           GlobalRole `json:"role"`
	TotalTasks     int        `json:"totalTasks"`
	CompletedTasks int        `json:"completedTasks"`
	TotalHours     int        `json:"totalHours"`
	CompletionRate int        `json:"completionRate"`
}

// ProjectProgress is one row of the dashboard progress list.
type ProjectProgress struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Status             ProjectStatus `json:"status"`
	Priority           Priority      `json:"priority"`
	StoredProgress     int           `json:"progress"`
	TotalTasks         int           `json:"totalTasks"`
	CompletedTasks     int           `json:"completedTasks"`
	ProgressPercentage int           `json:"progressPercentage"`
}
