package repository

import (
	"math"
	"strings"
	"time"

	"github.com/splax/taskhub/internal/domain"
)

const (
	// DefaultLimit applies when a caller omits the page size.
	DefaultLimit = 10
	// MaxLimit caps the page size.
	MaxLimit = 100
	// MaxOffset bounds Page*Limit so the row offset never overflows.
	MaxOffset = math.MaxInt32
)

// SortOrder is ASC or DESC.
type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// ListOptions carries pagination and ordering. SortBy uses API field names
// (createdAt, title, ...); stores map them to columns.
type ListOptions struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder SortOrder
}

// Offset returns the number of rows to skip.
func (o ListOptions) Offset() int {
	if o.Page <= 1 {
		return 0
	}
	return (o.Page - 1) * o.Limit
}

// Normalize applies defaults and validates the options against the sortable
// fields. Unknown sort fields and orders are rejected, never interpolated.
func (o ListOptions) Normalize(sortable []string, defaultSort string, defaultLimit int) (ListOptions, error) {
	verr := &domain.ValidationError{}
	if o.Page == 0 {
		o.Page = 1
	}
	if o.Page < 1 {
		verr.Add("page", "must be at least 1")
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if o.Limit == 0 {
		o.Limit = defaultLimit
	}
	if o.Limit < 1 {
		verr.Add("limit", "must be at least 1")
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Limit >= 1 && o.Page > MaxOffset/o.Limit {
		verr.Add("page", "is too large")
	}
	o.SortBy = strings.TrimSpace(o.SortBy)
	if o.SortBy == "" {
		o.SortBy = defaultSort
	}
	allowed := false
	for _, field := range sortable {
		if field == o.SortBy {
			allowed = true
			break
		}
	}
	if !allowed {
		verr.Add("sortBy", "must be one of "+strings.Join(sortable, ", "))
	}
	switch SortOrder(strings.ToUpper(strings.TrimSpace(string(o.SortOrder)))) {
	case "", SortDesc:
		o.SortOrder = SortDesc
	case SortAsc:
		o.SortOrder = SortAsc
	default:
		verr.Add("sortOrder", "must be ASC or DESC")
	}
	if err := verr.Err(); err != nil {
		return ListOptions{}, err
	}
	return o, nil
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	Status   domain.ProjectStatus
	Priority domain.Priority
	Search   string
	MemberID string
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status     domain.TaskStatus
	Priority   domain.Priority
	ProjectID  string
	AssigneeID string
	Search     string
}

// UserFilter narrows user listings.
type UserFilter struct {
	Role     domain.GlobalRole
	IsActive *bool
	Search   string
}

// NotificationFilter narrows a user's inbox.
type NotificationFilter struct {
	IsRead *bool
	Type   domain.NotificationType
}

// TaskQuery selects tasks for aggregation.
type TaskQuery struct {
	Scope        Visibility
	ProjectID    string
	AssigneeID   string
	Status       domain.TaskStatus
	ExcludeDone  bool
	DueBefore    *time.Time
	UpdatedSince *time.Time
}
