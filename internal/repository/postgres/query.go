package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

// queryArgs collects positional arguments while a statement is assembled.
type queryArgs []any

func (a *queryArgs) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}

// visibleProject renders scope as a predicate over the projects row aliased
// as alias: owner, or a membership row for the scoped user.
func visibleProject(scope repository.Visibility, alias string, args *queryArgs) string {
	switch {
	case scope.IsUnrestricted():
		return "TRUE"
	case scope.MatchesNothing():
		return "FALSE"
	}
	user := args.add(scope.UserID())
	return fmt.Sprintf("(%[1]s.owner_id = %[2]s OR EXISTS (SELECT 1 FROM project_members vm WHERE vm.project_id = %[1]s.id AND vm.user_id = %[2]s))", alias, user)
}

// visibleTask renders scope as a predicate over the tasks row aliased as alias.
func visibleTask(scope repository.Visibility, alias string, args *queryArgs) string {
	switch {
	case scope.IsUnrestricted():
		return "TRUE"
	case scope.MatchesNothing():
		return "FALSE"
	}
	return fmt.Sprintf("EXISTS (SELECT 1 FROM projects vp WHERE vp.id = %s.project_id AND %s)", alias, visibleProject(scope, "vp", args))
}

func rankExpr[T ~string](values []T, column string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + string(v) + "'"
	}
	return fmt.Sprintf("array_position(ARRAY[%s]::text[], %s)", strings.Join(quoted, ","), column)
}

var (
	projectSortColumns = map[string]string{
		"createdAt": "p.created_at",
		"name":      "p.name",
		"status":    rankExpr(domain.ProjectStatuses, "p.status"),
		"priority":  rankExpr(domain.Priorities, "p.priority"),
		"endDate":   "p.end_date",
	}
	taskSortColumns = map[string]string{
		"createdAt": "t.created_at",
		"updatedAt": "t.updated_at",
		"title":     "t.title",
		"status":    rankExpr(domain.TaskStatuses, "t.status"),
		"priority":  rankExpr(domain.Priorities, "t.priority"),
		"dueDate":   "t.due_date",
	}
	userSortColumns = map[string]string{
		"createdAt": "u.created_at",
		"email":     "u.email",
		"firstName": "u.first_name",
		"lastName":  "u.last_name",
		"role":      "u.role",
	}
	notificationSortColumns = map[string]string{
		"createdAt": "n.created_at",
		"type":      "n.type",
		"isRead":    "n.is_read",
	}
)

// orderBy renders ORDER BY for opts from an allow-listed column set; tie
// keeps pagination stable.
func orderBy(columns map[string]string, opts repository.ListOptions, tie string) (string, error) {
	column, ok := columns[opts.SortBy]
	if !ok {
		return "", fmt.Errorf("sort by %q: %w", opts.SortBy, repository.ErrInvalidArgument)
	}
	order := opts.SortOrder
	if order == "" {
		order = repository.SortDesc
	}
	if order != repository.SortAsc && order != repository.SortDesc {
		return "", fmt.Errorf("sort order %q: %w", order, repository.ErrInvalidArgument)
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s %s", column, order, tie, order), nil
}

// limitOffset renders LIMIT/OFFSET for opts.
func limitOffset(opts repository.ListOptions, args *queryArgs) string {
	if opts.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %s OFFSET %s", args.add(opts.Limit), args.add(opts.Offset()))
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(search)) + "%"
}

// where joins conditions with AND.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}
