package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

func TestVisibleProjectRendersMembershipJoin(t *testing.T) {
	var args queryArgs
	got := visibleProject(repository.VisibleTo("user-1"), "p", &args)
	if !strings.Contains(got, "p.owner_id = $1") || !strings.Contains(got, "vm.user_id = $1") {
		t.Fatalf("unexpected predicate %q", got)
	}
	if len(args) != 1 || args[0] != "user-1" {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestVisibleProjectEdgeScopes(t *testing.T) {
	var args queryArgs
	if got := visibleProject(repository.Visibility{}, "p", &args); got != "FALSE" {
		t.Fatalf("zero scope should render FALSE, got %q", got)
	}
	if got := visibleTask(repository.Unrestricted(), "t", &args); got != "TRUE" {
		t.Fatalf("unrestricted scope should render TRUE, got %q", got)
	}
	if len(args) != 0 {
		t.Fatalf("edge scopes must not bind args, got %v", args)
	}
}

func TestVisibleTaskNestsProjectPredicate(t *testing.T) {
	args := queryArgs{"already-bound"}
	got := visibleTask(repository.VisibleTo("user-2"), "t", &args)
	if !strings.Contains(got, "vp.id = t.project_id") || !strings.Contains(got, "vp.owner_id = $2") {
		t.Fatalf("unexpected predicate %q", got)
	}
}

func TestOrderByRejectsUnknownColumns(t *testing.T) {
	_, err := orderBy(taskSortColumns, repository.ListOptions{SortBy: "title; DROP TABLE tasks"}, "t.id")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	_, err = orderBy(taskSortColumns, repository.ListOptions{SortBy: "title", SortOrder: "UP"}, "t.id")
	if !errors.Is(err, repository.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for order, got %v", err)
	}
}

func TestOrderByRanksEnums(t *testing.T) {
	got, err := orderBy(taskSortColumns, repository.ListOptions{SortBy: "priority", SortOrder: repository.SortAsc}, "t.id")
	if err != nil {
		t.Fatalf("order by: %v", err)
	}
	want := " ORDER BY array_position(ARRAY['low','medium','high','urgent']::text[], t.priority) ASC, t.id ASC"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	if got := likePattern(" 50%_off "); got != `%50\%\_off%` {
		t.Fatalf("unexpected pattern %q", got)
	}
}
