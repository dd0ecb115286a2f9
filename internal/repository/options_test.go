package repository

import (
	"errors"
	"testing"

	"github.com/splax/taskhub/internal/domain"
)

func TestListOptionsNormalizeDefaults(t *testing.T) {
	opts, err := ListOptions{}.Normalize([]string{"createdAt", "title"}, "createdAt", 0)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if opts.Page != 1 || opts.Limit != DefaultLimit || opts.SortBy != "createdAt" || opts.SortOrder != SortDesc {
		t.Fatalf("unexpected defaults %+v", opts)
	}
	if opts.Offset() != 0 {
		t.Fatalf("expected zero offset, got %d", opts.Offset())
	}
}

func TestListOptionsNormalizeRejectsUnknownSort(t *testing.T) {
	_, err := ListOptions{SortBy: "password", SortOrder: "sideways", Page: -1}.Normalize([]string{"createdAt"}, "createdAt", 10)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, field := range []string{"sortBy", "sortOrder", "page"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected %s to be reported, got %v", field, verr.Fields)
		}
	}
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation match")
	}
}

func TestListOptionsOffsetAndCap(t *testing.T) {
	opts, err := ListOptions{Page: 3, Limit: 500, SortOrder: "asc"}.Normalize([]string{"createdAt"}, "createdAt", 10)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if opts.Limit != MaxLimit || opts.SortOrder != SortAsc {
		t.Fatalf("unexpected options %+v", opts)
	}
	if opts.Offset() != 2*MaxLimit {
		t.Fatalf("unexpected offset %d", opts.Offset())
	}
}

func TestVisibility(t *testing.T) {
	var zero Visibility
	if !zero.MatchesNothing() || zero.AllowsProject("", true) {
		t.Fatalf("zero visibility must match nothing")
	}
	scoped := VisibleTo("u1")
	if !scoped.AllowsProject("u1", false) || !scoped.AllowsProject("u2", true) || scoped.AllowsProject("u2", false) {
		t.Fatalf("unexpected scoped visibility decisions")
	}
	if !Unrestricted().AllowsProject("anyone", false) {
		t.Fatalf("unrestricted must allow every project")
	}
}

func TestListOptionsNormalizeRejectsHugePage(t *testing.T) {
	_, err := ListOptions{Page: 92233720368547760, Limit: 100}.Normalize([]string{"createdAt"}, "createdAt", 10)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := verr.Fields["page"]; !ok {
		t.Fatalf("expected page to be reported, got %v", verr.Fields)
	}

	opts, err := ListOptions{Page: MaxOffset / MaxLimit, Limit: MaxLimit}.Normalize([]string{"createdAt"}, "createdAt", 10)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if opts.Offset() < 0 {
		t.Fatalf("offset overflowed: %d", opts.Offset())
	}
}
