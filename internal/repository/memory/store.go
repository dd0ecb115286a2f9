// Package memory is an in-process Entity Store with the same transactional
// contract as the postgres store. It backs local runs with STORE_DRIVER=memory
// and the service test suites.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

type memberKey struct {
	projectID string
	userID    string
}

type state struct {
	users         map[string]domain.User
	projects      map[string]domain.Project
	members       map[memberKey]domain.ProjectMember
	tasks         map[string]domain.Task
	comments      map[string]domain.Comment
	notifications map[string]domain.Notification
}

func newState() *state {
	return &state{
		users:         make(map[string]domain.User),
		projects:      make(map[string]domain.Project),
		members:       make(map[memberKey]domain.ProjectMember),
		tasks:         make(map[string]domain.Task),
		comments:      make(map[string]domain.Comment),
		notifications: make(map[string]domain.Notification),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.projects {
		c.projects[k] = copyProject(v)
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.tasks {
		c.tasks[k] = copyTask(v)
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = copyNotification(v)
	}
	return c
}

type core struct {
	// writeMu serialises writers: a transaction holds it from clone to swap.
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state

	faultMu sync.Mutex
	faults  map[string]error
}

// Store implements repository.Store in memory. The zero value is not usable;
// construct with New.
type Store struct {
	core *core
	tx   *state
}

var _ repository.Store = (*Store)(nil)

// New constructs an empty Store.
func New() *Store {
	return &Store{core: &core{st: newState(), faults: make(map[string]error)}}
}

// FailOn makes every subsequent call of the named operation (the method name,
// e.g. "UnassignTasks") return err. A nil err clears the fault.
func (s *Store) FailOn(op string, err error) {
	s.core.faultMu.Lock()
	defer s.core.faultMu.Unlock()
	if err == nil {
		delete(s.core.faults, op)
		return
	}
	s.core.faults[op] = err
}

// ClearFaults removes every injected fault.
func (s *Store) ClearFaults() {
	s.core.faultMu.Lock()
	defer s.core.faultMu.Unlock()
	s.core.faults = make(map[string]error)
}

func (s *Store) fault(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.core.faultMu.Lock()
	defer s.core.faultMu.Unlock()
	return s.core.faults[op]
}

// WithinTx runs fn against a private copy of the data and publishes it only
// when fn succeeds and ctx is still live. Nested calls join the outer
// transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if s.tx != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.core.writeMu.Lock()
	defer s.core.writeMu.Unlock()

	s.core.mu.RLock()
	working := s.core.st.clone()
	s.core.mu.RUnlock()

	if err := fn(&Store{core: s.core, tx: working}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.core.mu.Lock()
	s.core.st = working
	s.core.mu.Unlock()
	return nil
}

func (s *Store) read(ctx context.Context, op string, fn func(st *state) error) error {
	if err := s.fault(ctx, op); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s.tx)
	}
	s.core.mu.RLock()
	defer s.core.mu.RUnlock()
	return fn(s.core.st)
}

// write applies fn directly to the transaction state, or as a single
// statement outside a transaction. fn must validate before it mutates.
func (s *Store) write(ctx context.Context, op string, fn func(st *state) error) error {
	if err := s.fault(ctx, op); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s.tx)
	}
	s.core.writeMu.Lock()
	defer s.core.writeMu.Unlock()
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	return fn(s.core.st)
}

func (st *state) isMember(projectID, userID string) bool {
	_, ok := st.members[memberKey{projectID: projectID, userID: userID}]
	return ok
}

func (st *state) projectVisible(scope repository.Visibility, p domain.Project) bool {
	return scope.AllowsProject(p.OwnerID, st.isMember(p.ID, scope.UserID()))
}

func (st *state) taskVisible(scope repository.Visibility, t domain.Task) bool {
	p, ok := st.projects[t.ProjectID]
	if !ok {
		return false
	}
	return st.projectVisible(scope, p)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyProject(p domain.Project) domain.Project {
	p.StartDate = copyTime(p.StartDate)
	p.EndDate = copyTime(p.EndDate)
	if p.Budget != nil {
		v := *p.Budget
		p.Budget = &v
	}
	return p
}

func copyTask(t domain.Task) domain.Task {
	t.DueDate = copyTime(t.DueDate)
	if t.EstimatedHours != nil {
		v := *t.EstimatedHours
		t.EstimatedHours = &v
	}
	if t.AssigneeID != nil {
		v := *t.AssigneeID
		t.AssigneeID = &v
	}
	t.Tags = append([]string{}, t.Tags...)
	return t
}

func copyNotification(n domain.Notification) domain.Notification {
	n.ReadAt = copyTime(n.ReadAt)
	if n.Data != nil {
		data := make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			data[k] = v
		}
		n.Data = data
	}
	return n
}

// paginate slices items for opts and returns the window.
func paginate[T any](items []T, opts repository.ListOptions) []T {
	start := opts.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := len(items)
	if opts.Limit > 0 && start+opts.Limit < end {
		end = start + opts.Limit
	}
	return items[start:end]
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func rank[T comparable](values []T, v T) int {
	for i, known := range values {
		if known == v {
			return i
		}
	}
	return len(values)
}

func compareTimePtr(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return a.Compare(*b)
}

func ordered(cmp int, order repository.SortOrder) int {
	if order == repository.SortAsc {
		return cmp
	}
	return -cmp
}
