package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
)

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, s.CreateUser(ctx, &domain.User{ID: id, Email: id + "@example.com", FirstName: id, Role: domain.GlobalRoleMember, IsActive: true, CreatedAt: now}))
	}
	require.NoError(t, s.CreateProject(ctx, &domain.Project{ID: "p1", Name: "Launch", OwnerID: "alice", Status: domain.ProjectActive, Priority: domain.PriorityHigh, CreatedAt: now}))
	require.NoError(t, s.AddMember(ctx, &domain.ProjectMember{ProjectID: "p1", UserID: "alice", Role: domain.ProjectRoleOwner, JoinedAt: now}))
	require.NoError(t, s.AddMember(ctx, &domain.ProjectMember{ProjectID: "p1", UserID: "bob", Role: domain.ProjectRoleMember, JoinedAt: now}))
	bob := "bob"
	require.NoError(t, s.CreateTask(ctx, &domain.Task{ID: "t1", Title: "one", ProjectID: "p1", AssigneeID: &bob, CreatedByID: "alice", Status: domain.TaskTodo, Priority: domain.PriorityLow, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.CreateTask(ctx, &domain.Task{ID: "t2", Title: "two", ProjectID: "p1", AssigneeID: &bob, CreatedByID: "alice", Status: domain.TaskDone, Priority: domain.PriorityLow, CreatedAt: now, UpdatedAt: now}))
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	s.FailOn("UnassignTasks", errors.New("boom"))
	err := s.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.DeleteMember(ctx, "p1", "bob"); err != nil {
			return err
		}
		_, err := tx.UnassignTasks(ctx, []string{"t1", "t2"})
		return err
	})
	require.Error(t, err)

	_, err = s.GetMember(ctx, "p1", "bob")
	require.NoError(t, err, "membership must survive a rolled back transaction")
	task, err := s.GetTaskByID(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, task.AssignedTo("bob"))
}

func TestWithinTxCommits(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.DeleteMember(ctx, "p1", "bob"); err != nil {
			return err
		}
		n, err := tx.UnassignTasks(ctx, []string{"t1", "t2"})
		assert.Equal(t, 2, n)
		return err
	})
	require.NoError(t, err)

	_, err = s.GetMember(ctx, "p1", "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	ids, err := s.ListTaskIDsByAssignee(ctx, "p1", "bob")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWithinTxCancelledContextDiscardsWrites(t *testing.T) {
	s := New()
	seed(t, s)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithinTx(ctx, func(tx repository.Repositories) error {
		require.NoError(t, tx.DeleteMember(ctx, "p1", "bob"))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.GetMember(context.Background(), "p1", "bob")
	assert.NoError(t, err)
}

func TestVisibilityScopesListings(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	opts := repository.ListOptions{Page: 1, Limit: 10, SortBy: "createdAt", SortOrder: repository.SortDesc}

	projects, total, err := s.ListProjects(ctx, repository.VisibleTo("carol"), repository.ProjectFilter{}, opts)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, projects)

	_, total, err = s.ListTasks(ctx, repository.VisibleTo("bob"), repository.TaskFilter{}, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	_, total, err = s.ListTasks(ctx, repository.Visibility{}, repository.TaskFilter{}, opts)
	require.NoError(t, err)
	assert.Zero(t, total, "zero visibility matches nothing")

	n, err := s.CountProjects(ctx, repository.Unrestricted())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUniquenessConflicts(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	err := s.CreateUser(ctx, &domain.User{ID: "dup", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = s.AddMember(ctx, &domain.ProjectMember{ProjectID: "p1", UserID: "bob", Role: domain.ProjectRoleViewer})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestDeleteReadNotificationsBeforeIsIdempotent(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	readAt := old.Add(time.Hour)

	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n1", Type: domain.NotifyTaskAssigned, UserID: "bob", IsRead: true, ReadAt: &readAt, CreatedAt: old}))
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "n2", Type: domain.NotifyTaskAssigned, UserID: "bob", CreatedAt: old}))

	cutoff := old.Add(24 * time.Hour)
	n, err := s.DeleteReadNotificationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteReadNotificationsBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Zero(t, n)

	unread, err := s.CountUnread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}

func TestTaskHourTotalsIgnoresMissingEstimates(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	ten, twenty := 10, 20
	t1, err := s.GetTaskByID(ctx, "t1")
	require.NoError(t, err)
	t1.EstimatedHours = &ten
	require.NoError(t, s.UpdateTask(ctx, t1))
	t2, err := s.GetTaskByID(ctx, "t2")
	require.NoError(t, err)
	t2.EstimatedHours = &twenty
	require.NoError(t, s.UpdateTask(ctx, t2))
	now := time.Now()
	require.NoError(t, s.CreateTask(ctx, &domain.Task{ID: "t3", Title: "three", ProjectID: "p1", CreatedByID: "alice", Status: domain.TaskTodo, Priority: domain.PriorityLow, ActualHours: 3, CreatedAt: now, UpdatedAt: now}))

	totals, err := s.TaskHourTotals(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 30, totals.TotalEstimated)
	assert.InDelta(t, 15.0, totals.AvgEstimated, 0.001)
	assert.InDelta(t, 1.0, totals.AvgActual, 0.001)
}

func TestPaginateOutOfRangeWindows(t *testing.T) {
	items := []int{1, 2, 3}
	assert.Equal(t, []int{3}, paginate(items, repository.ListOptions{Page: 2, Limit: 2}))
	assert.Empty(t, paginate(items, repository.ListOptions{Page: 5, Limit: 2}))
	assert.Empty(t, paginate(items, repository.ListOptions{Page: 92233720368547760, Limit: 100}), "overflowing offset yields an empty page")
}
