package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/repository/memory"
)

var (
	owner    = domain.Principal{UserID: "owner", Role: domain.GlobalRoleMember}
	admin    = domain.Principal{UserID: "padmin", Role: domain.GlobalRoleMember}
	viewer   = domain.Principal{UserID: "viewer", Role: domain.GlobalRoleMember}
	outsider = domain.Principal{UserID: "outsider", Role: domain.GlobalRoleMember}
	root     = domain.Principal{UserID: "root", Role: domain.GlobalRoleAdmin}
)

func newStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	store := memory.New()
	for _, p := range []domain.Principal{owner, admin, viewer, outsider, root} {
		require.NoError(t, store.CreateUser(ctx, &domain.User{ID: p.UserID, Email: p.UserID + "@example.com", Role: p.Role, IsActive: true, CreatedAt: now}))
	}
	require.NoError(t, store.CreateProject(ctx, &domain.Project{ID: "launch", Name: "Launch", OwnerID: owner.UserID, Status: domain.ProjectActive, Priority: domain.PriorityMedium, CreatedAt: now}))
	require.NoError(t, store.AddMember(ctx, &domain.ProjectMember{ProjectID: "launch", UserID: owner.UserID, Role: domain.ProjectRoleOwner, JoinedAt: now}))
	require.NoError(t, store.AddMember(ctx, &domain.ProjectMember{ProjectID: "launch", UserID: admin.UserID, Role: domain.ProjectRoleAdmin, JoinedAt: now}))
	require.NoError(t, store.AddMember(ctx, &domain.ProjectMember{ProjectID: "launch", UserID: viewer.UserID, Role: domain.ProjectRoleViewer, JoinedAt: now}))
	require.NoError(t, store.CreateTask(ctx, &domain.Task{ID: "task-1", Title: "Ship", ProjectID: "launch", CreatedByID: owner.UserID, Status: domain.TaskTodo, Priority: domain.PriorityLow, CreatedAt: now, UpdatedAt: now}))
	return store
}

func TestProjectVisibility(t *testing.T) {
	store := newStore(t)
	eval := New(store)
	ctx := context.Background()

	for _, p := range []domain.Principal{owner, admin, viewer} {
		ok, err := eval.CanAccessProject(ctx, p, "launch")
		require.NoError(t, err)
		assert.True(t, ok, p.UserID)
	}

	ok, err := eval.CanAccessProject(ctx, outsider, "launch")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = eval.CanAccessProject(ctx, root, "launch")
	require.NoError(t, err)
	assert.False(t, ok, "global admin does not see projects it is not part of")
}

func TestHiddenAndMissingProjectsLookIdentical(t *testing.T) {
	eval := New(newStore(t))
	ctx := context.Background()

	_, _, hidden := eval.AuthorizeProjectRead(ctx, outsider, "launch")
	_, _, missing := eval.AuthorizeProjectRead(ctx, outsider, "nope")
	require.ErrorIs(t, hidden, domain.ErrNotFound)
	require.ErrorIs(t, missing, domain.ErrNotFound)
	assert.Equal(t, missing.Error(), hidden.Error())

	_, hiddenDelete := eval.AuthorizeProjectMutation(ctx, outsider, "launch")
	assert.Equal(t, hidden.Error(), hiddenDelete.Error())

	_, hiddenTask := eval.AuthorizeTask(ctx, outsider, "task-1")
	_, missingTask := eval.AuthorizeTask(ctx, outsider, "task-404")
	require.ErrorIs(t, hiddenTask, domain.ErrNotFound)
	assert.Equal(t, missingTask.Error(), hiddenTask.Error())
}

func TestProjectMutationRoles(t *testing.T) {
	eval := New(newStore(t))
	ctx := context.Background()

	_, err := eval.AuthorizeProjectMutation(ctx, owner, "launch")
	assert.NoError(t, err)
	_, err = eval.AuthorizeProjectMutation(ctx, admin, "launch")
	assert.NoError(t, err)
	_, err = eval.AuthorizeProjectMutation(ctx, viewer, "launch")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = eval.AuthorizeProjectMutation(ctx, root, "launch")
	assert.ErrorIs(t, err, domain.ErrNotFound, "global admin gets no project mutation rights")
}

func TestRequireProjectRoleIsForbiddenForMissingProjects(t *testing.T) {
	eval := New(newStore(t))
	ctx := context.Background()

	assert.NoError(t, eval.RequireProjectRole(ctx, owner, "launch", ManagerRoles...))
	assert.NoError(t, eval.RequireProjectRole(ctx, admin, "launch", ManagerRoles...))
	assert.ErrorIs(t, eval.RequireProjectRole(ctx, viewer, "launch", ManagerRoles...), domain.ErrForbidden)
	assert.ErrorIs(t, eval.RequireProjectRole(ctx, outsider, "launch", ManagerRoles...), domain.ErrForbidden)
	assert.ErrorIs(t, eval.RequireProjectRole(ctx, owner, "missing", ManagerRoles...), domain.ErrForbidden)
}

func TestTaskAccessFollowsProject(t *testing.T) {
	eval := New(newStore(t))
	ctx := context.Background()

	task, err := eval.AuthorizeTask(ctx, viewer, "task-1")
	require.NoError(t, err)
	assert.Equal(t, "launch", task.ProjectID)
}

func TestRequireAssignable(t *testing.T) {
	eval := New(newStore(t))
	ctx := context.Background()

	assert.NoError(t, eval.RequireAssignable(ctx, "launch", viewer.UserID))

	err := eval.RequireAssignable(ctx, "launch", outsider.UserID)
	require.ErrorIs(t, err, domain.ErrValidation)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "assigneeId")
}

func TestVisibilityPredicates(t *testing.T) {
	eval := New(newStore(t))
	assert.True(t, eval.VisibleProjects(domain.Principal{}).MatchesNothing())
	assert.Equal(t, repository.VisibleTo("viewer"), eval.VisibleTasks(viewer))
	assert.False(t, eval.VisibleProjects(root).IsUnrestricted(), "admins see their own projects in scoped reads")
}

func TestRequireGlobalRole(t *testing.T) {
	assert.NoError(t, RequireGlobalRole(root, domain.GlobalRoleAdmin))
	assert.ErrorIs(t, RequireGlobalRole(owner, domain.GlobalRoleAdmin), domain.ErrForbidden)
	assert.ErrorIs(t, RequireGlobalRole(domain.Principal{}, domain.GlobalRoleAdmin), domain.ErrUnauthenticated)
}

func TestWithinSeesTransactionState(t *testing.T) {
	store := newStore(t)
	eval := New(store)
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx repository.Repositories) error {
		if err := tx.DeleteMember(ctx, "launch", viewer.UserID); err != nil {
			return err
		}
		ok, err := eval.Within(tx).CanAccessProject(ctx, viewer, "launch")
		require.NoError(t, err)
		assert.False(t, ok)
		return errors.New("rollback")
	})
	require.Error(t, err)

	ok, err := eval.CanAccessProject(ctx, viewer, "launch")
	require.NoError(t, err)
	assert.True(t, ok)
}
