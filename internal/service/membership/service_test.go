package membership

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository/memory"
)

var (
	owner    = domain.Principal{UserID: "owner", FirstName: "Olga"}
	padmin   = domain.Principal{UserID: "padmin", FirstName: "Pat"}
	member   = domain.Principal{UserID: "member", FirstName: "Max"}
	outsider = domain.Principal{UserID: "outsider", FirstName: "Zed"}
	inactive = domain.Principal{UserID: "inactive", FirstName: "Ivy"}
	root     = domain.Principal{UserID: "root", FirstName: "Ada", Role: domain.GlobalRoleAdmin}
)

type invitation struct {
	projectID string
	inviteeID string
	role      domain.ProjectRole
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []invitation
}

func (n *recordingNotifier) ProjectInvitation(ctx context.Context, actor domain.Principal, project domain.Project, inviteeID string, role domain.ProjectRole) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, invitation{projectID: project.ID, inviteeID: inviteeID, role: role})
}

func setup(t *testing.T) (Service, *memory.Store, *recordingNotifier) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	store := memory.New()
	for _, p := range []domain.Principal{owner, padmin, member, outsider, inactive, root} {
		role := p.Role
		if role == "" {
			role = domain.GlobalRoleMember
		}
		require.NoError(t, store.CreateUser(ctx, &domain.User{ID: p.UserID, Email: p.UserID + "@example.com", FirstName: p.FirstName, Role: role, IsActive: p.UserID != inactive.UserID, CreatedAt: now}))
	}
	require.NoError(t, store.CreateProject(ctx, &domain.Project{ID: "launch", Name: "Launch", OwnerID: owner.UserID, CreatedAt: now}))
	for userID, role := range map[string]domain.ProjectRole{owner.UserID: domain.ProjectRoleOwner, padmin.UserID: domain.ProjectRoleAdmin, member.UserID: domain.ProjectRoleMember} {
		require.NoError(t, store.AddMember(ctx, &domain.ProjectMember{ProjectID: "launch", UserID: userID, Role: role, JoinedAt: now}))
	}
	memberID := member.UserID
	for _, id := range []string{"t1", "t2"} {
		require.NoError(t, store.CreateTask(ctx, &domain.Task{ID: id, Title: id, ProjectID: "launch", CreatedByID: owner.UserID, AssigneeID: &memberID, Status: domain.TaskTodo, Priority: domain.PriorityLow, CreatedAt: now, UpdatedAt: now}))
	}
	notifier := &recordingNotifier{}
	return New(store, notifier, slog.New(slog.NewTextHandler(io.Discard, nil))), store, notifier
}

func assertOwnerInvariant(t *testing.T, store *memory.Store) {
	t.Helper()
	members, err := store.ListMembers(context.Background(), "launch")
	require.NoError(t, err)
	owners := 0
	for _, m := range members {
		if m.Role == domain.ProjectRoleOwner {
			owners++
			assert.Equal(t, owner.UserID, m.ID)
		}
	}
	assert.Equal(t, 1, owners)
}

func TestAddMemberNotifiesAfterCommit(t *testing.T) {
	svc, store, notifier := setup(t)
	ctx := context.Background()

	m, err := svc.AddMember(ctx, padmin, "launch", outsider.UserID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectRoleMember, m.Role)

	got, err := store.GetMember(ctx, "launch", outsider.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectRoleMember, got.Role)
	assert.Equal(t, []invitation{{projectID: "launch", inviteeID: outsider.UserID, role: domain.ProjectRoleMember}}, notifier.calls)
	assertOwnerInvariant(t, store)
}

func TestAddMemberPreconditionOrder(t *testing.T) {
	svc, _, notifier := setup(t)
	ctx := context.Background()

	_, err := svc.AddMember(ctx, member, "launch", "ghost", domain.ProjectRoleViewer)
	assert.ErrorIs(t, err, domain.ErrForbidden, "role check wins over unknown user")

	_, err = svc.AddMember(ctx, root, "launch", outsider.UserID, domain.ProjectRoleViewer)
	assert.ErrorIs(t, err, domain.ErrForbidden, "global admin needs a project role")

	_, err = svc.AddMember(ctx, owner, "launch", "ghost", domain.ProjectRoleViewer)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.AddMember(ctx, owner, "launch", inactive.UserID, domain.ProjectRoleViewer)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.AddMember(ctx, owner, "launch", member.UserID, domain.ProjectRoleViewer)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.AddMember(ctx, owner, "launch", outsider.UserID, domain.ProjectRoleOwner)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, notifier.calls)
}

func TestChangeMemberRole(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	m, err := svc.ChangeMemberRole(ctx, owner, "launch", member.UserID, domain.ProjectRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectRoleAdmin, m.Role)

	_, err = svc.ChangeMemberRole(ctx, padmin, "launch", owner.UserID, domain.ProjectRoleMember)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)
	assert.NotErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.ChangeMemberRole(ctx, owner, "launch", outsider.UserID, domain.ProjectRoleViewer)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assertOwnerInvariant(t, store)
}

func TestRemoveMemberUnassignsTasks(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	ids, err := svc.RemoveMember(ctx, owner, "launch", member.UserID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"t1", "t2"}, ids)

	_, err = store.GetMember(ctx, "launch", member.UserID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	for _, id := range ids {
		task, err := store.GetTaskByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, task.AssigneeID)
	}
	assertOwnerInvariant(t, store)
}

func TestRemoveMemberRollsBackWhenUnassignFails(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	store.FailOn("UnassignTasks", errors.New("write failed"))

	_, err := svc.RemoveMember(ctx, owner, "launch", member.UserID)
	require.Error(t, err)

	_, err = store.GetMember(ctx, "launch", member.UserID)
	require.NoError(t, err, "membership must survive")
	ids, err := store.ListTaskIDsByAssignee(ctx, "launch", member.UserID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestRemoveMemberLeavesTasksWhenDeleteFails(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()
	store.FailOn("DeleteMember", errors.New("write failed"))

	_, err := svc.RemoveMember(ctx, owner, "launch", member.UserID)
	require.Error(t, err)

	ids, err := store.ListTaskIDsByAssignee(ctx, "launch", member.UserID)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestRemoveMemberGuards(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	_, err := svc.RemoveMember(ctx, member, "launch", padmin.UserID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.RemoveMember(ctx, padmin, "launch", owner.UserID)
	assert.ErrorIs(t, err, domain.ErrInvariantViolation)

	_, err = svc.RemoveMember(ctx, owner, "launch", outsider.UserID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.RemoveMember(ctx, owner, "nowhere", member.UserID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assertOwnerInvariant(t, store)
}

func TestListMembersHidesInvisibleProjects(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	members, err := svc.ListMembers(ctx, member, "launch")
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, "Max", members[0].FirstName)

	_, err = svc.ListMembers(ctx, outsider, "launch")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentAddsYieldOneMembership(t *testing.T) {
	svc, store, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddMember(ctx, owner, "launch", outsider.UserID, domain.ProjectRoleViewer)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
	_, err := store.GetMember(ctx, "launch", outsider.UserID)
	assert.NoError(t, err)
}
