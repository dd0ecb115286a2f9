package user

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splax/taskhub/internal/domain"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/repository/memory"
	"github.com/splax/taskhub/pkg/crypto"
)

var (
	root = domain.Principal{UserID: "root", Role: domain.GlobalRoleAdmin}
	amy  = domain.Principal{UserID: "amy", Role: domain.GlobalRoleMember}
	ben  = domain.Principal{UserID: "ben", Role: domain.GlobalRoleMember}
)

func setup(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	now := time.Now().UTC()
	users := []domain.User{
		{ID: "root", Email: "root@corp.test", FirstName: "Ada", LastName: "Root", Role: domain.GlobalRoleAdmin, IsActive: true, CreatedAt: now},
		{ID: "amy", Email: "amy@corp.test", FirstName: "Amy", LastName: "Pond", Role: domain.GlobalRoleMember, IsActive: true, CreatedAt: now.Add(time.Second)},
		{ID: "ben", Email: "ben@corp.test", FirstName: "Ben", LastName: "Amos", Role: domain.GlobalRoleMember, IsActive: true, CreatedAt: now.Add(2 * time.Second)},
		{ID: "old", Email: "old@corp.test", FirstName: "Amelia", LastName: "Gone", Role: domain.GlobalRoleMember, IsActive: false, CreatedAt: now.Add(3 * time.Second)},
	}
	for i := range users {
		require.NoError(t, store.CreateUser(ctx, &users[i]))
	}
	require.NoError(t, store.CreateProject(ctx, &domain.Project{ID: "launch", Name: "Launch", OwnerID: "amy", CreatedAt: now}))
	require.NoError(t, store.AddMember(ctx, &domain.ProjectMember{ProjectID: "launch", UserID: "amy", Role: domain.ProjectRoleOwner, JoinedAt: now}))
	assignee := "amy"
	for i, status := range []domain.TaskStatus{domain.TaskDone, domain.TaskTodo, domain.TaskTodo} {
		require.NoError(t, store.CreateTask(ctx, &domain.Task{ID: string(rune('a' + i)), Title: "t", ProjectID: "launch", CreatedByID: "amy", AssigneeID: &assignee, Status: status, Priority: domain.PriorityLow, CreatedAt: now, UpdatedAt: now}))
	}
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil))), store
}

func TestListIsAdminOnly(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.List(ctx, amy, repository.UserFilter{}, repository.ListOptions{})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	active := true
	page, err := svc.List(ctx, root, repository.UserFilter{IsActive: &active, Search: "am"}, repository.ListOptions{SortBy: "firstName", SortOrder: repository.SortAsc})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Amy", page.Items[0].FirstName)
	assert.Equal(t, "Ben", page.Items[1].FirstName)
}

func TestSearchExcludesMembersAndInactive(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	found, err := svc.Search(ctx, amy, "am", "", 0)
	require.NoError(t, err)
	require.Len(t, found, 2)

	found, err = svc.Search(ctx, amy, "am", "launch", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "ben", found[0].ID)

	_, err = svc.Search(ctx, ben, "am", "launch", 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Search(ctx, amy, "  ", "", 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestGetSelfOrAdmin(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	profile, err := svc.Get(ctx, amy, "amy")
	require.NoError(t, err)
	assert.Equal(t, 1, profile.TaskStats[domain.TaskDone])
	assert.Equal(t, 2, profile.TaskStats[domain.TaskTodo])
	assert.Zero(t, profile.TaskStats[domain.TaskReview])

	_, err = svc.Get(ctx, ben, "amy")
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Get(ctx, root, "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateHonoursRole(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	name := "Amelia"
	promote := domain.GlobalRoleAdmin

	updated, err := svc.Update(ctx, amy, "amy", UpdateInput{FirstName: &name, Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, "Amelia", updated.FirstName)
	assert.Equal(t, domain.GlobalRoleMember, updated.Role, "members cannot promote themselves")

	updated, err = svc.Update(ctx, root, "amy", UpdateInput{Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, domain.GlobalRoleAdmin, updated.Role)

	_, err = svc.Update(ctx, ben, "amy", UpdateInput{FirstName: &name})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	empty := " "
	_, err = svc.Update(ctx, amy, "amy", UpdateInput{LastName: &empty})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeactivate(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Deactivate(ctx, amy, "ben"), domain.ErrForbidden)
	assert.ErrorIs(t, svc.Deactivate(ctx, root, "root"), domain.ErrValidation)

	require.NoError(t, svc.Deactivate(ctx, root, "ben"))
	ben, err := store.GetUserByID(ctx, "ben")
	require.NoError(t, err)
	assert.False(t, ben.IsActive)
}

func TestInvite(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	_, err := svc.Invite(ctx, amy, InviteInput{Email: "new@example.com", FirstName: "N", LastName: "U", Role: domain.GlobalRoleMember})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	inv, err := svc.Invite(ctx, root, InviteInput{Email: "New@Example.com", FirstName: "New", LastName: "User", Role: domain.GlobalRoleManager})
	require.NoError(t, err)
	assert.Len(t, inv.TemporaryPassword, tempPasswordLength)
	stored, err := store.GetUserByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NoError(t, crypto.ComparePassword(stored.PasswordHash, inv.TemporaryPassword))

	_, err = svc.Invite(ctx, root, InviteInput{Email: "amy@corp.test", FirstName: "A", LastName: "P", Role: domain.GlobalRoleMember})
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = svc.Invite(ctx, root, InviteInput{Email: "bad", Role: "owner"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
