package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/complaintflow/backend/internal/models"
)

func TestCanView(t *testing.T) {
	env := newTestEnv(t)
	outsideInstaller := env.user(t, "installer-outside", models.RoleInstaller, "Petersburg")
	c := env.newComplaint(t, env.manager)

	assert.True(t, CanView(env.admin, c))
	assert.True(t, CanView(env.leader, c))
	assert.True(t, CanView(env.manager, c), "initiator")
	assert.True(t, CanView(env.sm, c), "recipient and same city")
	assert.False(t, CanView(outsideInstaller, c))
	assert.False(t, CanView(env.orUser, c), "department sees factory complaints only")

	_, err := env.complaints.SetTypeFactory(context.Background(), env.sm, c.ID)
	require.NoError(t, err)
	factory, err := env.complaints.Get(context.Background(), env.orUser, c.ID)
	require.NoError(t, err)
	assert.True(t, CanView(env.orUser, factory))
}

func TestListVisibilityPerRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	mine := env.newComplaint(t, env.installer)
	other := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeFactory(ctx, env.sm, other.ID)
	require.NoError(t, err)

	installerList, err := env.complaints.List(ctx, env.installer, ListOptions{ExcludeClosed: true})
	require.NoError(t, err)
	require.Len(t, installerList, 1)
	assert.Equal(t, mine.ID, installerList[0].ID)

	orList, err := env.complaints.List(ctx, env.orUser, ListOptions{ExcludeClosed: true})
	require.NoError(t, err)
	require.Len(t, orList, 1)
	assert.Equal(t, other.ID, orList[0].ID)

	adminList, err := env.complaints.List(ctx, env.admin, ListOptions{ExcludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, adminList, 2)

	smList, err := env.complaints.List(ctx, env.sm, ListOptions{ExcludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, smList, 2, "both initiators are in the service manager's city")

	otherSMList, err := env.complaints.List(ctx, env.smOther, ListOptions{ExcludeClosed: true})
	require.NoError(t, err)
	assert.Empty(t, otherSMList)
}

func TestListExcludesClosedByDefault(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.newComplaint(t, env.manager)
	closedOne := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeManager(ctx, env.sm, closedOne.ID)
	require.NoError(t, err)
	_, err = env.complaints.Close(ctx, env.sm, closedOne.ID, "duplicate")
	require.NoError(t, err)

	visible, err := env.complaints.List(ctx, env.admin, ListOptions{ExcludeClosed: true})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, open.ID, visible[0].ID)

	all, err := env.complaints.List(ctx, env.admin, ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestListSearchAndStatusFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeFactory(ctx, env.sm, c.ID)
	require.NoError(t, err)

	found, err := env.complaints.List(ctx, env.admin, ListOptions{Search: "ORD-100", ExcludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	none, err := env.complaints.List(ctx, env.admin, ListOptions{Search: "missing", ExcludeClosed: true})
	require.NoError(t, err)
	assert.Empty(t, none)

	sent, err := env.complaints.List(ctx, env.admin, ListOptions{Status: models.StatusSent, ExcludeClosed: true})
	require.NoError(t, err)
	assert.Len(t, sent, 1)
}

func TestTaskScopeKeys(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		user *models.User
		key  string
		ok   bool
	}{
		{env.installer, "in_work", true},
		{env.installer, "needs_planning", true},
		{env.installer, "planned", true},
		{env.installer, "completed", true},
		{env.installer, "review", false},
		{env.manager, "in_progress", true},
		{env.manager, "on_warehouse", true},
		{env.sm, "review", true},
		{env.sm, "overdue", true},
		{env.orUser, "pending", true},
		{env.orUser, "planned", false},
		{env.admin, "factory_overdue", true},
		{env.leader, "shipping_overdue", true},
		{env.admin, "nonsense", false},
	}
	for _, tc := range cases {
		_, ok := TaskScope(tc.user, tc.key)
		assert.Equal(t, tc.ok, ok, "%s/%s", tc.user.Role, tc.key)
	}
}

func TestDashboardCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := env.newComplaint(t, env.manager)
	_, err := env.complaints.SetTypeInstaller(ctx, env.sm, c.ID, env.installer.ID)
	require.NoError(t, err)

	stats, err := env.complaints.Dashboard(ctx, env.installer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["total"])
	assert.Equal(t, int64(1), stats["needs_planning"])
	assert.Equal(t, int64(0), stats["planned"])
}
