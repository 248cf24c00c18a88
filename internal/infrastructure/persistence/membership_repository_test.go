package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clubledger/backend/internal/domain/identity"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/domain/shared"
	"github.com/clubledger/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormMembershipRepositories(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()
	repos := NewMembershipRepositories(db)
	tenantID := testutil.TestTenantID()
	branch := testutil.NewTestUUID("branch-1")

	plan := membership.NewPlan(tenantID, "Basic", testutil.Dec("99.50"), 365)
	require.NoError(t, repos.Plans.Create(ctx, plan))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := membership.NewMemberMembership(tenantID, &branch, uuid.New(), plan.ID, start, start.AddDate(1, 0, 0))
	require.NoError(t, err)
	require.NoError(t, repos.Memberships.Create(ctx, m))

	t.Run("plan lookup is tenant scoped", func(t *testing.T) {
		got, err := repos.Plans.FindByID(ctx, tenantID, plan.ID)
		require.NoError(t, err)
		assert.True(t, got.Price.Equal(testutil.Dec("99.50")))
		assert.True(t, got.IsActive)

		_, err = repos.Plans.FindByID(ctx, testutil.OtherTenantID(), plan.ID)
		assert.True(t, errors.Is(err, membership.ErrPlanNotFound))
	})

	t.Run("membership visibility", func(t *testing.T) {
		_, err := repos.Memberships.FindByID(ctx, identity.Scope{TenantID: tenantID}, m.ID)
		assert.NoError(t, err)

		other := testutil.NewTestUUID("branch-2")
		_, err = repos.Memberships.FindByID(ctx, identity.Scope{TenantID: tenantID, BranchID: &other}, m.ID)
		assert.True(t, errors.Is(err, membership.ErrMembershipNotFound))

		_, err = repos.Memberships.FindByIDForUpdate(ctx, identity.Scope{TenantID: testutil.OtherTenantID()}, m.ID)
		assert.True(t, errors.Is(err, membership.ErrMembershipNotFound))
	})

	t.Run("save transition and append event", func(t *testing.T) {
		ev, err := m.Pause(10, start.AddDate(0, 1, 0), "travel", "user-1")
		require.NoError(t, err)
		require.NoError(t, repos.Memberships.Save(ctx, m))
		require.NoError(t, repos.Events.Append(ctx, ev))

		got, err := repos.Memberships.FindByID(ctx, identity.Scope{TenantID: tenantID, BranchID: &branch}, m.ID)
		require.NoError(t, err)
		assert.Equal(t, membership.StatusFrozen, got.Status)
		assert.Equal(t, 10, got.FreezeDays)
		require.NotNil(t, got.OriginalEndDate)
		assert.True(t, got.OriginalEndDate.Equal(start.AddDate(1, 0, 0)))
		assert.True(t, got.EndDate.Equal(start.AddDate(1, 0, 10)))

		events, err := repos.Events.ListByMembership(ctx, tenantID, m.ID)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, membership.EventPaused, events[0].EventType)
		assert.Equal(t, membership.StatusActive, events[0].PreviousData.Status)
		assert.Equal(t, membership.SnapshotSchemaVersion, events[0].PreviousData.SchemaVersion)

		none, err := repos.Events.ListByMembership(ctx, testutil.OtherTenantID(), m.ID)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("stale save is rejected", func(t *testing.T) {
		stale, err := repos.Memberships.FindByID(ctx, identity.Scope{TenantID: tenantID}, m.ID)
		require.NoError(t, err)
		_, err = m.Resume(start.AddDate(0, 1, 5), "", "user-1")
		require.NoError(t, err)
		require.NoError(t, repos.Memberships.Save(ctx, m))

		_, err = stale.Resume(start.AddDate(0, 1, 5), "", "user-2")
		require.NoError(t, err)
		err = repos.Memberships.Save(ctx, stale)
		assert.True(t, errors.Is(err, shared.ErrConcurrentModification))
	})
}
