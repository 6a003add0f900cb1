package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doccontrol/internal/identity/models"
	"doccontrol/internal/identity/store"
	id "doccontrol/pkg/domain"
	dErrors "doccontrol/pkg/domain-errors"
	"doccontrol/pkg/testutil"
)

func newDirectory(t *testing.T) (*Service, *store.InMemory, *store.Demo) {
	t.Helper()
	st := store.NewInMemory()
	demo, err := store.SeedDemo(context.Background(), st, time.Now())
	require.NoError(t, err)
	return New(st, st, st), st, demo
}

func TestRequireActiveTenant(t *testing.T) {
	svc, _, demo := newDirectory(t)
	ctx := context.Background()

	testutil.Given(t, "an active tenant", func(t *testing.T) {
		assert.NoError(t, svc.RequireActiveTenant(ctx, demo.Tenant.ID))
	})

	testutil.Given(t, "an unknown tenant", func(t *testing.T) {
		err := svc.RequireActiveTenant(ctx, id.NewTenantID())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	testutil.Given(t, "a deactivated tenant", func(t *testing.T) {
		_, err := svc.DeactivateTenant(ctx, demo.Tenant.ID)
		require.NoError(t, err)

		testutil.Then(t, "core operations are refused", func(t *testing.T) {
			err := svc.RequireActiveTenant(ctx, demo.Tenant.ID)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
		})

		testutil.Then(t, "deactivating again conflicts", func(t *testing.T) {
			_, err := svc.DeactivateTenant(ctx, demo.Tenant.ID)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		})

		testutil.Then(t, "reactivation restores access", func(t *testing.T) {
			tenant, err := svc.ReactivateTenant(ctx, demo.Tenant.ID)
			require.NoError(t, err)
			assert.Equal(t, models.TenantStatusActive, tenant.Status)
			assert.NoError(t, svc.RequireActiveTenant(ctx, demo.Tenant.ID))
		})
	})
}

func TestResolveTenantUsers(t *testing.T) {
	svc, _, demo := newDirectory(t)
	ctx := context.Background()
	alice, bob := demo.Members[0].ID, demo.Members[1].ID

	t.Run("dedupes while preserving order", func(t *testing.T) {
		got, err := svc.ResolveTenantUsers(ctx, demo.Tenant.ID, []id.UserID{bob, alice, bob})
		require.NoError(t, err)
		assert.Equal(t, []id.UserID{bob, alice}, got)
	})

	t.Run("foreign user fails the whole call", func(t *testing.T) {
		_, err := svc.ResolveTenantUsers(ctx, demo.Tenant.ID, []id.UserID{alice, id.NewUserID()})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	t.Run("RequireMember", func(t *testing.T) {
		assert.NoError(t, svc.RequireMember(ctx, demo.Tenant.ID, alice))
		assert.Error(t, svc.RequireMember(ctx, id.NewTenantID(), alice))
	})
}

func TestActiveUserIDsAndContracts(t *testing.T) {
	svc, _, demo := newDirectory(t)
	ctx := context.Background()

	ids, err := svc.ActiveUserIDs(ctx, demo.Tenant.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	assert.NoError(t, svc.RequireContract(ctx, demo.Tenant.ID, demo.Contract.ID))
	err = svc.RequireContract(ctx, demo.Tenant.ID, id.NewContractID())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestTenantStatusTable(t *testing.T) {
	assert.True(t, models.TenantStatusActive.CanTransitionTo(models.TenantStatusInactive))
	assert.True(t, models.TenantStatusInactive.CanTransitionTo(models.TenantStatusActive))
	assert.False(t, models.TenantStatusActive.CanTransitionTo(models.TenantStatusActive))
	assert.False(t, models.TenantStatus("archived").CanTransitionTo(models.TenantStatusActive))
}
