package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/entitlement/domain"
	"github.com/oakline/storefront/internal/entitlement/repository"
	"github.com/oakline/storefront/internal/money"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Entitlement{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func strPtr(v string) *string { return &v }

func TestGateAllowsFreshBuyer(t *testing.T) {
	svc := newTestService(t, setupTestDB(t))
	err := svc.EvaluatePurchaseGate(context.Background(), "g1", "u1", 100, money.PlanOneTime, false)
	require.NoError(t, err)
}

func TestGateAllowsAfterRevocation(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanOneTime,
	}))
	require.NoError(t, svc.RevokeOnRefund(ctx, "g1", "u1", 100, "admin"))

	require.NoError(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanOneTime, false))
}

func TestGateLifetimeBlocksEverything(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanLifetime,
	}))

	for _, target := range money.PlanOrder {
		require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, target, false), domain.ErrLifetimeOwned)
		require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, target, true), domain.ErrLifetimeOwned)
	}
}

func TestGateOneTimeUpgradePath(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanOneTime,
	}))

	// A second fresh purchase is refused and pointed at the upgrade path.
	require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanOneTime, false), domain.ErrAlreadyOwned)

	// Upgrading to a subscription plan is the one allowed move.
	require.NoError(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanMonthly, true))
	require.NoError(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanAnnual, true))

	require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanLifetime, true), domain.ErrUpgradeTargetPlan)
	require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanOneTime, true), domain.ErrUpgradeTargetPlan)
}

func TestGateBlocksSecondSubscription(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanMonthly,
		SubscriptionRef: strPtr("sub_1"),
	}))

	require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanAnnual, true), domain.ErrUpgradeSourcePlan)
	require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanAnnual, false), domain.ErrAlreadyOwned)
}

func TestGateUpgradeDeniedWhenSubscriptionAttached(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanOneTime,
		SubscriptionRef: strPtr("sub_held"),
	}))

	require.ErrorIs(t, svc.EvaluatePurchaseGate(ctx, "g1", "u1", 100, money.PlanMonthly, true), domain.ErrSubscriptionPresent)
}

func TestUpsertOnPaidIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	params := domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanOneTime,
		ReferenceCode: strPtr("FRIEND10"),
	}
	require.NoError(t, svc.UpsertOnPaid(ctx, params))
	require.NoError(t, svc.UpsertOnPaid(ctx, params))

	var count int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM entitlements`).Scan(&count).Error)
	require.EqualValues(t, 1, count)

	owned, err := svc.Find(ctx, "g1", "u1", 100)
	require.NoError(t, err)
	require.Equal(t, domain.StatusActive, owned.Status)
	require.Equal(t, "FRIEND10", *owned.ReferenceCode)
}

func TestUpgradePaidReplacesPlan(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanOneTime,
	}))
	require.NoError(t, svc.UpsertOnPaid(ctx, domain.GrantParams{
		GuildID: "g1", UserID: "u1", ProductID: 100, PlanKey: money.PlanMonthly,
		SubscriptionRef: strPtr("sub_2"),
	}))

	owned, err := svc.Find(ctx, "g1", "u1", 100)
	require.NoError(t, err)
	require.Equal(t, money.PlanMonthly, owned.PlanKey)
	require.Equal(t, "sub_2", *owned.SubscriptionRef)
}
