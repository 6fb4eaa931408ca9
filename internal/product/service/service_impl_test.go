package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/money"
	"github.com/oakline/storefront/internal/product/domain"
	"github.com/oakline/storefront/internal/product/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Product{}))

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

func TestCreateAndPriceLifecycle(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		GuildID:     "g1",
		Name:        "Pro Access",
		GrantRoleID: "role-7",
	})
	require.NoError(t, err)
	require.Empty(t, created.EnabledPlans)

	priced, err := svc.SetPrice(ctx, domain.SetPriceRequest{
		GuildID: "g1",
		ID:      created.ID,
		Plan:    money.PlanMonthly,
		Amount:  "9.99",
	})
	require.NoError(t, err)
	require.Equal(t, []money.PlanKey{money.PlanMonthly}, priced.EnabledPlans)

	priced, err = svc.SetPrice(ctx, domain.SetPriceRequest{
		GuildID: "g1",
		ID:      created.ID,
		Plan:    money.PlanLifetime,
		Amount:  "199",
	})
	require.NoError(t, err)
	require.Equal(t, []money.PlanKey{money.PlanMonthly, money.PlanLifetime}, priced.EnabledPlans)

	unset, err := svc.UnsetPrice(ctx, "g1", created.ID, money.PlanMonthly)
	require.NoError(t, err)
	require.Equal(t, []money.PlanKey{money.PlanLifetime}, unset.EnabledPlans)
}

// Prices re-read from the database come back as json.Number, not the int64
// that was written. A fresh Get must still see the plans as enabled.
func TestPricesSurviveDatabaseRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{
		GuildID:     "g1",
		Name:        "Pro Access",
		GrantRoleID: "role-7",
	})
	require.NoError(t, err)

	_, err = svc.SetPrice(ctx, domain.SetPriceRequest{
		GuildID: "g1", ID: created.ID, Plan: money.PlanMonthly, Amount: "9.99",
	})
	require.NoError(t, err)
	_, err = svc.SetPrice(ctx, domain.SetPriceRequest{
		GuildID: "g1", ID: created.ID, Plan: money.PlanLifetime, Amount: "199",
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "g1", created.ID)
	require.NoError(t, err)
	require.Equal(t, []money.PlanKey{money.PlanMonthly, money.PlanLifetime}, got.EnabledPlans)
	require.Equal(t, int64(999), money.PriceFor(got.Prices, money.PlanMonthly))
	require.Equal(t, int64(19900), money.PriceFor(got.Prices, money.PlanLifetime))
}

func TestSetPriceValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateRequest{GuildID: "g1", Name: "Thing", GrantRoleID: "r"})
	require.NoError(t, err)

	_, err = svc.SetPrice(ctx, domain.SetPriceRequest{GuildID: "g1", ID: created.ID, Plan: "weekly", Amount: "5"})
	require.ErrorIs(t, err, money.ErrInvalidPlan)

	_, err = svc.SetPrice(ctx, domain.SetPriceRequest{GuildID: "g1", ID: created.ID, Plan: money.PlanOneTime, Amount: "0"})
	require.ErrorIs(t, err, money.ErrInvalidAmount)

	_, err = svc.SetPrice(ctx, domain.SetPriceRequest{GuildID: "g1", ID: "999999", Plan: money.PlanOneTime, Amount: "5"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{GuildID: "", Name: "x", GrantRoleID: "r"})
	require.ErrorIs(t, err, domain.ErrInvalidGuild)

	_, err = svc.Create(ctx, domain.CreateRequest{GuildID: "g", Name: " ", GrantRoleID: "r"})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{GuildID: "g", Name: "x", GrantRoleID: ""})
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestListScopedToGuild(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{GuildID: "g1", Name: "A", GrantRoleID: "r"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{GuildID: "g2", Name: "B", GrantRoleID: "r"})
	require.NoError(t, err)

	items, err := svc.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "A", items[0].Name)
}
