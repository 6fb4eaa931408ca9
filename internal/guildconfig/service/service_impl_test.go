package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	"github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/guildconfig/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.GuildConfig{}))
	return db
}

func newTestService(t *testing.T, db *gorm.DB, clk clock.Clock) domain.Service {
	t.Helper()
	return New(Params{
		DB:     db,
		Log:    zap.NewNop(),
		Clock:  clk,
		Repo:   repository.Provide(),
		Policy: config.NewStaticStorefrontConfigHolder(config.DefaultStorefrontConfig()),
	})
}

func strPtr(v string) *string { return &v }

func TestUpsertMergesFields(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, "g1", domain.Patch{SupportRoleID: strPtr("role-1")}))
	require.NoError(t, svc.Upsert(ctx, "g1", domain.Patch{LogChannelID: strPtr("chan-9")}))

	cfg, err := svc.Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, cfg)
	require.Equal(t, "role-1", *cfg.SupportRoleID)
	require.Equal(t, "chan-9", *cfg.LogChannelID)
	require.Nil(t, cfg.PanelChannelID)
}

func TestGetCachesMissAndInvalidatesOnUpsert(t *testing.T) {
	db := setupTestDB(t)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	svc := newTestService(t, db, clk)
	ctx := context.Background()

	cfg, err := svc.Get(ctx, "g1")
	require.NoError(t, err)
	require.Nil(t, cfg)

	// Write behind the cache's back; within the TTL the miss stays cached.
	require.NoError(t, repository.Provide().Upsert(ctx, db, "g1", domain.Patch{SupportRoleID: strPtr("r")}, clk.Now()))
	cfg, err = svc.Get(ctx, "g1")
	require.NoError(t, err)
	require.Nil(t, cfg)

	// After the TTL the read falls through to storage.
	clk.Advance(31 * time.Second)
	cfg, err = svc.Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Upsert through the service invalidates immediately.
	require.NoError(t, svc.Upsert(ctx, "g1", domain.Patch{LogChannelID: strPtr("c")}))
	cfg, err = svc.Get(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, cfg.LogChannelID)
}

func TestUpsertValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db, clock.NewFakeClock(time.Now()))

	require.ErrorIs(t, svc.Upsert(context.Background(), "", domain.Patch{SupportRoleID: strPtr("r")}), domain.ErrInvalidGuild)
	require.ErrorIs(t, svc.Upsert(context.Background(), "g1", domain.Patch{}), domain.ErrEmptyPatch)
}
