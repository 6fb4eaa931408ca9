package service

import (
	"context"
	"strings"

	"github.com/oakline/storefront/internal/cache"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	"github.com/oakline/storefront/internal/guildconfig/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// cached wraps a lookup result so "no config" is cacheable too and repeated
// misses stop hitting storage.
type cached struct {
	cfg *domain.GuildConfig
}

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Repo   domain.Repository
	Policy *config.StorefrontConfigHolder
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	repo   domain.Repository
	policy *config.StorefrontConfigHolder
	cache  cache.Cache[string, cached]
}

func New(p Params) domain.Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("guildconfig.service"),
		clock:  p.Clock,
		repo:   p.Repo,
		policy: p.Policy,
		cache:  cache.NewTTLCache[string, cached](p.Clock),
	}
}

func (s *Service) Get(ctx context.Context, guildID string) (*domain.GuildConfig, error) {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return nil, domain.ErrInvalidGuild
	}

	if hit, ok := s.cache.Get(guildID); ok {
		return hit.cfg, nil
	}

	cfg, err := s.repo.FindByGuild(ctx, s.db, guildID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(guildID, cached{cfg: cfg}, s.policy.Get().ConfigCacheTTL())
	return cfg, nil
}

func (s *Service) Upsert(ctx context.Context, guildID string, patch domain.Patch) error {
	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return domain.ErrInvalidGuild
	}
	if patch.Empty() {
		return domain.ErrEmptyPatch
	}

	if err := s.repo.Upsert(ctx, s.db, guildID, patch, s.clock.Now()); err != nil {
		return err
	}

	// Drop the cache entry so the next read observes the merge.
	s.cache.Delete(guildID)
	return nil
}
