package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/entitlement/domain"
	"github.com/oakline/storefront/internal/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("entitlement.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Find(ctx context.Context, guildID, userID string, productID int64) (*domain.Entitlement, error) {
	return s.repo.Find(ctx, s.db, guildID, userID, productID)
}

// EvaluatePurchaseGate decides whether a purchase or upgrade attempt may
// open a checkout session against a product the user may already own.
func (s *Service) EvaluatePurchaseGate(ctx context.Context, guildID, userID string, productID int64, target money.PlanKey, isUpgrade bool) error {
	owned, err := s.repo.Find(ctx, s.db, guildID, userID, productID)
	if err != nil {
		return err
	}
	if owned == nil || owned.Status != domain.StatusActive {
		return nil
	}

	if owned.PlanKey == money.PlanLifetime {
		return domain.ErrLifetimeOwned
	}

	if isUpgrade {
		if owned.PlanKey != money.PlanOneTime {
			return domain.ErrUpgradeSourcePlan
		}
		if target != money.PlanMonthly && target != money.PlanAnnual {
			return domain.ErrUpgradeTargetPlan
		}
		if owned.SubscriptionRef != nil && *owned.SubscriptionRef != "" {
			return domain.ErrSubscriptionPresent
		}
		return nil
	}

	// Owning anything already blocks a second fresh purchase; the upgrade
	// path is the only way forward.
	return domain.ErrAlreadyOwned
}

func (s *Service) UpsertOnPaid(ctx context.Context, params domain.GrantParams) error {
	if strings.TrimSpace(params.GuildID) == "" || strings.TrimSpace(params.UserID) == "" {
		return domain.ErrInvalidOwner
	}
	return s.repo.UpsertActive(ctx, s.db, s.genID.Generate().Int64(), params, s.clock.Now())
}

func (s *Service) RevokeOnRefund(ctx context.Context, guildID, userID string, productID int64, actorID string) error {
	ok, err := s.repo.Revoke(ctx, s.db, guildID, userID, productID, actorID, s.clock.Now())
	if err != nil {
		return err
	}
	if !ok {
		s.log.Info("entitlement already revoked or absent",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Int64("product_id", productID))
	}
	return nil
}
