package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	entitlementdomain "github.com/oakline/storefront/internal/entitlement/domain"
	guildcfg "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/metrics"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
	"github.com/oakline/storefront/internal/providers/chat"
	"github.com/oakline/storefront/internal/providers/stripe"
	"github.com/oakline/storefront/internal/refund/domain"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Policy       *config.StorefrontConfigHolder
	Repo         domain.Repository
	Purchases    purchasedomain.Repository
	Entitlements entitlementdomain.Service
	GuildCfg     guildcfg.Service
	Chat         chat.Provider
	Stripe       *stripe.Client
	Metrics      *metrics.Metrics
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	policy       *config.StorefrontConfigHolder
	repo         domain.Repository
	purchases    purchasedomain.Repository
	entitlements entitlementdomain.Service
	guildCfg     guildcfg.Service
	chat         chat.Provider
	stripe       *stripe.Client
	metrics      *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("refund.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		policy:       p.Policy,
		repo:         p.Repo,
		purchases:    p.Purchases,
		entitlements: p.Entitlements,
		guildCfg:     p.GuildCfg,
		chat:         p.Chat,
		stripe:       p.Stripe,
		metrics:      p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, guildID, requestID string) (*domain.RefundRequest, error) {
	request, err := s.repo.FindByRequestID(ctx, s.db, guildID, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}
	return request, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.RefundRequest, error) {
	purchase, err := s.purchases.FindByPurchaseID(ctx, s.db, strings.TrimSpace(req.PurchaseID))
	if err != nil {
		return nil, err
	}
	if err := s.validateRefundable(purchase, req.GuildID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	request := &domain.RefundRequest{
		ID:          s.genID.Generate().Int64(),
		RequestID:   "ref_" + ulid.Make().String(),
		GuildID:     req.GuildID,
		PurchaseID:  purchase.PurchaseID,
		RequesterID: req.RequesterID,
		Status:      domain.StatusPending,
		CreatedAt:   now,
	}
	if err := s.repo.Insert(ctx, s.db, request); err != nil {
		return nil, err
	}

	s.log.Info("refund request filed",
		zap.String("request_id", request.RequestID),
		zap.String("purchase_id", purchase.PurchaseID),
		zap.String("requester_id", req.RequesterID))
	return request, nil
}

// validateRefundable checks the purchase is paid and still inside the
// refund window. It runs when the request is filed and again at approval,
// since time keeps moving between the two.
func (s *Service) validateRefundable(purchase *purchasedomain.Purchase, guildID string) error {
	if purchase == nil || purchase.GuildID != guildID {
		return domain.ErrPurchaseNotFound
	}
	if purchase.Status != purchasedomain.StatusPaid || purchase.PaidAt == nil {
		return domain.ErrPurchaseNotPaid
	}
	window := s.policy.Get().RefundWindow()
	if s.clock.Now().Sub(*purchase.PaidAt) > window {
		return domain.ErrWindowExpired
	}
	return nil
}

func (s *Service) authorize(ctx context.Context, guildID string, req domain.DecisionRequest) error {
	if req.ActorIsAdmin {
		return nil
	}
	gcfg, err := s.guildCfg.Get(ctx, guildID)
	if err != nil {
		return err
	}
	if gcfg != nil && gcfg.ApproverUserID != nil && *gcfg.ApproverUserID == req.ActorID {
		return nil
	}
	return domain.ErrUnauthorized
}

func (s *Service) Reject(ctx context.Context, req domain.DecisionRequest) (*domain.RefundRequest, error) {
	request, err := s.claimDecision(ctx, req, domain.StatusRejected)
	if err != nil {
		return nil, err
	}
	s.log.Info("refund request rejected",
		zap.String("request_id", request.RequestID),
		zap.String("approver_id", req.ActorID))
	return request, nil
}

func (s *Service) Approve(ctx context.Context, req domain.DecisionRequest) (*domain.RefundRequest, error) {
	request, err := s.claimDecision(ctx, req, domain.StatusApproved)
	if err != nil {
		return nil, err
	}

	// Re-validate: the window may have lapsed since the request was filed.
	purchase, err := s.purchases.FindByPurchaseID(ctx, s.db, request.PurchaseID)
	if err != nil {
		return nil, err
	}
	if err := s.validateRefundable(purchase, request.GuildID); err != nil {
		return s.fail(ctx, request, err.Error())
	}

	refundID, err := s.executeRefund(ctx, purchase, request.RequestID)
	if err != nil {
		s.log.Error("processor refund failed",
			zap.String("request_id", request.RequestID), zap.Error(err))
		// The purchase stays paid; only the processor's word marks it
		// refunded.
		return s.fail(ctx, request, err.Error())
	}

	now := s.clock.Now()
	if _, err := s.repo.MarkExecuted(ctx, s.db, request.ID, refundID, now); err != nil {
		return nil, err
	}
	if _, err := s.purchases.MarkRefunded(ctx, s.db, purchase.PurchaseID, now); err != nil {
		return nil, err
	}
	request.Status = domain.StatusRefunded
	request.ProcessorRefundID = &refundID
	request.ExecutedAt = &now

	s.unwindGrants(ctx, purchase, req.ActorID)
	s.metrics.RecordRefund("refunded")
	s.log.Info("refund executed",
		zap.String("request_id", request.RequestID),
		zap.String("purchase_id", purchase.PurchaseID),
		zap.String("processor_refund_id", refundID))
	return request, nil
}

// claimDecision atomically takes the single-use pending decision slot.
func (s *Service) claimDecision(ctx context.Context, req domain.DecisionRequest, target domain.Status) (*domain.RefundRequest, error) {
	request, err := s.repo.FindByRequestID(ctx, s.db, req.GuildID, req.RequestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrNotFound
	}
	if err := s.authorize(ctx, request.GuildID, req); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	ok, err := s.repo.Decide(ctx, s.db, request.ID, target, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyDecided
	}
	request.Status = target
	request.ApproverID = &req.ActorID
	request.DecidedAt = &now
	return request, nil
}

// executeRefund refunds the direct payment when one exists; a pure
// subscription purchase is refunded via its latest invoice payment and the
// subscription is then canceled outright.
func (s *Service) executeRefund(ctx context.Context, purchase *purchasedomain.Purchase, idempotencyKey string) (string, error) {
	if purchase.PaymentIntentID != nil && *purchase.PaymentIntentID != "" {
		refund, err := s.stripe.RefundPaymentIntent(ctx, *purchase.PaymentIntentID, idempotencyKey)
		if err != nil {
			return "", err
		}
		return refund.ID, nil
	}

	if purchase.SubscriptionID == nil || *purchase.SubscriptionID == "" {
		return "", stripe.ErrRequestFailed
	}
	sub, err := s.stripe.GetSubscription(ctx, *purchase.SubscriptionID)
	if err != nil {
		return "", err
	}
	invoice, err := s.stripe.GetInvoice(ctx, sub.LatestInvoice)
	if err != nil {
		return "", err
	}
	refund, err := s.stripe.RefundPaymentIntent(ctx, invoice.PaymentIntent, idempotencyKey)
	if err != nil {
		return "", err
	}
	if err := s.stripe.CancelSubscription(ctx, *purchase.SubscriptionID); err != nil {
		s.log.Error("subscription cancel after refund failed",
			zap.String("subscription_id", *purchase.SubscriptionID), zap.Error(err))
	}
	return refund.ID, nil
}

// unwindGrants removes the role and revokes the entitlement. Both are
// best-effort; the financial reversal already succeeded.
func (s *Service) unwindGrants(ctx context.Context, purchase *purchasedomain.Purchase, actorID string) {
	if purchase.GrantRoleID != nil && *purchase.GrantRoleID != "" {
		if err := s.chat.RevokeRole(ctx, purchase.GuildID, purchase.BuyerID, *purchase.GrantRoleID); err != nil {
			s.log.Warn("role revoke on refund failed",
				zap.String("purchase_id", purchase.PurchaseID), zap.Error(err))
		}
	}
	if purchase.ProductID != nil {
		if err := s.entitlements.RevokeOnRefund(ctx, purchase.GuildID, purchase.BuyerID, *purchase.ProductID, actorID); err != nil {
			s.log.Warn("entitlement revoke on refund failed",
				zap.String("purchase_id", purchase.PurchaseID), zap.Error(err))
		}
	}
}

func (s *Service) fail(ctx context.Context, request *domain.RefundRequest, reason string) (*domain.RefundRequest, error) {
	now := s.clock.Now()
	if _, err := s.repo.MarkFailed(ctx, s.db, request.ID, reason, now); err != nil {
		return nil, err
	}
	request.Status = domain.StatusFailed
	request.FailureReason = &reason
	request.ExecutedAt = &now
	s.metrics.RecordRefund("failed")
	return request, nil
}
