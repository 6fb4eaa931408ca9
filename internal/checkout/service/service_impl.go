package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	checkoutdomain "github.com/oakline/storefront/internal/checkout/domain"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	"github.com/oakline/storefront/internal/cooldown"
	entitlementdomain "github.com/oakline/storefront/internal/entitlement/domain"
	"github.com/oakline/storefront/internal/metrics"
	"github.com/oakline/storefront/internal/money"
	productdomain "github.com/oakline/storefront/internal/product/domain"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
	"github.com/oakline/storefront/internal/providers/stripe"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const cooldownAction = "checkout"

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
	Policy       *config.StorefrontConfigHolder
	Products     productdomain.Service
	Entitlements entitlementdomain.Service
	Purchases    purchasedomain.Repository
	Stripe       *stripe.Client
	Cooldown     *cooldown.Limiter
	Metrics      *metrics.Metrics
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	cfg          config.Config
	policy       *config.StorefrontConfigHolder
	products     productdomain.Service
	entitlements entitlementdomain.Service
	purchases    purchasedomain.Repository
	stripe       *stripe.Client
	cooldown     *cooldown.Limiter
	metrics      *metrics.Metrics
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("checkout.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Config,
		policy:       p.Policy,
		products:     p.Products,
		entitlements: p.Entitlements,
		purchases:    p.Purchases,
		stripe:       p.Stripe,
		cooldown:     p.Cooldown,
		metrics:      p.Metrics,
	}
}

func (s *Service) StartProductCheckout(ctx context.Context, req checkoutdomain.ProductCheckoutRequest) (*checkoutdomain.Session, error) {
	if strings.TrimSpace(req.GuildID) == "" {
		return nil, checkoutdomain.ErrInvalidGuild
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, checkoutdomain.ErrInvalidUser
	}

	if err := s.checkCooldown(ctx, req.GuildID, req.UserID); err != nil {
		return nil, err
	}

	product, err := s.products.Get(ctx, req.GuildID, req.ProductID)
	if err != nil {
		return nil, err
	}

	amountMinor := money.PriceFor(product.Prices, req.Plan)
	if amountMinor <= 0 {
		return nil, checkoutdomain.ErrPlanUnavailable
	}

	productID, err := snowflake.ParseString(product.ID)
	if err != nil {
		return nil, productdomain.ErrInvalidID
	}

	// The gate runs here, at session-creation time, so two racing plan
	// clicks cannot both slip through a render-time-only check.
	if err := s.entitlements.EvaluatePurchaseGate(ctx, req.GuildID, req.UserID, productID.Int64(), req.Plan, req.IsUpgrade); err != nil {
		return nil, err
	}

	purchaseID := newPurchaseID()
	pid := productID.Int64()
	planKey := string(req.Plan)
	metadata := map[string]string{
		"purchase_id":   purchaseID,
		"guild_id":      req.GuildID,
		"user_id":       req.UserID,
		"kind":          string(purchasedomain.KindProduct),
		"product_id":    product.ID,
		"plan_key":      planKey,
		"grant_role_id": product.GrantRoleID,
		"amount":        strconv.FormatInt(amountMinor, 10),
		"currency":      s.cfg.Currency,
	}
	if req.ReferenceCode != nil && *req.ReferenceCode != "" {
		metadata["reference_code"] = *req.ReferenceCode
	}

	mode := "payment"
	interval := ""
	if req.Plan.Recurring() {
		mode = "subscription"
		interval = req.Plan.Interval()
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		Mode:        mode,
		AmountMinor: amountMinor,
		Currency:    s.cfg.Currency,
		ProductName: fmt.Sprintf("%s (%s)", product.Name, req.Plan),
		Interval:    interval,
		SuccessURL:  s.cfg.CheckoutSuccessURL,
		CancelURL:   s.cfg.CheckoutCancelURL,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.Error("checkout session creation failed",
			zap.String("purchase_id", purchaseID), zap.Error(err))
		return nil, checkoutdomain.ErrCheckoutCreationFailed
	}

	grantRole := product.GrantRoleID
	record := &purchasedomain.Purchase{
		ID:            s.genID.Generate().Int64(),
		PurchaseID:    purchaseID,
		SessionID:     &session.ID,
		GuildID:       req.GuildID,
		BuyerID:       req.UserID,
		Kind:          purchasedomain.KindProduct,
		ProductID:     &pid,
		PlanKey:       &planKey,
		GrantRoleID:   &grantRole,
		AmountMinor:   amountMinor,
		Currency:      s.cfg.Currency,
		Status:        purchasedomain.StatusCreated,
		ReferenceCode: req.ReferenceCode,
		CreatedAt:     s.clock.Now(),
	}
	// The row must exist before the URL leaves this process; the webhook
	// may land the instant the buyer pays.
	if err := s.purchases.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.metrics.RecordCheckout(string(purchasedomain.KindProduct))
	s.log.Info("checkout session created",
		zap.String("purchase_id", purchaseID),
		zap.String("session_id", session.ID),
		zap.String("plan", planKey),
		zap.Int64("amount_minor", amountMinor))
	return &checkoutdomain.Session{PurchaseID: purchaseID, URL: session.URL}, nil
}

func (s *Service) StartDonationCheckout(ctx context.Context, req checkoutdomain.DonationCheckoutRequest) (*checkoutdomain.Session, error) {
	if strings.TrimSpace(req.GuildID) == "" {
		return nil, checkoutdomain.ErrInvalidGuild
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, checkoutdomain.ErrInvalidUser
	}

	if err := s.checkCooldown(ctx, req.GuildID, req.UserID); err != nil {
		return nil, err
	}

	amountMinor, err := money.ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}
	if amountMinor < s.policy.Get().DonationMinimumMinor {
		return nil, checkoutdomain.ErrAmountBelowMinimum
	}

	purchaseID := newPurchaseID()
	metadata := map[string]string{
		"purchase_id": purchaseID,
		"guild_id":    req.GuildID,
		"user_id":     req.UserID,
		"kind":        string(purchasedomain.KindDonation),
		"amount":      strconv.FormatInt(amountMinor, 10),
		"currency":    s.cfg.Currency,
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		Mode:        "payment",
		AmountMinor: amountMinor,
		Currency:    s.cfg.Currency,
		ProductName: "Donation",
		SuccessURL:  s.cfg.CheckoutSuccessURL,
		CancelURL:   s.cfg.CheckoutCancelURL,
		Metadata:    metadata,
	})
	if err != nil {
		s.log.Error("donation session creation failed",
			zap.String("purchase_id", purchaseID), zap.Error(err))
		return nil, checkoutdomain.ErrCheckoutCreationFailed
	}

	record := &purchasedomain.Purchase{
		ID:          s.genID.Generate().Int64(),
		PurchaseID:  purchaseID,
		SessionID:   &session.ID,
		GuildID:     req.GuildID,
		BuyerID:     req.UserID,
		Kind:        purchasedomain.KindDonation,
		AmountMinor: amountMinor,
		Currency:    s.cfg.Currency,
		Status:      purchasedomain.StatusCreated,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.purchases.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.metrics.RecordCheckout(string(purchasedomain.KindDonation))
	s.log.Info("donation session created",
		zap.String("purchase_id", purchaseID),
		zap.Int64("amount_minor", amountMinor))
	return &checkoutdomain.Session{PurchaseID: purchaseID, URL: session.URL}, nil
}

func (s *Service) checkCooldown(ctx context.Context, guildID, userID string) error {
	window := s.policy.Get().CheckoutCooldown()
	allowed, err := s.cooldown.Allow(ctx, guildID, userID, cooldownAction, window)
	if err != nil {
		// The throttle is advisory; a broken redis must not block sales.
		s.log.Warn("cooldown check failed", zap.Error(err))
		return nil
	}
	if !allowed {
		return checkoutdomain.ErrCooldownActive
	}
	return nil
}

func newPurchaseID() string {
	return "pur_" + ulid.Make().String()
}
