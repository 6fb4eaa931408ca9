// Package webhook reconciles asynchronous payment-processor events against
// local purchase records. Deliveries are at-least-once and unordered, so
// every mutation here is an idempotent upsert or a status-guarded update.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	entitlementdomain "github.com/oakline/storefront/internal/entitlement/domain"
	guildcfg "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/metrics"
	"github.com/oakline/storefront/internal/money"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
	"github.com/oakline/storefront/internal/providers/chat"
	"github.com/oakline/storefront/internal/providers/stripe"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	outcomeProcessed = "processed"
	outcomeIgnored   = "ignored"
	outcomeFailed    = "failed"
)

// Processor is the handler-facing surface: verify, apply, report.
type Processor interface {
	Process(ctx context.Context, payload []byte, sigHeader string) error
}

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       config.Config
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
	cfg          config.Config
	purchases    purchasedomain.Repository
	entitlements entitlementdomain.Service
	guildCfg     guildcfg.Service
	chat         chat.Provider
	stripe       *stripe.Client
	metrics      *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("webhook.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Config,
		purchases:    p.Purchases,
		entitlements: p.Entitlements,
		guildCfg:     p.GuildCfg,
		chat:         p.Chat,
		stripe:       p.Stripe,
		metrics:      p.Metrics,
	}
}

// Process verifies and applies one inbound event. The error contract maps
// directly to HTTP semantics: stripe.ErrInvalidSignature means reject with
// no processing, nil means acknowledge, anything else means the sender
// should retry the whole delivery.
func (s *Service) Process(ctx context.Context, payload []byte, sigHeader string) error {
	if err := s.stripe.VerifySignature(payload, sigHeader); err != nil {
		s.log.Warn("webhook signature rejected", zap.Error(err))
		return err
	}

	var evt event
	if err := json.Unmarshal(payload, &evt); err != nil {
		// Verified but unparseable; acknowledge so the sender does not
		// retry a payload we will never understand.
		s.log.Warn("webhook payload unparseable", zap.Error(err))
		s.metrics.RecordWebhookEvent("unparseable", outcomeIgnored)
		return nil
	}

	var err error
	switch evt.Type {
	case EventCheckoutCompleted:
		err = s.handleCheckoutCompleted(ctx, evt)
	case EventSubscriptionUpdated:
		err = s.handleSubscriptionUpdated(ctx, evt)
	case EventSubscriptionDeleted:
		err = s.handleSubscriptionDeleted(ctx, evt)
	default:
		s.log.Debug("webhook event ignored", zap.String("type", evt.Type))
		s.metrics.RecordWebhookEvent(evt.Type, outcomeIgnored)
		return nil
	}
	if err != nil {
		s.metrics.RecordWebhookEvent(evt.Type, outcomeFailed)
		return err
	}
	s.metrics.RecordWebhookEvent(evt.Type, outcomeProcessed)
	return nil
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, evt event) error {
	var session checkoutSession
	if err := json.Unmarshal(evt.Data.Object, &session); err != nil {
		return err
	}

	meta := session.Metadata
	purchaseID := meta["purchase_id"]
	guildID := meta["guild_id"]
	userID := meta["user_id"]
	kind := meta["kind"]
	if purchaseID == "" || guildID == "" || userID == "" || kind == "" {
		s.log.Warn("checkout event missing correlation metadata",
			zap.String("session_id", session.ID))
		return nil
	}
	if guildID != s.cfg.GuildID {
		// Not our tenant. Acknowledge to stop the retry loop.
		s.log.Warn("checkout event for foreign guild ignored",
			zap.String("guild_id", guildID))
		return nil
	}

	update := purchasedomain.PaidUpdate{PaidAt: s.clock.Now()}
	if session.PaymentIntent != "" {
		update.PaymentIntentID = &session.PaymentIntent
	}

	// Fetch subscription reality before persisting, so the record reflects
	// the processor's view at confirmation time, not just "paid".
	if session.Subscription != "" {
		sub, err := s.stripe.GetSubscription(ctx, session.Subscription)
		if err != nil {
			return fmt.Errorf("resolve subscription %s: %w", session.Subscription, err)
		}
		update.SubscriptionID = &sub.ID
		update.SubscriptionStatus = &sub.Status
		update.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if sub.CurrentPeriodEnd > 0 {
			periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
			update.CurrentPeriodEnd = &periodEnd
		}
	}

	existing, err := s.purchases.FindByPurchaseID(ctx, s.db, purchaseID)
	if err != nil {
		return err
	}
	if existing != nil {
		ok, err := s.purchases.MarkPaid(ctx, s.db, purchaseID, update)
		if err != nil {
			return err
		}
		if !ok {
			s.log.Info("paid event replayed, purchase already settled",
				zap.String("purchase_id", purchaseID))
		}
	} else {
		// The local row never made it; rebuild it from the metadata with
		// the session ID as the idempotency anchor.
		rebuilt, err := s.purchaseFromMetadata(session, update)
		if err != nil {
			s.log.Warn("checkout event metadata unusable for reconstruction",
				zap.String("session_id", session.ID), zap.Error(err))
			return nil
		}
		if err := s.purchases.UpsertPaidBySession(ctx, s.db, rebuilt); err != nil {
			return err
		}
		s.log.Warn("purchase reconstructed from webhook metadata",
			zap.String("purchase_id", purchaseID),
			zap.String("session_id", session.ID))
	}

	s.applyPaidSideEffects(ctx, session, update)
	return nil
}

// purchaseFromMetadata rebuilds a paid Purchase from the event's metadata
// bag when the locally created row is missing.
func (s *Service) purchaseFromMetadata(session checkoutSession, update purchasedomain.PaidUpdate) (*purchasedomain.Purchase, error) {
	meta := session.Metadata
	kind := purchasedomain.Kind(meta["kind"])
	if kind != purchasedomain.KindProduct && kind != purchasedomain.KindDonation {
		return nil, fmt.Errorf("unknown purchase kind %q", meta["kind"])
	}

	amount := session.AmountTotal
	if raw := meta["amount"]; raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			amount = parsed
		}
	}
	currency := meta["currency"]
	if currency == "" {
		currency = session.Currency
	}

	now := s.clock.Now()
	sessionID := session.ID
	record := &purchasedomain.Purchase{
		ID:                 s.genID.Generate().Int64(),
		PurchaseID:         meta["purchase_id"],
		SessionID:          &sessionID,
		GuildID:            meta["guild_id"],
		BuyerID:            meta["user_id"],
		Kind:               kind,
		AmountMinor:        amount,
		Currency:           currency,
		Status:             purchasedomain.StatusPaid,
		PaymentIntentID:    update.PaymentIntentID,
		SubscriptionID:     update.SubscriptionID,
		SubscriptionStatus: update.SubscriptionStatus,
		CancelAtPeriodEnd:  update.CancelAtPeriodEnd,
		CurrentPeriodEnd:   update.CurrentPeriodEnd,
		CreatedAt:          now,
		PaidAt:             &update.PaidAt,
	}
	if raw := meta["product_id"]; raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("bad product_id %q", raw)
		}
		pid := parsed.Int64()
		record.ProductID = &pid
	}
	if raw := meta["plan_key"]; raw != "" {
		record.PlanKey = &raw
	}
	if raw := meta["grant_role_id"]; raw != "" {
		record.GrantRoleID = &raw
	}
	if raw := meta["reference_code"]; raw != "" {
		record.ReferenceCode = &raw
	}
	return record, nil
}

// applyPaidSideEffects runs everything that must not fail the delivery:
// role grant, entitlement upsert, log post, upsell DM. Each failure is
// logged and swallowed; the paid transition already happened.
func (s *Service) applyPaidSideEffects(ctx context.Context, session checkoutSession, update purchasedomain.PaidUpdate) {
	meta := session.Metadata
	guildID := meta["guild_id"]
	userID := meta["user_id"]
	purchaseID := meta["purchase_id"]

	if roleID := meta["grant_role_id"]; roleID != "" {
		if err := s.chat.GrantRole(ctx, guildID, userID, roleID); err != nil {
			s.log.Error("role grant failed",
				zap.String("purchase_id", purchaseID),
				zap.String("role_id", roleID), zap.Error(err))
		}
	}

	if purchasedomain.Kind(meta["kind"]) == purchasedomain.KindProduct {
		if rawProductID := meta["product_id"]; rawProductID != "" {
			if parsed, err := snowflake.ParseString(rawProductID); err == nil {
				params := entitlementdomain.GrantParams{
					GuildID:   guildID,
					UserID:    userID,
					ProductID: parsed.Int64(),
					PlanKey:   money.PlanKey(meta["plan_key"]),
				}
				if update.SubscriptionID != nil {
					params.SubscriptionRef = update.SubscriptionID
				}
				if raw := meta["reference_code"]; raw != "" {
					params.ReferenceCode = &raw
				}
				if err := s.entitlements.UpsertOnPaid(ctx, params); err != nil {
					s.log.Error("entitlement upsert failed",
						zap.String("purchase_id", purchaseID), zap.Error(err))
				}
			}
		}
	}

	s.postLogMessage(ctx, guildID, fmt.Sprintf(
		"Payment confirmed: `%s` by <@%s> for %s.",
		purchaseID, userID, money.FormatAmount(s.amountFor(session))))

	s.maybeSendUpsell(ctx, purchaseID, userID, meta)
}

func (s *Service) amountFor(session checkoutSession) int64 {
	if raw := session.Metadata["amount"]; raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return parsed
		}
	}
	return session.AmountTotal
}

// maybeSendUpsell DMs one-time buyers about the upgrade path, at most once
// per purchase even under redelivery. The persisted claim is the guard.
func (s *Service) maybeSendUpsell(ctx context.Context, purchaseID, userID string, meta map[string]string) {
	if money.PlanKey(meta["plan_key"]) != money.PlanOneTime {
		return
	}
	claimed, err := s.purchases.ClaimUpsell(ctx, s.db, purchaseID, s.clock.Now())
	if err != nil {
		s.log.Error("upsell claim failed", zap.String("purchase_id", purchaseID), zap.Error(err))
		return
	}
	if !claimed {
		return
	}
	message := "Thanks for your purchase! You can upgrade to a monthly or annual plan at any time with /upgrade."
	if err := s.chat.SendDM(ctx, userID, message); err != nil {
		s.log.Warn("upsell dm failed", zap.String("purchase_id", purchaseID), zap.Error(err))
	}
}

func (s *Service) postLogMessage(ctx context.Context, guildID, content string) {
	gcfg, err := s.guildCfg.Get(ctx, guildID)
	if err != nil || gcfg == nil || gcfg.LogChannelID == nil || *gcfg.LogChannelID == "" {
		return
	}
	if _, err := s.chat.PostMessage(ctx, *gcfg.LogChannelID, content); err != nil {
		s.log.Warn("log channel post failed", zap.Error(err))
	}
}

func (s *Service) handleSubscriptionUpdated(ctx context.Context, evt event) error {
	var sub subscriptionObject
	if err := json.Unmarshal(evt.Data.Object, &sub); err != nil {
		return err
	}
	if sub.ID == "" {
		return nil
	}

	update := purchasedomain.SubscriptionUpdate{
		SubscriptionStatus: sub.Status,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		update.CurrentPeriodEnd = &periodEnd
	}
	return s.purchases.UpdateSubscriptionState(ctx, s.db, sub.ID, update)
}

// handleSubscriptionDeleted is the only path that reclaims access when a
// recurring payment lapses outside an explicit refund.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, evt event) error {
	var sub subscriptionObject
	if err := json.Unmarshal(evt.Data.Object, &sub); err != nil {
		return err
	}
	if sub.ID == "" {
		return nil
	}

	latest, err := s.purchases.FindLatestPaidBySubscription(ctx, s.db, sub.ID)
	if err != nil {
		return err
	}
	if latest != nil && latest.GrantRoleID != nil && *latest.GrantRoleID != "" {
		if err := s.chat.RevokeRole(ctx, latest.GuildID, latest.BuyerID, *latest.GrantRoleID); err != nil {
			s.log.Error("role revoke on subscription end failed",
				zap.String("purchase_id", latest.PurchaseID), zap.Error(err))
		}
	}
	if latest != nil {
		s.postLogMessage(ctx, latest.GuildID, fmt.Sprintf(
			"Subscription ended: `%s` for <@%s>; access role removed.",
			latest.PurchaseID, latest.BuyerID))
	}

	update := purchasedomain.SubscriptionUpdate{
		SubscriptionStatus: purchasedomain.SubscriptionEnded,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		periodEnd := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		update.CurrentPeriodEnd = &periodEnd
	}
	return s.purchases.UpdateSubscriptionState(ctx, s.db, sub.ID, update)
}
