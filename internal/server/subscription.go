package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// CancelSubscription flags the buyer's subscription to lapse at the end of
// the paid period. Access stays granted until the processor reports the
// deletion through the webhook.
func (s *Server) CancelSubscription(c *gin.Context) {
	s.setCancelAtPeriodEnd(c, true)
}

// ResumeSubscription clears a pending cancellation before the period ends.
func (s *Server) ResumeSubscription(c *gin.Context) {
	s.setCancelAtPeriodEnd(c, false)
}

func (s *Server) setCancelAtPeriodEnd(c *gin.Context, cancel bool) {
	ctx := c.Request.Context()
	purchaseID := strings.TrimSpace(c.Param("purchase_id"))

	purchase, err := s.purchaseRepo.FindByPurchaseID(ctx, s.db, purchaseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if purchase == nil || purchase.GuildID != s.cfg.GuildID {
		AbortWithError(c, ErrNotFound)
		return
	}

	a := actorFromHeaders(c)
	if purchase.BuyerID != a.ID && !a.IsAdmin {
		AbortWithError(c, ErrForbidden)
		return
	}
	if purchase.SubscriptionID == nil {
		AbortWithError(c, newValidationError("purchase_id", "not_a_subscription", "purchase has no subscription"))
		return
	}

	if err := s.stripe.SetCancelAtPeriodEnd(ctx, *purchase.SubscriptionID, cancel); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"purchase_id":          purchase.PurchaseID,
		"subscription_id":      *purchase.SubscriptionID,
		"cancel_at_period_end": cancel,
	}})
}
