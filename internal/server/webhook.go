package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oakline/storefront/internal/providers/stripe"
)

// HandleStripeWebhook receives processor events. A 2xx acknowledges the
// delivery; anything else makes the processor retry, so only verified
// events that failed mid-flight return a 5xx.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.webhookSvc.Process(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, stripe.ErrInvalidSignature) {
			AbortWithError(c, err)
			return
		}
		AbortWithError(c, ErrInternal)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
