package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/oakline/storefront/internal/checkout/domain"
	"github.com/oakline/storefront/internal/money"
)

type productCheckoutRequest struct {
	ProductID     string  `json:"product_id"`
	Plan          string  `json:"plan"`
	ReferenceCode *string `json:"reference_code"`
	IsUpgrade     bool    `json:"is_upgrade"`
}

func (s *Server) StartProductCheckout(c *gin.Context) {
	var req productCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	a := actorFromHeaders(c)
	session, err := s.checkoutSvc.StartProductCheckout(c.Request.Context(), checkoutdomain.ProductCheckoutRequest{
		GuildID:       s.cfg.GuildID,
		UserID:        a.ID,
		ProductID:     strings.TrimSpace(req.ProductID),
		Plan:          money.PlanKey(strings.TrimSpace(req.Plan)),
		ReferenceCode: req.ReferenceCode,
		IsUpgrade:     req.IsUpgrade,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}

type donationCheckoutRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) StartDonationCheckout(c *gin.Context) {
	var req donationCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	a := actorFromHeaders(c)
	session, err := s.checkoutSvc.StartDonationCheckout(c.Request.Context(), checkoutdomain.DonationCheckoutRequest{
		GuildID: s.cfg.GuildID,
		UserID:  a.ID,
		Amount:  strings.TrimSpace(req.Amount),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": session})
}
