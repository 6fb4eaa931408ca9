package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	ticketdomain "github.com/oakline/storefront/internal/ticket/domain"
)

type openTicketRequest struct {
	Kind          string  `json:"kind"`
	ProductID     *string `json:"product_id"`
	ReferenceCode *string `json:"reference_code"`
}

func (s *Server) OpenTicket(c *gin.Context) {
	var req openTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	var productID *int64
	if req.ProductID != nil {
		id, err := strconv.ParseInt(strings.TrimSpace(*req.ProductID), 10, 64)
		if err != nil {
			AbortWithError(c, newValidationError("product_id", "invalid_product_id", "invalid product id"))
			return
		}
		productID = &id
	}

	a := actorFromHeaders(c)
	ticket, reused, err := s.ticketSvc.OpenOrReuse(c.Request.Context(), ticketdomain.OpenRequest{
		GuildID:       s.cfg.GuildID,
		UserID:        a.ID,
		Kind:          ticketdomain.Kind(strings.TrimSpace(req.Kind)),
		ProductID:     productID,
		ReferenceCode: req.ReferenceCode,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"ticket": ticket,
		"reused": reused,
	}})
}

type closeTicketRequest struct {
	ChannelID string `json:"channel_id"`
}

func (s *Server) CloseTicket(c *gin.Context) {
	var req closeTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	a := actorFromHeaders(c)
	ticket, err := s.ticketSvc.Close(c.Request.Context(), ticketdomain.CloseRequest{
		GuildID:      s.cfg.GuildID,
		ChannelID:    strings.TrimSpace(req.ChannelID),
		ActorID:      a.ID,
		ActorIsAdmin: a.IsAdmin,
		ActorRoleIDs: a.RoleIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ticket})
}
