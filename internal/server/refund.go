package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	refunddomain "github.com/oakline/storefront/internal/refund/domain"
)

type createRefundRequest struct {
	PurchaseID string `json:"purchase_id"`
}

func (s *Server) CreateRefundRequest(c *gin.Context) {
	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	a := actorFromHeaders(c)
	resp, err := s.refundSvc.Create(c.Request.Context(), refunddomain.CreateRequest{
		GuildID:     s.cfg.GuildID,
		PurchaseID:  strings.TrimSpace(req.PurchaseID),
		RequesterID: a.ID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRefundRequest(c *gin.Context) {
	resp, err := s.refundSvc.Get(c.Request.Context(), s.cfg.GuildID, strings.TrimSpace(c.Param("request_id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApproveRefundRequest(c *gin.Context) {
	a := actorFromHeaders(c)
	resp, err := s.refundSvc.Approve(c.Request.Context(), refunddomain.DecisionRequest{
		GuildID:      s.cfg.GuildID,
		RequestID:    strings.TrimSpace(c.Param("request_id")),
		ActorID:      a.ID,
		ActorIsAdmin: a.IsAdmin,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RejectRefundRequest(c *gin.Context) {
	a := actorFromHeaders(c)
	resp, err := s.refundSvc.Reject(c.Request.Context(), refunddomain.DecisionRequest{
		GuildID:      s.cfg.GuildID,
		RequestID:    strings.TrimSpace(c.Param("request_id")),
		ActorID:      a.ID,
		ActorIsAdmin: a.IsAdmin,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
