package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oakline/storefront/internal/money"
	productdomain "github.com/oakline/storefront/internal/product/domain"
)

type createProductRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	GrantRoleID string  `json:"grant_role_id"`
}

func (s *Server) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.Create(c.Request.Context(), productdomain.CreateRequest{
		GuildID:     s.cfg.GuildID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		GrantRoleID: strings.TrimSpace(req.GrantRoleID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProducts(c *gin.Context) {
	resp, err := s.productSvc.List(c.Request.Context(), s.cfg.GuildID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProductByID(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.productSvc.Get(c.Request.Context(), s.cfg.GuildID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setPriceRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) SetProductPrice(c *gin.Context) {
	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productSvc.SetPrice(c.Request.Context(), productdomain.SetPriceRequest{
		GuildID: s.cfg.GuildID,
		ID:      strings.TrimSpace(c.Param("id")),
		Plan:    money.PlanKey(strings.TrimSpace(c.Param("plan"))),
		Amount:  strings.TrimSpace(req.Amount),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UnsetProductPrice(c *gin.Context) {
	resp, err := s.productSvc.UnsetPrice(
		c.Request.Context(),
		s.cfg.GuildID,
		strings.TrimSpace(c.Param("id")),
		money.PlanKey(strings.TrimSpace(c.Param("plan"))),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
