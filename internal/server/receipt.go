package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oakline/storefront/internal/money"
	"github.com/oakline/storefront/internal/providers/pdf"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
)

// DownloadReceipt renders a PDF receipt for a paid purchase. Only the buyer
// or an admin may fetch it.
func (s *Server) DownloadReceipt(c *gin.Context) {
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
	if purchase.PaidAt == nil {
		AbortWithError(c, newValidationError("purchase_id", "purchase_not_paid", "purchase is not paid"))
		return
	}

	data := pdf.ReceiptData{
		PurchaseID:  purchase.PurchaseID,
		ProductName: s.receiptProductName(c, purchase),
		PlanLabel:   receiptPlanLabel(purchase),
		Amount:      fmt.Sprintf("%s %s", money.FormatAmount(purchase.AmountMinor), strings.ToUpper(purchase.Currency)),
		BuyerID:     purchase.BuyerID,
		DatePaid:    purchase.PaidAt.UTC().Format("2006-01-02 15:04 UTC"),
	}

	reader, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}
	doc, err := io.ReadAll(reader)
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", purchase.PurchaseID+".pdf"))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) receiptProductName(c *gin.Context, purchase *purchasedomain.Purchase) string {
	if purchase.Kind == purchasedomain.KindDonation {
		return "Donation"
	}
	if purchase.ProductID == nil {
		return "Purchase"
	}
	resp, err := s.productSvc.Get(c.Request.Context(), s.cfg.GuildID, strconv.FormatInt(*purchase.ProductID, 10))
	if err != nil || resp == nil {
		return "Purchase"
	}
	return resp.Name
}

func receiptPlanLabel(purchase *purchasedomain.Purchase) string {
	if purchase.PlanKey == nil {
		return ""
	}
	return planLabel(money.PlanKey(*purchase.PlanKey))
}
