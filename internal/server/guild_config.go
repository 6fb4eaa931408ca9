package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	guildconfigdomain "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/money"
	productdomain "github.com/oakline/storefront/internal/product/domain"
	"go.uber.org/zap"
)

func (s *Server) GetGuildConfig(c *gin.Context) {
	cfg, err := s.guildCfgSvc.Get(c.Request.Context(), s.cfg.GuildID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if cfg == nil {
		cfg = &guildconfigdomain.GuildConfig{GuildID: s.cfg.GuildID}
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

func (s *Server) PatchGuildConfig(c *gin.Context) {
	var patch guildconfigdomain.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.guildCfgSvc.Upsert(c.Request.Context(), s.cfg.GuildID, patch); err != nil {
		AbortWithError(c, err)
		return
	}

	cfg, err := s.guildCfgSvc.Get(c.Request.Context(), s.cfg.GuildID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// PublishPanel renders the purchase panel from the catalog and posts it to
// the configured panel channel, editing the previous message in place when
// one was recorded.
func (s *Server) PublishPanel(c *gin.Context) {
	ctx := c.Request.Context()

	guildCfg, err := s.guildCfgSvc.Get(ctx, s.cfg.GuildID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if guildCfg == nil || guildCfg.PanelChannelID == nil {
		AbortWithError(c, newValidationError("panel_channel_id", "panel_channel_missing", "panel channel is not configured"))
		return
	}

	products, err := s.productSvc.List(ctx, s.cfg.GuildID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	content := renderPanel(products)

	if guildCfg.PanelMessageID != nil {
		err := s.chat.EditMessage(ctx, *guildCfg.PanelChannelID, *guildCfg.PanelMessageID, content)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"data": gin.H{"message_id": *guildCfg.PanelMessageID}})
			return
		}
		// Edit failing usually means the message was deleted; fall
		// through and post a fresh one.
		s.log.Warn("panel edit failed, reposting",
			zap.String("channel_id", *guildCfg.PanelChannelID),
			zap.Error(err))
	}

	messageID, err := s.chat.PostMessage(ctx, *guildCfg.PanelChannelID, content)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.guildCfgSvc.Upsert(ctx, s.cfg.GuildID, guildconfigdomain.Patch{
		PanelMessageID: &messageID,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message_id": messageID}})
}

func renderPanel(products []productdomain.Response) string {
	var b strings.Builder
	b.WriteString("**Store**\n")
	for _, p := range products {
		b.WriteString(fmt.Sprintf("\n**%s**", p.Name))
		if p.Description != nil && *p.Description != "" {
			b.WriteString(" - " + *p.Description)
		}
		b.WriteString("\n")
		for _, plan := range p.EnabledPlans {
			b.WriteString(fmt.Sprintf("  • %s: %s\n", planLabel(plan), money.FormatAmount(money.PriceFor(p.Prices, plan))))
		}
	}
	if len(products) == 0 {
		b.WriteString("\nNothing for sale yet.")
	}
	return b.String()
}

func planLabel(plan money.PlanKey) string {
	switch plan {
	case money.PlanOneTime:
		return "One-time"
	case money.PlanMonthly:
		return "Monthly"
	case money.PlanAnnual:
		return "Annual"
	case money.PlanLifetime:
		return "Lifetime"
	default:
		return string(plan)
	}
}
