package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oakline/storefront/internal/checkout"
	checkoutdomain "github.com/oakline/storefront/internal/checkout/domain"
	"github.com/oakline/storefront/internal/config"
	"github.com/oakline/storefront/internal/entitlement"
	"github.com/oakline/storefront/internal/guildconfig"
	guildconfigdomain "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/product"
	productdomain "github.com/oakline/storefront/internal/product/domain"
	"github.com/oakline/storefront/internal/providers/chat"
	"github.com/oakline/storefront/internal/providers/pdf"
	"github.com/oakline/storefront/internal/providers/stripe"
	"github.com/oakline/storefront/internal/purchase"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
	"github.com/oakline/storefront/internal/refund"
	refunddomain "github.com/oakline/storefront/internal/refund/domain"
	"github.com/oakline/storefront/internal/ticket"
	ticketdomain "github.com/oakline/storefront/internal/ticket/domain"
	"github.com/oakline/storefront/internal/webhook"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	guildconfig.Module,
	product.Module,
	purchase.Module,
	entitlement.Module,
	ticket.Module,
	checkout.Module,
	refund.Module,
	webhook.Module,
	chat.Module,
	pdf.Module,
	stripe.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	log          *zap.Logger
	productSvc   productdomain.Service
	guildCfgSvc  guildconfigdomain.Service
	ticketSvc    ticketdomain.Service
	checkoutSvc  checkoutdomain.Service
	refundSvc    refunddomain.Service
	webhookSvc   webhook.Processor
	purchaseRepo purchasedomain.Repository
	stripe       *stripe.Client
	chat         chat.Provider
	pdf          *pdf.Provider
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	Log          *zap.Logger
	ProductSvc   productdomain.Service
	GuildCfgSvc  guildconfigdomain.Service
	TicketSvc    ticketdomain.Service
	CheckoutSvc  checkoutdomain.Service
	RefundSvc    refunddomain.Service
	WebhookSvc   webhook.Processor
	PurchaseRepo purchasedomain.Repository
	Stripe       *stripe.Client
	Chat         chat.Provider
	PDF          *pdf.Provider
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		log:          p.Log.Named("server"),
		productSvc:   p.ProductSvc,
		guildCfgSvc:  p.GuildCfgSvc,
		ticketSvc:    p.TicketSvc,
		checkoutSvc:  p.CheckoutSvc,
		refundSvc:    p.RefundSvc,
		webhookSvc:   p.WebhookSvc,
		purchaseRepo: p.PurchaseRepo,
		stripe:       p.Stripe,
		chat:         p.Chat,
		pdf:          p.PDF,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()
	svc.registerBillingRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/products", s.ListProducts)

	// -------- Tickets --------
	api.POST("/tickets", s.ActorRequired(), s.OpenTicket)
	api.POST("/tickets/close", s.ActorRequired(), s.CloseTicket)

	// -------- Checkout --------
	api.POST("/checkout/product", s.ActorRequired(), s.StartProductCheckout)
	api.POST("/checkout/donation", s.ActorRequired(), s.StartDonationCheckout)

	// -------- Refunds --------
	// Decisions stay here rather than under /admin: the refund service
	// accepts either an admin or the configured approver identity.
	api.POST("/refunds", s.ActorRequired(), s.CreateRefundRequest)
	api.GET("/refunds/:request_id", s.ActorRequired(), s.GetRefundRequest)
	api.POST("/refunds/:request_id/approve", s.ActorRequired(), s.ApproveRefundRequest)
	api.POST("/refunds/:request_id/reject", s.ActorRequired(), s.RejectRefundRequest)

	// -------- Subscriptions --------
	api.POST("/subscriptions/:purchase_id/cancel", s.ActorRequired(), s.CancelSubscription)
	api.POST("/subscriptions/:purchase_id/resume", s.ActorRequired(), s.ResumeSubscription)

	// -------- Receipts --------
	api.GET("/receipts/:purchase_id", s.ActorRequired(), s.DownloadReceipt)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	// -------- Catalog --------
	admin.GET("/products", s.ListProducts)
	admin.POST("/products", s.CreateProduct)
	admin.GET("/products/:id", s.GetProductByID)
	admin.PUT("/products/:id/prices/:plan", s.SetProductPrice)
	admin.DELETE("/products/:id/prices/:plan", s.UnsetProductPrice)

	// -------- Guild config --------
	admin.GET("/guild-config", s.GetGuildConfig)
	admin.PATCH("/guild-config", s.PatchGuildConfig)
	admin.POST("/panel/publish", s.PublishPanel)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/stripe/webhook", s.HandleStripeWebhook)
}

func (s *Server) registerBillingRoutes() {
	billing := s.engine.Group("/billing")

	billing.GET("/success", s.BillingSuccess)
	billing.GET("/cancel", s.BillingCancel)
}
