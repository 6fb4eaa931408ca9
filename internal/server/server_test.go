package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	checkoutdomain "github.com/oakline/storefront/internal/checkout/domain"
	"github.com/oakline/storefront/internal/config"
	guildconfigdomain "github.com/oakline/storefront/internal/guildconfig/domain"
	"github.com/oakline/storefront/internal/money"
	productdomain "github.com/oakline/storefront/internal/product/domain"
	"github.com/oakline/storefront/internal/providers/chat"
	"github.com/oakline/storefront/internal/providers/pdf"
	"github.com/oakline/storefront/internal/providers/stripe"
	purchasedomain "github.com/oakline/storefront/internal/purchase/domain"
	purchaserepo "github.com/oakline/storefront/internal/purchase/repository"
	refunddomain "github.com/oakline/storefront/internal/refund/domain"
	ticketdomain "github.com/oakline/storefront/internal/ticket/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProductService struct {
	products []productdomain.Response
}

func (f *fakeProductService) Create(ctx context.Context, req productdomain.CreateRequest) (*productdomain.Response, error) {
	_ = ctx
	if req.Name == "" {
		return nil, productdomain.ErrInvalidName
	}
	resp := productdomain.Response{ID: "1", GuildID: req.GuildID, Name: req.Name, GrantRoleID: req.GrantRoleID}
	f.products = append(f.products, resp)
	return &resp, nil
}

func (f *fakeProductService) Get(ctx context.Context, guildID, id string) (*productdomain.Response, error) {
	_ = ctx
	for i := range f.products {
		if f.products[i].ID == id && f.products[i].GuildID == guildID {
			return &f.products[i], nil
		}
	}
	return nil, productdomain.ErrNotFound
}

func (f *fakeProductService) List(ctx context.Context, guildID string) ([]productdomain.Response, error) {
	_ = ctx
	_ = guildID
	return f.products, nil
}

func (f *fakeProductService) SetPrice(ctx context.Context, req productdomain.SetPriceRequest) (*productdomain.Response, error) {
	return f.Get(ctx, req.GuildID, req.ID)
}

func (f *fakeProductService) UnsetPrice(ctx context.Context, guildID, id string, plan money.PlanKey) (*productdomain.Response, error) {
	_ = plan
	return f.Get(ctx, guildID, id)
}

type fakeTicketService struct {
	lastOpen  ticketdomain.OpenRequest
	lastClose ticketdomain.CloseRequest
	closeErr  error
}

func (f *fakeTicketService) OpenOrReuse(ctx context.Context, req ticketdomain.OpenRequest) (*ticketdomain.Ticket, bool, error) {
	_ = ctx
	f.lastOpen = req
	if req.Kind != ticketdomain.KindPurchase && req.Kind != ticketdomain.KindSupport {
		return nil, false, ticketdomain.ErrInvalidKind
	}
	return &ticketdomain.Ticket{GuildID: req.GuildID, OwnerID: req.UserID, Kind: req.Kind, Status: ticketdomain.StatusOpen}, false, nil
}

func (f *fakeTicketService) Close(ctx context.Context, req ticketdomain.CloseRequest) (*ticketdomain.Ticket, error) {
	_ = ctx
	f.lastClose = req
	if f.closeErr != nil {
		return nil, f.closeErr
	}
	return &ticketdomain.Ticket{GuildID: req.GuildID, Status: ticketdomain.StatusClosed}, nil
}

type fakeCheckoutService struct {
	lastProduct  checkoutdomain.ProductCheckoutRequest
	lastDonation checkoutdomain.DonationCheckoutRequest
	err          error
}

func (f *fakeCheckoutService) StartProductCheckout(ctx context.Context, req checkoutdomain.ProductCheckoutRequest) (*checkoutdomain.Session, error) {
	_ = ctx
	f.lastProduct = req
	if f.err != nil {
		return nil, f.err
	}
	return &checkoutdomain.Session{PurchaseID: "pur_1", URL: "https://checkout.example/s1"}, nil
}

func (f *fakeCheckoutService) StartDonationCheckout(ctx context.Context, req checkoutdomain.DonationCheckoutRequest) (*checkoutdomain.Session, error) {
	_ = ctx
	f.lastDonation = req
	if f.err != nil {
		return nil, f.err
	}
	return &checkoutdomain.Session{PurchaseID: "pur_2", URL: "https://checkout.example/s2"}, nil
}

type fakeRefundService struct {
	err error
}

func (f *fakeRefundService) Create(ctx context.Context, req refunddomain.CreateRequest) (*refunddomain.RefundRequest, error) {
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &refunddomain.RefundRequest{RequestID: "ref_1", GuildID: req.GuildID, Status: refunddomain.StatusPending}, nil
}

func (f *fakeRefundService) Approve(ctx context.Context, req refunddomain.DecisionRequest) (*refunddomain.RefundRequest, error) {
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &refunddomain.RefundRequest{RequestID: req.RequestID, Status: refunddomain.StatusRefunded}, nil
}

func (f *fakeRefundService) Reject(ctx context.Context, req refunddomain.DecisionRequest) (*refunddomain.RefundRequest, error) {
	_ = ctx
	if f.err != nil {
		return nil, f.err
	}
	return &refunddomain.RefundRequest{RequestID: req.RequestID, Status: refunddomain.StatusRejected}, nil
}

func (f *fakeRefundService) Get(ctx context.Context, guildID, requestID string) (*refunddomain.RefundRequest, error) {
	_ = ctx
	_ = guildID
	if f.err != nil {
		return nil, f.err
	}
	return &refunddomain.RefundRequest{RequestID: requestID, Status: refunddomain.StatusPending}, nil
}

type fakeGuildConfigService struct {
	cfg   *guildconfigdomain.GuildConfig
	patch guildconfigdomain.Patch
}

func (f *fakeGuildConfigService) Get(ctx context.Context, guildID string) (*guildconfigdomain.GuildConfig, error) {
	_ = ctx
	_ = guildID
	return f.cfg, nil
}

func (f *fakeGuildConfigService) Upsert(ctx context.Context, guildID string, patch guildconfigdomain.Patch) error {
	_ = ctx
	_ = guildID
	if patch.Empty() {
		return guildconfigdomain.ErrEmptyPatch
	}
	f.patch = patch
	return nil
}

type fakeProcessor struct {
	err      error
	payloads [][]byte
}

func (f *fakeProcessor) Process(ctx context.Context, payload []byte, sigHeader string) error {
	_ = ctx
	_ = sigHeader
	f.payloads = append(f.payloads, payload)
	return f.err
}

type panelChat struct {
	chat.NoOpProvider
	posted   []string
	edits    []string
	editErr  error
	postedID string
}

func (p *panelChat) PostMessage(ctx context.Context, channelID, content string) (string, error) {
	_ = ctx
	_ = channelID
	p.posted = append(p.posted, content)
	if p.postedID == "" {
		p.postedID = "msg-1"
	}
	return p.postedID, nil
}

func (p *panelChat) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	_ = ctx
	_ = channelID
	_ = messageID
	if p.editErr != nil {
		return p.editErr
	}
	p.edits = append(p.edits, content)
	return nil
}

type serverFixture struct {
	server     *Server
	db         *gorm.DB
	ticket     *fakeTicketService
	checkout   *fakeCheckoutService
	refund     *fakeRefundService
	guildCfg   *fakeGuildConfigService
	processor  *fakeProcessor
	chat       *panelChat
	purchases  purchasedomain.Repository
	stripeForm url.Values
	stripePath string
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&purchasedomain.Purchase{}))

	f := &serverFixture{
		db:        db,
		ticket:    &fakeTicketService{},
		checkout:  &fakeCheckoutService{},
		refund:    &fakeRefundService{},
		guildCfg:  &fakeGuildConfigService{},
		processor: &fakeProcessor{},
		chat:      &panelChat{},
		purchases: purchaserepo.Provide(),
	}

	stub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.stripeForm = r.PostForm
		f.stripePath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"sub_1","status":"active"}`))
	}))
	t.Cleanup(stub.Close)

	f.server = NewServer(ServerParams{
		Gin:          NewEngine(zap.NewNop()),
		Cfg:          config.Config{GuildID: "g1", Currency: "gbp"},
		DB:           db,
		Log:          zap.NewNop(),
		ProductSvc:   &fakeProductService{},
		GuildCfgSvc:  f.guildCfg,
		TicketSvc:    f.ticket,
		CheckoutSvc:  f.checkout,
		RefundSvc:    f.refund,
		WebhookSvc:   f.processor,
		PurchaseRepo: f.purchases,
		Stripe:       stripe.NewClientForTest(stub.URL, "sk_test", "whsec_test"),
		Chat:         f.chat,
		PDF:          pdf.NewProvider(),
	})

	return f
}

func (f *serverFixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Engine().ServeHTTP(rec, req)
	return rec
}

func buyerHeaders(userID string) map[string]string {
	return map[string]string{"X-Actor-ID": userID}
}

func adminHeaders(userID string) map[string]string {
	return map[string]string{"X-Actor-ID": userID, "X-Actor-Admin": "true"}
}

func TestOpenTicketRequiresActor(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/api/tickets", map[string]string{"kind": "support"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOpenTicketForwardsActorIdentity(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/api/tickets", map[string]string{"kind": "purchase"}, buyerHeaders("user-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "user-1", f.ticket.lastOpen.UserID)
	require.Equal(t, "g1", f.ticket.lastOpen.GuildID)
	require.Equal(t, ticketdomain.KindPurchase, f.ticket.lastOpen.Kind)
}

func TestOpenTicketInvalidKindIsBadRequest(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/api/tickets", map[string]string{"kind": "bogus"}, buyerHeaders("user-1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseTicketUnauthorizedMapsToForbidden(t *testing.T) {
	f := newServerFixture(t)
	f.ticket.closeErr = ticketdomain.ErrUnauthorized

	rec := f.do(http.MethodPost, "/api/tickets/close", map[string]string{"channel_id": "ch-1"}, buyerHeaders("user-2"))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCloseTicketForwardsRoles(t *testing.T) {
	f := newServerFixture(t)

	headers := buyerHeaders("user-1")
	headers["X-Actor-Roles"] = "role-a, role-b"
	rec := f.do(http.MethodPost, "/api/tickets/close", map[string]string{"channel_id": "ch-1"}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"role-a", "role-b"}, f.lastCloseRoles())
}

func (f *serverFixture) lastCloseRoles() []string {
	return f.ticket.lastClose.ActorRoleIDs
}

func TestProductCheckoutUsesConfiguredGuild(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/api/checkout/product", map[string]any{
		"product_id": "42",
		"plan":       "monthly",
	}, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "g1", f.checkout.lastProduct.GuildID)
	require.Equal(t, "buyer-1", f.checkout.lastProduct.UserID)
	require.Equal(t, "42", f.checkout.lastProduct.ProductID)
}

func TestCheckoutCooldownMapsTo429(t *testing.T) {
	f := newServerFixture(t)
	f.checkout.err = checkoutdomain.ErrCooldownActive

	rec := f.do(http.MethodPost, "/api/checkout/product", map[string]any{
		"product_id": "42",
		"plan":       "monthly",
	}, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDonationBelowMinimumIsBadRequest(t *testing.T) {
	f := newServerFixture(t)
	f.checkout.err = checkoutdomain.ErrAmountBelowMinimum

	rec := f.do(http.MethodPost, "/api/checkout/donation", map[string]string{"amount": "0.10"}, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRejectNonAdmins(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/admin/products", map[string]string{"name": "VIP"}, buyerHeaders("user-1"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/admin/products", map[string]string{"name": "VIP"}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateProductAsAdmin(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/admin/products", map[string]string{
		"name":          "VIP",
		"grant_role_id": "role-9",
	}, adminHeaders("admin-1"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data productdomain.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "VIP", body.Data.Name)
	require.Equal(t, "g1", body.Data.GuildID)
}

func TestRefundAlreadyDecidedMapsToConflict(t *testing.T) {
	f := newServerFixture(t)
	f.refund.err = refunddomain.ErrAlreadyDecided

	rec := f.do(http.MethodPost, "/api/refunds/ref_1/approve", nil, adminHeaders("admin-1"))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefundWindowExpiredIsBadRequest(t *testing.T) {
	f := newServerFixture(t)
	f.refund.err = refunddomain.ErrWindowExpired

	rec := f.do(http.MethodPost, "/api/refunds", map[string]string{"purchase_id": "pur_1"}, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookAcknowledgesProcessedEvents(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodPost, "/stripe/webhook", map[string]string{"type": "checkout.session.completed"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"received":true}`, rec.Body.String())
	require.Len(t, f.processor.payloads, 1)
}

func TestWebhookInvalidSignatureIs400(t *testing.T) {
	f := newServerFixture(t)
	f.processor.err = stripe.ErrInvalidSignature

	rec := f.do(http.MethodPost, "/stripe/webhook", map[string]string{"type": "checkout.session.completed"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookProcessingFailureIs500(t *testing.T) {
	f := newServerFixture(t)
	f.processor.err = errors.New("subscription fetch failed")

	rec := f.do(http.MethodPost, "/stripe/webhook", nil, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestReceiptOnlyForBuyerOrAdmin(t *testing.T) {
	f := newServerFixture(t)

	paidAt := time.Now().UTC()
	purchase := &purchasedomain.Purchase{
		ID:          1,
		PurchaseID:  "pur_paid",
		GuildID:     "g1",
		BuyerID:     "buyer-1",
		Kind:        purchasedomain.KindDonation,
		AmountMinor: 500,
		Currency:    "gbp",
		Status:      purchasedomain.StatusPaid,
		CreatedAt:   paidAt,
		PaidAt:      &paidAt,
	}
	require.NoError(t, f.purchases.Insert(context.Background(), f.db, purchase))

	rec := f.do(http.MethodGet, "/api/receipts/pur_paid", nil, buyerHeaders("someone-else"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/api/receipts/pur_paid", nil, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Body.Bytes())
}

func TestCancelSubscriptionFlagsPeriodEnd(t *testing.T) {
	f := newServerFixture(t)

	subID := "sub_9"
	createdAt := time.Now().UTC()
	require.NoError(t, f.purchases.Insert(context.Background(), f.db, &purchasedomain.Purchase{
		ID:             2,
		PurchaseID:     "pur_sub",
		GuildID:        "g1",
		BuyerID:        "buyer-1",
		Kind:           purchasedomain.KindProduct,
		AmountMinor:    1500,
		Currency:       "gbp",
		Status:         purchasedomain.StatusPaid,
		SubscriptionID: &subID,
		CreatedAt:      createdAt,
		PaidAt:         &createdAt,
	}))

	rec := f.do(http.MethodPost, "/api/subscriptions/pur_sub/cancel", nil, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "/v1/subscriptions/sub_9", f.stripePath)
	require.Equal(t, "true", f.stripeForm.Get("cancel_at_period_end"))

	rec = f.do(http.MethodPost, "/api/subscriptions/pur_sub/resume", nil, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "false", f.stripeForm.Get("cancel_at_period_end"))
}

func TestCancelSubscriptionOnlyForBuyer(t *testing.T) {
	f := newServerFixture(t)

	subID := "sub_9"
	createdAt := time.Now().UTC()
	require.NoError(t, f.purchases.Insert(context.Background(), f.db, &purchasedomain.Purchase{
		ID:             3,
		PurchaseID:     "pur_sub2",
		GuildID:        "g1",
		BuyerID:        "buyer-1",
		Kind:           purchasedomain.KindProduct,
		AmountMinor:    1500,
		Currency:       "gbp",
		Status:         purchasedomain.StatusPaid,
		SubscriptionID: &subID,
		CreatedAt:      createdAt,
	}))

	rec := f.do(http.MethodPost, "/api/subscriptions/pur_sub2/cancel", nil, buyerHeaders("intruder"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/api/subscriptions/missing/cancel", nil, buyerHeaders("buyer-1"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPanelPublishEditsInPlace(t *testing.T) {
	f := newServerFixture(t)
	channel := "panel-ch"
	message := "msg-0"
	f.guildCfg.cfg = &guildconfigdomain.GuildConfig{
		GuildID:        "g1",
		PanelChannelID: &channel,
		PanelMessageID: &message,
	}

	rec := f.do(http.MethodPost, "/admin/panel/publish", nil, adminHeaders("admin-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.chat.edits, 1)
	require.Empty(t, f.chat.posted)
}

func TestPanelPublishRepostsWhenEditFails(t *testing.T) {
	f := newServerFixture(t)
	channel := "panel-ch"
	message := "msg-gone"
	f.guildCfg.cfg = &guildconfigdomain.GuildConfig{
		GuildID:        "g1",
		PanelChannelID: &channel,
		PanelMessageID: &message,
	}
	f.chat.editErr = errors.New("unknown message")

	rec := f.do(http.MethodPost, "/admin/panel/publish", nil, adminHeaders("admin-1"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.chat.posted, 1)
	require.NotNil(t, f.guildCfg.patch.PanelMessageID)
	require.Equal(t, "msg-1", *f.guildCfg.patch.PanelMessageID)
}

func TestPanelPublishWithoutChannelIsBadRequest(t *testing.T) {
	f := newServerFixture(t)
	f.guildCfg.cfg = &guildconfigdomain.GuildConfig{GuildID: "g1"}

	rec := f.do(http.MethodPost, "/admin/panel/publish", nil, adminHeaders("admin-1"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
