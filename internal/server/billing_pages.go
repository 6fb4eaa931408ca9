package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// The processor redirects buyers here after hosted checkout. The pages are
// purely informational; payment state only ever changes via the webhook.

func (s *Server) BillingSuccess(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(`<!doctype html>
<html>
<head><title>Payment received</title></head>
<body>
<h1>Thanks for your purchase!</h1>
<p>Your payment is being confirmed. Your role and receipt will arrive in the server shortly.</p>
</body>
</html>`))
}

func (s *Server) BillingCancel(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(`<!doctype html>
<html>
<head><title>Checkout cancelled</title></head>
<body>
<h1>Checkout cancelled</h1>
<p>No payment was taken. You can restart the purchase from the server at any time.</p>
</body>
</html>`))
}
