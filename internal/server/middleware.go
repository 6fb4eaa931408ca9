package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// The interaction gateway terminates platform auth and forwards the
	// acting user's identity on these headers.
	headerActorID    = "X-Actor-ID"
	headerActorAdmin = "X-Actor-Admin"
	headerActorRoles = "X-Actor-Roles"
)

// actor is the identity the interaction gateway vouched for.
type actor struct {
	ID      string
	IsAdmin bool
	RoleIDs []string
}

func actorFromHeaders(c *gin.Context) actor {
	a := actor{
		ID:      strings.TrimSpace(c.GetHeader(headerActorID)),
		IsAdmin: c.GetHeader(headerActorAdmin) == "true",
	}
	if raw := strings.TrimSpace(c.GetHeader(headerActorRoles)); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				a.RoleIDs = append(a.RoleIDs, id)
			}
		}
	}
	return a
}

// ActorRequired rejects requests that arrive without a forwarded identity.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if actorFromHeaders(c).ID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		c.Next()
	}
}

// AdminRequired gates operator endpoints on the forwarded admin flag.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		a := actorFromHeaders(c)
		if a.ID == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !a.IsAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if last := c.Errors.Last(); last != nil {
			fields = append(fields, zap.Error(last.Err))
		}

		if c.Writer.Status() >= 500 {
			log.Error("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}
