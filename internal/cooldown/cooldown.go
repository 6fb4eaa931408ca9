// Package cooldown throttles rapid repeated user actions. It is advisory:
// uniqueness constraints, not cooldowns, are the correctness mechanism for
// concurrent checkouts.
package cooldown

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyCooldown = "storefront:cooldown:%s:%s:%s"

type Limiter struct {
	client *redis.Client
}

// NewLimiter wraps a redis client. A nil client disables throttling
// entirely (every action is allowed).
func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil
}

// Allow marks (guild, actor, action) as recently used and reports whether
// the action may proceed. The first caller inside the window wins; SET NX
// makes the check-and-set atomic.
func (l *Limiter) Allow(ctx context.Context, guildID, actorID, action string, window time.Duration) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	if window <= 0 {
		return true, nil
	}
	key := fmt.Sprintf(keyCooldown,
		strings.TrimSpace(guildID),
		strings.TrimSpace(actorID),
		strings.TrimSpace(action),
	)
	return l.client.SetNX(ctx, key, 1, window).Result()
}
