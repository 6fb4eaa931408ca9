package cooldown

import (
	"github.com/oakline/storefront/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cooldown",
	fx.Provide(func(cfg config.Config, log *zap.Logger) *Limiter {
		if cfg.RedisAddr == "" {
			log.Warn("redis not configured, action cooldowns disabled")
			return NewLimiter(nil)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewLimiter(client)
	}),
)
