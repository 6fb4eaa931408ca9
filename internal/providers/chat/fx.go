package chat

import (
	"github.com/oakline/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.chat",
	fx.Provide(func(cfg config.Config, log *zap.Logger) Provider {
		if cfg.ChatAPIBaseURL == "" || cfg.ChatBotToken == "" {
			log.Warn("chat platform credentials missing, using no-op provider")
			return NoOpProvider{}
		}
		return NewRESTProvider(cfg.ChatAPIBaseURL, cfg.ChatBotToken)
	}),
)
