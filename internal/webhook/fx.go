package webhook

import "go.uber.org/fx"

var Module = fx.Module("webhook.service",
	fx.Provide(New),
	fx.Provide(func(s *Service) Processor { return s }),
)
