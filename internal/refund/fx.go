package refund

import (
	"github.com/oakline/storefront/internal/refund/repository"
	"github.com/oakline/storefront/internal/refund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("refund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
