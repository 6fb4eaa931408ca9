package entitlement

import (
	"github.com/oakline/storefront/internal/entitlement/repository"
	"github.com/oakline/storefront/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
