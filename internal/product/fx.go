package product

import (
	"github.com/oakline/storefront/internal/product/repository"
	"github.com/oakline/storefront/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
