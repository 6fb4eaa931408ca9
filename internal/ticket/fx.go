package ticket

import (
	"github.com/oakline/storefront/internal/ticket/repository"
	"github.com/oakline/storefront/internal/ticket/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ticket.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
