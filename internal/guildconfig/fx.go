package guildconfig

import (
	"github.com/oakline/storefront/internal/guildconfig/repository"
	"github.com/oakline/storefront/internal/guildconfig/service"
	"go.uber.org/fx"
)

var Module = fx.Module("guildconfig.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
