package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/oakline/storefront/internal/clock"
	"github.com/oakline/storefront/internal/config"
	"github.com/oakline/storefront/internal/cooldown"
	"github.com/oakline/storefront/internal/logger"
	"github.com/oakline/storefront/internal/metrics"
	"github.com/oakline/storefront/internal/migration"
	"github.com/oakline/storefront/internal/server"
	"github.com/oakline/storefront/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		cooldown.Module,
		migration.Module,

		// HTTP surface plus the domain modules it pulls in
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
