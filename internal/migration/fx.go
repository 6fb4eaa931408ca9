package migration

import (
	"github.com/oakline/storefront/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite deployments (dev, tests) build the schema through
			// gorm's migrator instead.
			if err := conn.AutoMigrate(tables()...); err != nil {
				return err
			}
			// gorm struct tags cannot express the partial index that keeps
			// a user to one open ticket per kind.
			return conn.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tickets_single_open
				ON tickets (guild_id, owner_id, kind) WHERE status = 'open'`).Error
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
