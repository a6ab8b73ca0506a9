package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"newsletter-agent/internal/common/config"
)

// Migrate applies the schema migrations under cfg.MigrationsPath.
// direction is "up" or "down"; steps of 0 means all pending steps.
func Migrate(cfg config.PostgresConfig, direction string, steps int) error {
	source := cfg.MigrationsPath
	if source == "" {
		source = "file://migrations"
	}

	m, err := migrate.New(source, cfg.GetURL())
	if err != nil {
		return fmt.Errorf("failed to initialise migrations: %w", err)
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	case "down":
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	default:
		return fmt.Errorf("unknown migration direction: %s", direction)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration %s failed: %w", direction, err)
	}
	return nil
}
