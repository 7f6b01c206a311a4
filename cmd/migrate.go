package cmd

import (
	"fmt"

	"github.com/huak95/mongkol-backend-rag/db"
	"github.com/huak95/mongkol-backend-rag/internal/config"
)

// runMigrate applies pending migrations and exits.
func runMigrate() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("applying database migrations",
		"host", cfg.PostgresHost,
		"database", cfg.PostgresDBName,
	)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("migrations applied")
	return nil
}
