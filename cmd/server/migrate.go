package main

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dermascan-server/internal/config"
	"github.com/dermascan-server/internal/database"
	"github.com/dermascan-server/internal/domain"
)

// runMigrate handles "server migrate up|down|version" against the
// configured Postgres history database.
func runMigrate(ctx context.Context, cfg *domain.Config, logger *logrus.Logger, out io.Writer, args []string) error {
	dbURL := config.DatabaseURL(cfg.Database)
	path := cfg.History.MigrationsPath

	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "up":
		return database.Migrate(ctx, dbURL, path, logger)
	case "down":
		return database.MigrateDown(ctx, dbURL, path, logger)
	case "version":
		version, dirty, err := database.SchemaVersion(dbURL, path, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "schema version %d (dirty: %t)\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migrate command %q (want up, down or version)", cmd)
	}
}
