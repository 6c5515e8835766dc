// Command resetusage runs a single monthly usage rollover pass and exits.
// It is intended for deployments that drive the reset from an external
// scheduler (cron, Kubernetes CronJob) instead of the in-process one.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Emart29/iOpsAI/internal"
	"github.com/Emart29/iOpsAI/internal/repository"
	"github.com/Emart29/iOpsAI/internal/service"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// The rollover only reads rows outside the current period, but the
	// schema must exist: either binary can be deployed first.
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	usage := repository.NewUsageStore(db)
	reset := service.NewResetService(usage, nil, logger)

	result, err := reset.Run(ctx)
	if err != nil {
		return fmt.Errorf("usage rollover failed: %w", err)
	}

	logger.Info("usage rollover completed",
		"period", result.Period,
		"rollovers", result.Rollovers,
	)
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
