package cli

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/domain/allocation"
	"lowkey_bot/internal/infra/config"
	idb "lowkey_bot/internal/infra/database"
	"lowkey_bot/internal/infra/logger"
	"lowkey_bot/internal/infra/queue"

	"github.com/sirupsen/logrus"
)

const connectTimeout = 15 * time.Second

// runtime holds the stores and services every subcommand shares.
type runtime struct {
	cfg         *config.AppConfig
	db          *sql.DB
	queue       *queue.SQLiteQueue
	contactRepo *idb.PostgresContactRepository
	settings    *idb.PostgresSettingsRepository
	refresher   *app.RefreshService
}

func allocationOptions(cfg *config.AppConfig) allocation.Options {
	return allocation.Options{
		Horizon:  cfg.ReminderHorizon,
		Hour:     cfg.ReminderHour,
		Location: cfg.Location,
		Jitter:   allocation.StableJitter,
	}
}

func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	logger.Log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"capacity":    cfg.ReminderCapacity,
		"horizon":     cfg.ReminderHorizon.String(),
		"timezone":    cfg.Location.String(),
	}).Info("Configuration loaded")

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	db, err := idb.NewPostgresConnection(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	logger.Log.Info("Database connection established successfully.")

	q, err := queue.Open(cfg.QueuePath, cfg.ReminderCapacity)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not open reminder queue: %w", err)
	}
	logger.Log.WithField("path", cfg.QueuePath).Info("Reminder queue opened.")

	contactRepo := idb.NewPostgresContactRepository(db)
	settings := idb.NewPostgresSettingsRepository(db)
	refresher := app.NewRefreshService(
		contactRepo,
		q,
		settings,
		allocationOptions(cfg),
		cfg.ReminderCapacity,
		logger.Component("refresh"),
	)

	return &runtime{
		cfg:         cfg,
		db:          db,
		queue:       q,
		contactRepo: contactRepo,
		settings:    settings,
		refresher:   refresher,
	}, nil
}

func (rt *runtime) Close() {
	if err := rt.queue.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close reminder queue")
	}
	if err := rt.db.Close(); err != nil {
		logger.Log.WithError(err).Warn("Failed to close database")
	}
}
