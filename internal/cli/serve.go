package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/infra/httpapi"
	"lowkey_bot/internal/infra/logger"
	"lowkey_bot/internal/infra/scheduler"
	"lowkey_bot/internal/infra/telegram"

	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

const (
	startupRefreshTimeout = 2 * time.Minute
	shutdownTimeout       = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot, the reminder scheduler and the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg := rt.cfg
	mainLogger := logger.Component("main")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return fmt.Errorf("could not create Telegram bot: %w", err)
	}
	tgClient := telegram.NewTelebotAdapter(bot)

	contactService := app.NewContactService(
		rt.contactRepo,
		rt.queue,
		rt.settings,
		rt.refresher,
		cfg.OwnerTelegramID,
		logger.Component("contacts"),
	)
	deliveryService := app.NewDeliveryService(
		rt.queue,
		rt.settings,
		tgClient,
		cfg.OwnerTelegramID,
		float64(cfg.DeliveryRatePerSec),
		logger.Component("delivery"),
	)

	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(ctx, bot, contactService, cfg.OwnerTelegramID, handlerLogger)
	telegram.RegisterContactHandlers(ctx, bot, contactService, cfg.OwnerTelegramID, cfg.Location, handlerLogger)
	mainLogger.Info("Telegram command handlers registered.")

	// Reconcile the queue with the contact list before the first delivery tick.
	refreshCtx, cancel := context.WithTimeout(ctx, startupRefreshTimeout)
	if report, err := rt.refresher.FullRefresh(refreshCtx); err != nil {
		mainLogger.WithError(err).Error("Startup refresh failed; the scheduler will retry")
	} else {
		mainLogger.WithField("reserved", report.Reserved).Info("Startup refresh complete")
	}
	cancel()

	reminderScheduler := scheduler.NewReminderScheduler(
		rt.refresher,
		deliveryService,
		logger.Component("scheduler"),
		cfg.Location,
		cfg.CronSpecFullRefresh,
		cfg.CronSpecDelivery,
	)
	if err := reminderScheduler.Start(); err != nil {
		return err
	}
	defer reminderScheduler.Stop()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.New(rt.refresher, rt.queue, rt.db, cfg.ReminderCapacity, logger.Component("http")),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		mainLogger.WithField("addr", cfg.HTTPAddr).Info("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()
	mainLogger.Info("Application setup complete. Bot, scheduler and HTTP API are running.")

	select {
	case <-ctx.Done():
		mainLogger.Info("Shutting down application...")
	case err := <-serverErr:
		mainLogger.WithError(err).Error("HTTP server failed; shutting down")
	}

	bot.Stop()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	mainLogger.Info("Application shut down gracefully.")
	return nil
}
