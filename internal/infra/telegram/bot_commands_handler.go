// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"fmt"

	"lowkey_bot/internal/app"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	contactService *app.ContactService,
	ownerTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")

	b.Handle("/start", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/start").WithField("sender_id", senderID)
		logCtx.Info("Processing /start command")

		if senderID != ownerTelegramID {
			logCtx.Info("User is not the owner")
			return c.Send(unauthorizedReply)
		}

		enabled, err := contactService.RemindersEnabled(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Error reading reminder setting for /start command")
			return c.Send("Something went wrong while checking your settings. Please try again later.")
		}
		state := "on"
		if !enabled {
			state = "paused"
		}
		return c.Send(fmt.Sprintf("Hi %s! Reminders are %s. Use /help to see what I can do.", c.Sender().FirstName, state))
	})

	b.Handle("/help", func(c telebot.Context) error {
		senderID := c.Sender().ID
		logCtx := startHelpLogger.WithField("command", "/help").WithField("sender_id", senderID)
		logCtx.Info("Processing /help command")

		if senderID != ownerTelegramID {
			logCtx.Info("User is not the owner, sending restricted help.")
			return c.Send(unauthorizedReply)
		}
		return c.Send(helpText())
	})

	controlLogger := baseLogger.WithField("handler_group", "reminder_control")

	b.Handle("/refresh", func(c telebot.Context) error {
		logCtx := controlLogger.WithField("command", "/refresh").WithField("sender_id", c.Sender().ID)
		logCtx.Info("Processing /refresh command")

		report, err := contactService.Refresh(ctx, c.Sender().ID)
		if err != nil {
			return c.Send(replyForError(logCtx, "Manual refresh failed", err))
		}
		return c.Send(formatRefreshReport(report))
	})

	setEnabled := func(command string, enabled bool, done string) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			logCtx := controlLogger.WithField("command", command).WithField("sender_id", c.Sender().ID)
			logCtx.Info("Processing command")

			report, err := contactService.SetRemindersEnabled(ctx, c.Sender().ID, enabled)
			if err != nil {
				return c.Send(replyForError(logCtx, "Failed to change reminder setting", err))
			}
			if enabled {
				return c.Send(done + "\n" + formatRefreshReport(report))
			}
			return c.Send(done)
		}
	}
	b.Handle("/pause", setEnabled("/pause", false, "Reminders paused. Pending reminders were cancelled."))
	b.Handle("/resume", setEnabled("/resume", true, "Reminders resumed."))
}
