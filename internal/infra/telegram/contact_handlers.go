package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lowkey_bot/internal/app"
	"lowkey_bot/internal/domain/contact"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const unauthorizedReply = "Sorry, this bot only answers its owner."

// removeContactBtn carries the contact ID as callback data.
var removeContactBtn = telebot.Btn{Unique: "rm_contact"}

// RegisterContactHandlers registers the owner's contact management commands.
func RegisterContactHandlers(ctx context.Context, b *telebot.Bot, contactService *app.ContactService, ownerTelegramID int64, loc *time.Location, baseLogger *logrus.Entry) {
	// ownerOnly logs the command and rejects anyone but the owner before h runs.
	ownerOnly := func(command string, h func(c telebot.Context, log *logrus.Entry) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   command,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")
			if c.Sender().ID != ownerTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(unauthorizedReply)
			}
			return h(c, handlerLogger)
		}
	}

	b.Handle("/add_contact", ownerOnly("/add_contact", func(c telebot.Context, log *logrus.Entry) error {
		relationship, cadence, name, err := addContactArgs(c.Args())
		if err != nil {
			log.WithField("args_count", len(c.Args())).Warn("Invalid command format")
			return c.Send(usageAddContact)
		}

		newContact, report, err := contactService.AddContact(ctx, c.Sender().ID, name, relationship, cadence)
		if err != nil {
			return c.Send(replyForError(log, "Failed to add contact", err))
		}
		log.WithField("contact_id", newContact.ID).Info("Contact added successfully")
		return c.Send(fmt.Sprintf("Added %s.\n%s\n\n%s", newContact.Name, formatRefreshReport(report), formatContact(newContact, loc)))
	}))

	b.Handle("/edit_contact", ownerOnly("/edit_contact", func(c telebot.Context, log *logrus.Entry) error {
		id, relationship, cadence, err := editContactArgs(c.Args())
		if err != nil {
			return c.Send(usageEditContact)
		}
		log = log.WithField("contact_id", id)

		updated, report, err := contactService.UpdateContact(ctx, c.Sender().ID, id, relationship, cadence)
		if err != nil {
			return c.Send(replyForError(log, "Failed to update contact", err))
		}
		log.Info("Contact updated successfully")
		return c.Send(fmt.Sprintf("Updated %s.\n%s", updated.Name, formatRefreshReport(report)))
	}))

	b.Handle("/rename_contact", ownerOnly("/rename_contact", func(c telebot.Context, log *logrus.Entry) error {
		id, name, err := renameContactArgs(c.Args())
		if err != nil {
			return c.Send(usageRenameContact)
		}
		log = log.WithField("contact_id", id)

		renamed, report, err := contactService.RenameContact(ctx, c.Sender().ID, id, name)
		if err != nil {
			return c.Send(replyForError(log, "Failed to rename contact", err))
		}
		log.Info("Contact renamed successfully")
		return c.Send(fmt.Sprintf("Renamed to %s.\n%s", renamed.Name, formatRefreshReport(report)))
	}))

	removeContact := func(c telebot.Context, log *logrus.Entry, id string) error {
		log = log.WithField("contact_id", id)
		removed, err := contactService.RemoveContact(ctx, c.Sender().ID, id)
		if err != nil {
			return c.Send(replyForError(log, "Failed to remove contact", err))
		}
		log.Info("Contact removed successfully")
		return c.Send(fmt.Sprintf("Removed %s and cancelled their reminders.", removed.Name))
	}

	b.Handle("/remove_contact", ownerOnly("/remove_contact", func(c telebot.Context, log *logrus.Entry) error {
		args := c.Args()
		if len(args) != 1 {
			return c.Send(usageRemoveContact)
		}
		return removeContact(c, log, args[0])
	}))

	b.Handle(&removeContactBtn, ownerOnly("rm_contact", func(c telebot.Context, log *logrus.Entry) error {
		if err := c.Respond(); err != nil {
			log.WithError(err).Warn("Failed to answer callback")
		}
		return removeContact(c, log, c.Callback().Data)
	}))

	b.Handle("/contacts", ownerOnly("/contacts", func(c telebot.Context, log *logrus.Entry) error {
		contacts, err := contactService.ListContacts(ctx, c.Sender().ID)
		if err != nil {
			return c.Send(replyForError(log, "Failed to list contacts", err))
		}
		log.WithField("count", len(contacts)).Info("Contacts listed")
		if len(contacts) == 0 {
			return c.Send(formatContacts(contacts, loc))
		}

		markup := &telebot.ReplyMarkup{}
		rows := make([]telebot.Row, 0, len(contacts))
		for _, ct := range contacts {
			rows = append(rows, markup.Row(markup.Data("Remove "+ct.Name, removeContactBtn.Unique, ct.ID)))
		}
		markup.Inline(rows...)
		return c.Send(formatContacts(contacts, loc), markup)
	}))

	b.Handle("/upcoming", ownerOnly("/upcoming", func(c telebot.Context, log *logrus.Entry) error {
		var id string
		if args := c.Args(); len(args) > 0 {
			id = args[0]
		}
		pending, err := contactService.Upcoming(ctx, c.Sender().ID, id)
		if err != nil {
			return c.Send(replyForError(log, "Failed to list upcoming reminders", err))
		}
		return c.Send(formatUpcoming(pending, loc))
	}))
}

// replyForError logs err at a level matching its cause and returns the text
// to send back to the owner.
func replyForError(log *logrus.Entry, msg string, err error) string {
	logWithError := log.WithError(err)
	switch {
	case errors.Is(err, app.ErrOwnerNotAuthorized):
		logWithError.Warn("Owner not authorized (service level)")
		return unauthorizedReply
	case errors.Is(err, app.ErrContactNotFound):
		logWithError.Warn("Contact not found")
		return "No contact with that ID. Use /contacts to see IDs."
	case errors.Is(err, app.ErrEmptyName):
		logWithError.Warn("Empty contact name")
		return "The contact name must not be empty."
	case errors.Is(err, contact.ErrUnknownRelationship), errors.Is(err, contact.ErrUnknownCadence):
		logWithError.Warn("Unknown contact class")
		return fmt.Sprintf("%s. See /help for the accepted values.", err.Error())
	default:
		logWithError.Error(msg)
		return fmt.Sprintf("Something went wrong: %s", err.Error())
	}
}
