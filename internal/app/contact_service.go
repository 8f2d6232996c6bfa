package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lowkey_bot/internal/domain/contact"
	"lowkey_bot/internal/domain/notification"
	idb "lowkey_bot/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// Custom application-level errors for contact management
var ErrOwnerNotAuthorized = fmt.Errorf("performing user is not the bot owner")
var ErrContactNotFound = fmt.Errorf("contact not found")
var ErrEmptyName = fmt.Errorf("contact name must not be empty")

// ContactService handles the owner's contact commands. Every change that can
// affect reminders is handed to the Refresher afterwards.
type ContactService struct {
	contactRepo     contact.Repository
	publisher       notification.Publisher
	settings        notification.PermissionChecker
	refresher       Refresher
	ownerTelegramID int64
	logger          *logrus.Entry
}

func NewContactService(
	cr contact.Repository,
	pub notification.Publisher,
	settings notification.PermissionChecker,
	refresher Refresher,
	ownerID int64,
	logger *logrus.Entry,
) *ContactService {
	return &ContactService{
		contactRepo:     cr,
		publisher:       pub,
		settings:        settings,
		refresher:       refresher,
		ownerTelegramID: ownerID,
		logger:          logger,
	}
}

// AddContact stores a new contact and reserves its first reminders. A failed
// refresh is logged and the contact is still returned; the next full refresh
// picks it up.
func (s *ContactService) AddContact(ctx context.Context, performingUserID int64, name, relationship, cadence string) (*contact.Contact, *RefreshReport, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, nil, ErrOwnerNotAuthorized
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrEmptyName
	}
	rel, err := contact.ParseRelationship(relationship)
	if err != nil {
		return nil, nil, err
	}
	cad, err := contact.ParseCadence(cadence)
	if err != nil {
		return nil, nil, err
	}

	newContact := &contact.Contact{
		Name:         name,
		Relationship: rel,
		Cadence:      cad,
	}
	if err := s.contactRepo.Create(ctx, newContact); err != nil {
		return nil, nil, fmt.Errorf("failed to create contact in repository: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"contact_id":   newContact.ID,
		"relationship": rel,
		"cadence":      cad,
	}).Info("Contact added")

	return newContact, s.refreshAfterChange(ctx, newContact.ID), nil
}

// UpdateContact changes the relationship and cadence of a contact.
func (s *ContactService) UpdateContact(ctx context.Context, performingUserID int64, contactID, relationship, cadence string) (*contact.Contact, *RefreshReport, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, nil, ErrOwnerNotAuthorized
	}

	rel, err := contact.ParseRelationship(relationship)
	if err != nil {
		return nil, nil, err
	}
	cad, err := contact.ParseCadence(cadence)
	if err != nil {
		return nil, nil, err
	}

	target, err := s.getContact(ctx, contactID)
	if err != nil {
		return nil, nil, err
	}
	target.Relationship = rel
	target.Cadence = cad
	if err := s.saveContact(ctx, target); err != nil {
		return nil, nil, err
	}
	return target, s.refreshAfterChange(ctx, target.ID), nil
}

// RenameContact changes the display name. Pending reminders carry the old name
// in their text, so the contact is refreshed as well.
func (s *ContactService) RenameContact(ctx context.Context, performingUserID int64, contactID, name string) (*contact.Contact, *RefreshReport, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, nil, ErrOwnerNotAuthorized
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, ErrEmptyName
	}

	target, err := s.getContact(ctx, contactID)
	if err != nil {
		return nil, nil, err
	}
	target.Name = name
	if err := s.saveContact(ctx, target); err != nil {
		return nil, nil, err
	}
	return target, s.refreshAfterChange(ctx, target.ID), nil
}

// RemoveContact deletes the contact and cancels its pending reminders.
func (s *ContactService) RemoveContact(ctx context.Context, performingUserID int64, contactID string) (*contact.Contact, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, ErrOwnerNotAuthorized
	}

	target, err := s.getContact(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if err := s.refresher.RemoveContact(ctx, target.ID); err != nil {
		if errors.Is(err, idb.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to remove contact: %w", err)
	}
	return target, nil
}

func (s *ContactService) ListContacts(ctx context.Context, performingUserID int64) ([]*contact.Contact, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, ErrOwnerNotAuthorized
	}
	contacts, err := s.contactRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return contacts, nil
}

// Upcoming lists pending reminders soonest first. An empty contactID means all contacts.
func (s *ContactService) Upcoming(ctx context.Context, performingUserID int64, contactID string) ([]notification.Reservation, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, ErrOwnerNotAuthorized
	}
	if contactID != "" {
		if _, err := s.getContact(ctx, contactID); err != nil {
			return nil, err
		}
	}

	pending, err := s.publisher.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	if contactID == "" {
		return pending, nil
	}
	filtered := make([]notification.Reservation, 0, len(pending))
	for _, r := range pending {
		if r.ContactID == contactID {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (s *ContactService) PendingCount(ctx context.Context, performingUserID int64) (int, error) {
	pending, err := s.Upcoming(ctx, performingUserID, "")
	if err != nil {
		return 0, err
	}
	return len(pending), nil
}

// Refresh runs a full refresh on the owner's request.
func (s *ContactService) Refresh(ctx context.Context, performingUserID int64) (*RefreshReport, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, ErrOwnerNotAuthorized
	}
	return s.refresher.FullRefresh(ctx)
}

// SetRemindersEnabled pauses or resumes reminders for the owner.
func (s *ContactService) SetRemindersEnabled(ctx context.Context, performingUserID int64, enabled bool) (*RefreshReport, error) {
	if performingUserID != s.ownerTelegramID {
		return nil, ErrOwnerNotAuthorized
	}
	return s.refresher.SetNotificationsEnabled(ctx, enabled)
}

func (s *ContactService) RemindersEnabled(ctx context.Context) (bool, error) {
	return s.settings.NotificationsEnabled(ctx)
}

func (s *ContactService) getContact(ctx context.Context, contactID string) (*contact.Contact, error) {
	c, err := s.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, idb.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("failed to get contact %s: %w", contactID, err)
	}
	return c, nil
}

func (s *ContactService) saveContact(ctx context.Context, c *contact.Contact) error {
	if err := s.contactRepo.Update(ctx, c); err != nil {
		if errors.Is(err, idb.ErrContactNotFound) {
			return ErrContactNotFound
		}
		return fmt.Errorf("failed to update contact in repository: %w", err)
	}
	s.logger.WithField("contact_id", c.ID).Info("Contact updated")
	return nil
}

func (s *ContactService) refreshAfterChange(ctx context.Context, contactID string) *RefreshReport {
	report, err := s.refresher.RefreshContact(ctx, contactID)
	if err != nil {
		s.logger.WithError(err).WithField("contact_id", contactID).Warn("Incremental refresh failed; next full refresh will retry")
		return nil
	}
	return report
}
