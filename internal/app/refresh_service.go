// internal/app/refresh_service.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"lowkey_bot/internal/domain/allocation"
	"lowkey_bot/internal/domain/contact"
	"lowkey_bot/internal/domain/notification"

	"github.com/sirupsen/logrus"
)

const defaultReserveWorkers = 4

// Refresher recomputes which reminders are reserved.
type Refresher interface {
	// FullRefresh discards every pending reminder and reallocates the whole budget.
	FullRefresh(ctx context.Context) (*RefreshReport, error)
	// RefreshContact re-reserves one contact's reminders inside the room left in the queue.
	RefreshContact(ctx context.Context, contactID string) (*RefreshReport, error)
	// RemoveContact deletes a contact together with its pending reminders.
	RemoveContact(ctx context.Context, contactID string) error
	// SetNotificationsEnabled pauses (cancelling everything) or resumes (full refresh) reminders.
	SetNotificationsEnabled(ctx context.Context, enabled bool) (*RefreshReport, error)
}

// RefreshReport describes what one refresh pass did.
type RefreshReport struct {
	PermissionGranted bool
	Result            allocation.Result // Computed even when permission is missing
	Reserved          int
	Failed            int
	Advanced          []string // Contacts whose stored last reminded time moved to the pass time
}

// RefreshService is the only writer of reservations and of contacts' last
// reminded time. Every entry point holds mu, so a full refresh never
// interleaves its cancel and reserve phases with another pass.
//
// A pass plans each contact from the Plan on its pending reservations, so
// repeating a pass with nothing changed reserves the same set again.
type RefreshService struct {
	contactRepo contact.Repository
	publisher   notification.Publisher
	settings    notification.Settings
	opts        allocation.Options
	capacity    int
	workers     int
	now         func() time.Time
	logger      *logrus.Entry

	mu sync.Mutex
}

func NewRefreshService(
	cr contact.Repository,
	pub notification.Publisher,
	settings notification.Settings,
	opts allocation.Options,
	capacity int,
	logger *logrus.Entry,
) *RefreshService {
	return &RefreshService{
		contactRepo: cr,
		publisher:   pub,
		settings:    settings,
		opts:        opts,
		capacity:    capacity,
		workers:     defaultReserveWorkers,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source. Tests use it to pin "now".
func (s *RefreshService) WithClock(now func() time.Time) *RefreshService {
	s.now = now
	return s
}

func (s *RefreshService) FullRefresh(ctx context.Context) (*RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fullRefreshLocked(ctx)
}

func (s *RefreshService) fullRefreshLocked(ctx context.Context) (*RefreshReport, error) {
	now := s.now()
	log := s.logger.WithField("pass", "full")

	contacts, err := s.contactRepo.ListAll(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list contacts")
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	log = log.WithFields(logrus.Fields{"contacts": len(contacts), "capacity": s.capacity})

	report := &RefreshReport{PermissionGranted: s.permissionGranted(ctx, log)}
	if !report.PermissionGranted {
		report.Result = allocation.Allocate(contacts, now, s.opts, s.capacity)
		log.WithField("admitted", len(report.Result.Admitted)).Info("Reminders are paused; skipping reservation")
		return report, nil
	}

	pending, err := s.publisher.ListPending(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list pending reminders")
		return report, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	planned := withPlans(contacts, pending)
	report.Result = allocation.Allocate(planned, now, s.opts, s.capacity)

	// Must finish before any reservation is issued, or the old and new sets
	// would briefly share the capacity.
	if err := s.publisher.CancelAll(ctx); err != nil {
		log.WithError(err).Error("Failed to cancel pending reminders")
		return report, fmt.Errorf("failed to cancel pending reminders: %w", err)
	}

	s.commit(ctx, now, report, indexContacts(planned), log)
	log.WithFields(logrus.Fields{
		"admitted": len(report.Result.Admitted),
		"reserved": report.Reserved,
		"failed":   report.Failed,
		"advanced": len(report.Advanced),
	}).Info("Full refresh complete")
	return report, nil
}

func (s *RefreshService) RefreshContact(ctx context.Context, contactID string) (*RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	log := s.logger.WithFields(logrus.Fields{"pass": "contact", "contact_id": contactID})

	c, err := s.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to load contact %s: %w", contactID, err)
	}
	contacts := []*contact.Contact{c}

	report := &RefreshReport{PermissionGranted: s.permissionGranted(ctx, log)}
	if !report.PermissionGranted {
		report.Result = allocation.Allocate(contacts, now, s.opts, s.capacity)
		log.Info("Reminders are paused; skipping reservation")
		return report, nil
	}

	pending, err := s.publisher.ListPending(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list pending reminders")
		return report, fmt.Errorf("failed to list pending reminders: %w", err)
	}
	var own []notification.Reservation
	for _, r := range pending {
		if r.ContactID == contactID {
			own = append(own, r)
		}
	}
	room := s.capacity - (len(pending) - len(own))
	if room < 0 {
		room = 0
	}
	planned := withPlans(contacts, own)

	if err := s.publisher.CancelForContact(ctx, contactID); err != nil {
		log.WithError(err).Error("Failed to cancel contact reminders")
		return report, fmt.Errorf("failed to cancel reminders for contact %s: %w", contactID, err)
	}

	report.Result = allocation.Allocate(planned, now, s.opts, room)
	s.commit(ctx, now, report, indexContacts(planned), log)
	log.WithFields(logrus.Fields{
		"room":     room,
		"reserved": report.Reserved,
		"failed":   report.Failed,
	}).Info("Contact refresh complete")
	return report, nil
}

func (s *RefreshService) RemoveContact(ctx context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.contactRepo.Delete(ctx, contactID); err != nil {
		return fmt.Errorf("failed to delete contact %s: %w", contactID, err)
	}
	if err := s.publisher.CancelForContact(ctx, contactID); err != nil {
		return fmt.Errorf("failed to cancel reminders for removed contact %s: %w", contactID, err)
	}
	s.logger.WithField("contact_id", contactID).Info("Contact removed with its reminders")
	return nil
}

func (s *RefreshService) SetNotificationsEnabled(ctx context.Context, enabled bool) (*RefreshReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.settings.SetNotificationsEnabled(ctx, enabled); err != nil {
		return nil, fmt.Errorf("failed to save notification setting: %w", err)
	}
	if enabled {
		s.logger.Info("Reminders resumed")
		return s.fullRefreshLocked(ctx)
	}
	if err := s.publisher.CancelAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to cancel pending reminders: %w", err)
	}
	s.logger.Info("Reminders paused; pending reminders cancelled")
	return &RefreshReport{PermissionGranted: false}, nil
}

// permissionGranted treats an unreadable setting as "not granted" so a broken
// settings store never causes unwanted reminders.
func (s *RefreshService) permissionGranted(ctx context.Context, log *logrus.Entry) bool {
	enabled, err := s.settings.NotificationsEnabled(ctx)
	if err != nil {
		log.WithError(err).Warn("Could not read notification permission; treating as not granted")
		return false
	}
	return enabled
}

// commit publishes the admitted reminders, each carrying the last reminded
// time it was planned from, and advances the stored last reminded time of
// every contact with at least one successful reservation.
func (s *RefreshService) commit(ctx context.Context, now time.Time, report *RefreshReport, byID map[string]*contact.Contact, log *logrus.Entry) {
	admitted := report.Result.Admitted
	outcomes := make([]error, len(admitted))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, adm := range admitted {
		c := byID[adm.ContactID]
		r := notification.Reservation{
			Identifier:  adm.Identifier,
			ContactID:   adm.ContactID,
			DisplayText: notification.ReminderText(c.Name),
			FireAt:      adm.At,
			Plan:        &notification.Plan{LastReminded: c.LastReminded},
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, r notification.Reservation) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = s.publisher.Reserve(ctx, r)
		}(i, r)
	}
	wg.Wait()

	reminded := make(map[string]bool, len(report.Result.Advance))
	for i, err := range outcomes {
		if err != nil {
			report.Failed++
			log.WithError(err).WithFields(logrus.Fields{
				"identifier": admitted[i].Identifier,
				"fire_at":    admitted[i].At,
			}).Warn("Failed to reserve reminder; skipping it")
			continue
		}
		report.Reserved++
		reminded[admitted[i].ContactID] = true
	}

	for _, id := range report.Result.Advance {
		if !reminded[id] {
			continue
		}
		if err := s.contactRepo.MarkReminded(ctx, id, now); err != nil {
			log.WithError(err).WithField("contact_id", id).Error("Failed to record last reminded time")
			continue
		}
		report.Advanced = append(report.Advanced, id)
	}
}

// withPlans returns copies of contacts planned from the last reminded time their
// pending reservations were computed from, when they still carry one. Passes
// advance the stored time, so planning from it again would push reminders that
// are already reserved out of the horizon. Never reminded counts as earliest.
func withPlans(contacts []*contact.Contact, pending []notification.Reservation) []*contact.Contact {
	plans := make(map[string]sql.NullTime)
	for _, r := range pending {
		if r.Plan == nil {
			continue
		}
		cur, seen := plans[r.ContactID]
		if !seen || plannedEarlier(r.Plan.LastReminded, cur) {
			plans[r.ContactID] = r.Plan.LastReminded
		}
	}

	out := make([]*contact.Contact, 0, len(contacts))
	for _, c := range contacts {
		if c == nil {
			continue
		}
		cp := *c
		if lr, ok := plans[c.ID]; ok {
			cp.LastReminded = lr
		}
		out = append(out, &cp)
	}
	return out
}

func plannedEarlier(a, b sql.NullTime) bool {
	if !b.Valid {
		return false
	}
	return !a.Valid || a.Time.Before(b.Time)
}

func indexContacts(contacts []*contact.Contact) map[string]*contact.Contact {
	byID := make(map[string]*contact.Contact, len(contacts))
	for _, c := range contacts {
		if c != nil {
			byID[c.ID] = c
		}
	}
	return byID
}

var _ Refresher = (*RefreshService)(nil)
