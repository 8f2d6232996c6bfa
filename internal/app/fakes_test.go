package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"lowkey_bot/internal/domain/contact"
	"lowkey_bot/internal/domain/notification"
	idb "lowkey_bot/internal/infra/database"
)

// 2025-03-05 is a Wednesday.
var wednesdayMorning = time.Date(2025, time.March, 5, 8, 0, 0, 0, time.UTC)

const ownerID int64 = 4242

func remindedAt(at time.Time) sql.NullTime {
	return sql.NullTime{Time: at, Valid: true}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// testClock is a settable time source shared by services under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fakeContactRepo keeps contacts in insertion order and hands out copies.
type fakeContactRepo struct {
	mu       sync.Mutex
	contacts []*contact.Contact
	marked   map[string]time.Time
	// frozen records MarkReminded calls without changing the stored contact.
	frozen bool
	nextID int
}

func newFakeContactRepo(contacts ...*contact.Contact) *fakeContactRepo {
	r := &fakeContactRepo{marked: make(map[string]time.Time)}
	for _, c := range contacts {
		cp := *c
		r.contacts = append(r.contacts, &cp)
	}
	return r
}

func (r *fakeContactRepo) Create(_ context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		r.nextID++
		c.ID = fmt.Sprintf("contact-%d", r.nextID)
	}
	cp := *c
	r.contacts = append(r.contacts, &cp)
	return nil
}

func (r *fakeContactRepo) find(id string) (int, *contact.Contact) {
	for i, c := range r.contacts {
		if c.ID == id {
			return i, c
		}
	}
	return -1, nil
}

func (r *fakeContactRepo) GetByID(_ context.Context, id string) (*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, c := r.find(id)
	if c == nil {
		return nil, idb.ErrContactNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) Update(_ context.Context, c *contact.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, stored := r.find(c.ID)
	if stored == nil {
		return idb.ErrContactNotFound
	}
	stored.Name = c.Name
	stored.Relationship = c.Relationship
	stored.Cadence = c.Cadence
	return nil
}

func (r *fakeContactRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, c := r.find(id)
	if c == nil {
		return idb.ErrContactNotFound
	}
	r.contacts = append(r.contacts[:i], r.contacts[i+1:]...)
	return nil
}

func (r *fakeContactRepo) ListAll(_ context.Context) ([]*contact.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*contact.Contact, 0, len(r.contacts))
	for _, c := range r.contacts {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeContactRepo) MarkReminded(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, c := r.find(id)
	if c == nil {
		return idb.ErrContactNotFound
	}
	r.marked[id] = at
	if !r.frozen {
		c.AdvanceLastReminded(at)
	}
	return nil
}

func (r *fakeContactRepo) markedAt(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.marked[id]
	return at, ok
}

// fakePublisher is an in-memory Publisher that logs every call.
type fakePublisher struct {
	mu       sync.Mutex
	capacity int
	pending  map[string]notification.Reservation
	failFor  map[string]bool
	events   []string
	delay    time.Duration
}

func newFakePublisher(capacity int) *fakePublisher {
	return &fakePublisher{
		capacity: capacity,
		pending:  make(map[string]notification.Reservation),
		failFor:  make(map[string]bool),
	}
}

func (p *fakePublisher) record(event string) {
	p.events = append(p.events, event)
}

func (p *fakePublisher) Reserve(_ context.Context, r notification.Reservation) error {
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("reserve:" + r.Identifier)
	if p.failFor[r.Identifier] {
		return fmt.Errorf("publisher rejected %s", r.Identifier)
	}
	if _, dup := p.pending[r.Identifier]; dup {
		return notification.ErrDuplicateReservation
	}
	if len(p.pending) >= p.capacity {
		return notification.ErrCapacityReached
	}
	p.pending[r.Identifier] = r
	return nil
}

func (p *fakePublisher) CancelAll(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("cancel_all")
	p.pending = make(map[string]notification.Reservation)
	return nil
}

func (p *fakePublisher) CancelForContact(_ context.Context, contactID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("cancel:" + contactID)
	for id, r := range p.pending {
		if r.ContactID == contactID {
			delete(p.pending, id)
		}
	}
	return nil
}

func (p *fakePublisher) ListPending(_ context.Context) ([]notification.Reservation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("list")
	return p.snapshotLocked(), nil
}

func (p *fakePublisher) snapshotLocked() []notification.Reservation {
	out := make([]notification.Reservation, 0, len(p.pending))
	for _, r := range p.pending {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FireAt.Equal(out[j].FireAt) {
			return out[i].FireAt.Before(out[j].FireAt)
		}
		return out[i].Identifier < out[j].Identifier
	})
	return out
}

func (p *fakePublisher) snapshot() []notification.Reservation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *fakePublisher) seed(rs ...notification.Reservation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range rs {
		p.pending[r.Identifier] = r
	}
}

func (p *fakePublisher) eventLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func countPrefix(events []string, prefix string) int {
	n := 0
	for _, e := range events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fakeSettings struct {
	mu      sync.Mutex
	enabled bool
	readErr error
	writes  []bool
}

func (s *fakeSettings) NotificationsEnabled(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.enabled, nil
}

func (s *fakeSettings) SetNotificationsEnabled(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
	s.writes = append(s.writes, enabled)
	return nil
}

type sentMessage struct {
	chatID int64
	text   string
}

type fakeTelegram struct {
	mu   sync.Mutex
	fail bool
	sent []sentMessage
}

func (f *fakeTelegram) SendText(recipientChatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("telegram unavailable")
	}
	f.sent = append(f.sent, sentMessage{chatID: recipientChatID, text: text})
	return nil
}
