package app

import (
	"context"
	"testing"
	"time"

	"lowkey_bot/internal/domain/notification"
	"lowkey_bot/internal/infra/logger"
	"lowkey_bot/internal/infra/queue"
)

func seededQueue(t *testing.T, now time.Time) *queue.SQLiteQueue {
	t.Helper()
	q, err := queue.OpenMemory(16)
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { q.Close() })

	ctx := context.Background()
	for _, r := range []notification.Reservation{
		{Identifier: "A-0", ContactID: "A", DisplayText: notification.ReminderText("Alex"), FireAt: now.Add(-time.Minute)},
		{Identifier: "B-0", ContactID: "B", DisplayText: notification.ReminderText("Blake"), FireAt: now},
		{Identifier: "A-1", ContactID: "A", DisplayText: notification.ReminderText("Alex"), FireAt: now.Add(time.Hour)},
	} {
		if err := q.Reserve(ctx, r); err != nil {
			t.Fatalf("Reserve %s: %v", r.Identifier, err)
		}
	}
	return q
}

func pendingIDs(t *testing.T, q notification.Publisher) []string {
	t.Helper()
	pending, err := q.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	ids := make([]string, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.Identifier)
	}
	return ids
}

func TestDeliverDueSendsAndRemoves(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	q := seededQueue(t, now)
	tg := &fakeTelegram{}
	svc := NewDeliveryService(q, &fakeSettings{enabled: true}, tg, ownerID, 0, logger.Discard()).
		WithClock(fixedClock(now))

	report, err := svc.DeliverDue(context.Background())
	if err != nil {
		t.Fatalf("DeliverDue: %v", err)
	}
	if report.Due != 2 || report.Delivered != 2 || report.Failed != 0 {
		t.Fatalf("report = %+v, want 2 due and delivered", report)
	}

	want := []string{
		"💝 Lowkey\nTime to reach out to Alex",
		"💝 Lowkey\nTime to reach out to Blake",
	}
	if len(tg.sent) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(tg.sent), len(want))
	}
	for i, msg := range tg.sent {
		if msg.chatID != ownerID || msg.text != want[i] {
			t.Errorf("message %d = %+v, want %q to owner", i, msg, want[i])
		}
	}

	if ids := pendingIDs(t, q); len(ids) != 1 || ids[0] != "A-1" {
		t.Fatalf("pending after delivery = %v, want [A-1]", ids)
	}
}

func TestDeliverDueKeepsFailedSends(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	q := seededQueue(t, now)
	svc := NewDeliveryService(q, &fakeSettings{enabled: true}, &fakeTelegram{fail: true}, ownerID, 0, logger.Discard()).
		WithClock(fixedClock(now))

	report, err := svc.DeliverDue(context.Background())
	if err != nil {
		t.Fatalf("DeliverDue: %v", err)
	}
	if report.Delivered != 0 || report.Failed != 2 {
		t.Fatalf("report = %+v, want 2 failed", report)
	}
	if ids := pendingIDs(t, q); len(ids) != 3 {
		t.Fatalf("pending = %v, want all three kept", ids)
	}
}

func TestDeliverDueWhilePaused(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	q := seededQueue(t, now)
	tg := &fakeTelegram{}
	svc := NewDeliveryService(q, &fakeSettings{enabled: false}, tg, ownerID, 0, logger.Discard()).
		WithClock(fixedClock(now))

	report, err := svc.DeliverDue(context.Background())
	if err != nil {
		t.Fatalf("DeliverDue: %v", err)
	}
	if report.Due != 0 || len(tg.sent) != 0 {
		t.Fatalf("paused delivery sent %d messages", len(tg.sent))
	}
	if ids := pendingIDs(t, q); len(ids) != 3 {
		t.Fatalf("pending = %v, want untouched queue", ids)
	}
}

func TestDeliverDueStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	now := wednesdayMorning
	q := seededQueue(t, now)
	tg := &fakeTelegram{}
	svc := NewDeliveryService(q, &fakeSettings{enabled: true}, tg, ownerID, 0.001, logger.Discard()).
		WithClock(fixedClock(now))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := svc.DeliverDue(ctx)
	if err == nil {
		t.Fatalf("DeliverDue should stop when the pacing wait outlives the context")
	}
	if len(tg.sent) != 1 {
		t.Fatalf("sent %d messages, want only the first before pacing kicks in", len(tg.sent))
	}
}
