// internal/domain/notification/publisher.go
package notification

import (
	"context"
	"time"
)

// Publisher holds reminder reservations under a hard ceiling on how many may be
// pending at once. Individual Reserve calls may fail without affecting others.
type Publisher interface {
	Reserve(ctx context.Context, r Reservation) error
	CancelAll(ctx context.Context) error
	CancelForContact(ctx context.Context, contactID string) error
	// ListPending sizes the room left for an incremental refresh and hands
	// each contact's pending Plan back to the next pass.
	ListPending(ctx context.Context) ([]Reservation, error)
}

// Queue is a Publisher whose reservations are also fired locally.
type Queue interface {
	Publisher
	ListDue(ctx context.Context, now time.Time) ([]Reservation, error)
	// MarkDelivered drops a fired reservation and clears the Plan of the
	// contact's other pending reservations.
	MarkDelivered(ctx context.Context, identifier string) error
}

// PermissionChecker reports whether the owner currently allows reminders.
type PermissionChecker interface {
	NotificationsEnabled(ctx context.Context) (bool, error)
}

// Settings is the owner-level switch behind PermissionChecker.
type Settings interface {
	PermissionChecker
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
}
