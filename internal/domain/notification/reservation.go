// internal/domain/notification/reservation.go
package notification

import (
	"database/sql"
	"fmt"
	"time"
)

// Custom errors a Publisher may return from Reserve
var ErrCapacityReached = fmt.Errorf("pending reminder capacity reached")
var ErrDuplicateReservation = fmt.Errorf("reservation with this identifier already pending")

// Reservation is one pending reminder held by a Publisher.
type Reservation struct {
	Identifier  string    // "{contactID}-{ordinal}", unique among pending reservations
	ContactID   string
	DisplayText string    // What the owner sees when the reminder fires
	FireAt      time.Time
	CreatedAt   time.Time // Set by the publisher
	Plan        *Plan     // Nil once another reminder of the same contact was delivered
}

// Plan is the last reminded time a reservation was computed from. A refresh
// pass moves the contact's stored time forward, so later passes plan from
// this value instead while the reservation is still pending.
type Plan struct {
	LastReminded sql.NullTime
}

// ReminderTitle prefixes every delivered reminder.
const ReminderTitle = "💝 Lowkey"

// ReminderText is the body shown for a contact's reminder.
func ReminderText(contactName string) string {
	return fmt.Sprintf("Time to reach out to %s", contactName)
}
