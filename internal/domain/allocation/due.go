// Package allocation decides which reminder instants are worth reserving when
// only a fixed number of pending reminders may exist at once.
//
// Everything in this package is pure: no I/O, no clocks, no shared state.
package allocation

import (
	"database/sql"
	"time"

	"lowkey_bot/internal/domain/contact"
)

// NextDue returns the earliest instant at which a contact becomes eligible for
// another reminder. A contact that was never reminded is due immediately.
func NextDue(cadence contact.Cadence, lastReminded sql.NullTime, now time.Time) time.Time {
	if !lastReminded.Valid {
		return now
	}
	return cadence.After(lastReminded.Time)
}
