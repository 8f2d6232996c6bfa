package contact

import (
	"database/sql"
	"time"
)

// Contact is a person the owner wants to be nudged about.
type Contact struct {
	ID           string // UUID, stable for the contact's lifetime
	Name         string
	Relationship Relationship
	Cadence      Cadence
	LastReminded sql.NullTime // Absent until the first admitted reminder
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NeverReminded reports whether the contact has no reminder history yet.
func (c *Contact) NeverReminded() bool {
	return !c.LastReminded.Valid
}

// AdvanceLastReminded moves LastReminded forward to at.
// It returns false and leaves the contact untouched if at would move it backward.
func (c *Contact) AdvanceLastReminded(at time.Time) bool {
	if c.LastReminded.Valid && at.Before(c.LastReminded.Time) {
		return false
	}
	c.LastReminded = sql.NullTime{Time: at, Valid: true}
	return true
}
