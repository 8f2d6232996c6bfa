package contact

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving Contact entities.
type Repository interface {
	Create(ctx context.Context, c *Contact) error
	GetByID(ctx context.Context, id string) (*Contact, error)
	Update(ctx context.Context, c *Contact) error // Name, Relationship and Cadence only
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*Contact, error)
	// MarkReminded advances last_reminded_at to at; it never moves it backward.
	MarkReminded(ctx context.Context, id string, at time.Time) error
}
