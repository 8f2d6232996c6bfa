package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lowkey_bot/internal/domain/contact"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Custom errors
var ErrContactNotFound = fmt.Errorf("contact not found")
var ErrDuplicateContactID = fmt.Errorf("contact with this ID already exists")

const uniqueViolation = "23505"

const contactColumns = `id, name, relationship, cadence, last_reminded_at, created_at, updated_at`

type PostgresContactRepository struct {
	db *sql.DB
}

func NewPostgresContactRepository(db *sql.DB) *PostgresContactRepository {
	return &PostgresContactRepository{db: db}
}

// Create inserts c, assigning a fresh UUID when c.ID is empty.
func (r *PostgresContactRepository) Create(ctx context.Context, c *contact.Contact) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	query := `INSERT INTO contacts (id, name, relationship, cadence, last_reminded_at)
               VALUES ($1, $2, $3, $4, $5)
               RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, c.ID, c.Name, c.Relationship, c.Cadence, c.LastReminded).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrDuplicateContactID
		}
		return fmt.Errorf("error creating contact: %w", err)
	}
	return nil
}

func (r *PostgresContactRepository) GetByID(ctx context.Context, id string) (*contact.Contact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrContactNotFound // Not a UUID, so it cannot be stored
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	c, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("error getting contact by ID: %w", err)
	}
	return c, nil
}

// Update persists name, relationship and cadence. last_reminded_at is only
// ever moved by MarkReminded.
func (r *PostgresContactRepository) Update(ctx context.Context, c *contact.Contact) error {
	query := `UPDATE contacts
               SET name = $1, relationship = $2, cadence = $3, updated_at = NOW()
               WHERE id = $4
               RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, c.Name, c.Relationship, c.Cadence, c.ID).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrContactNotFound
		}
		return fmt.Errorf("error updating contact: %w", err)
	}
	return nil
}

func (r *PostgresContactRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrContactNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking deleted contact: %w", err)
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}

// ListAll returns contacts oldest first, so allocation ties favour long-standing contacts.
func (r *PostgresContactRepository) ListAll(ctx context.Context) ([]*contact.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]*contact.Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}
	return contacts, nil
}

func (r *PostgresContactRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE contacts
               SET last_reminded_at = GREATEST(COALESCE(last_reminded_at, $2), $2)
               WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("error marking contact reminded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking reminded contact: %w", err)
	}
	if n == 0 {
		return ErrContactNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*contact.Contact, error) {
	c := &contact.Contact{}
	if err := row.Scan(&c.ID, &c.Name, &c.Relationship, &c.Cadence, &c.LastReminded, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return c, nil
}
