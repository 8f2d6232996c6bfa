package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

const settingNotificationsEnabled = "notifications_enabled"

// PostgresSettingsRepository stores owner-level switches as key/value rows.
type PostgresSettingsRepository struct {
	db *sql.DB
}

func NewPostgresSettingsRepository(db *sql.DB) *PostgresSettingsRepository {
	return &PostgresSettingsRepository{db: db}
}

// NotificationsEnabled defaults to true until the owner pauses reminders.
func (r *PostgresSettingsRepository) NotificationsEnabled(ctx context.Context) (bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM owner_settings WHERE key = $1`, settingNotificationsEnabled).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return true, nil
		}
		return false, fmt.Errorf("error reading notification setting: %w", err)
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid stored notification setting %q: %w", raw, err)
	}
	return enabled, nil
}

func (r *PostgresSettingsRepository) SetNotificationsEnabled(ctx context.Context, enabled bool) error {
	query := `INSERT INTO owner_settings (key, value, updated_at)
               VALUES ($1, $2, NOW())
               ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query, settingNotificationsEnabled, strconv.FormatBool(enabled)); err != nil {
		return fmt.Errorf("error saving notification setting: %w", err)
	}
	return nil
}
