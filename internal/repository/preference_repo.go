package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"alert_console/internal/models"
)

type PreferenceSQLite struct {
	db *sql.DB
}

func NewPreferenceSQLite(db *sql.DB) *PreferenceSQLite {
	return &PreferenceSQLite{db: db}
}

var _ PreferenceRepo = (*PreferenceSQLite)(nil)

const (
	upsertPreferencesSQL = `
		INSERT INTO preferences (account_id, sound_enabled, notifications_enabled, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			sound_enabled=excluded.sound_enabled,
			notifications_enabled=excluded.notifications_enabled,
			updated_at=excluded.updated_at
	`

	selectPreferencesSQL = `
		SELECT account_id, sound_enabled, notifications_enabled, updated_at
		FROM preferences WHERE account_id=?
	`
)

// Save upserts the row for p.AccountID.
func (r *PreferenceSQLite) Save(ctx context.Context, p models.Preferences) error {
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	} else {
		ts = ts.UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertPreferencesSQL,
		p.AccountID,
		p.SoundEnabled,
		p.NotificationsEnabled,
		ts,
	)
	if err != nil {
		return fmt.Errorf("save preferences for account %d: %w", p.AccountID, err)
	}
	return nil
}

// Load returns the account's preferences, or the defaults if none were saved.
func (r *PreferenceSQLite) Load(ctx context.Context, accountID int) (models.Preferences, error) {
	var p models.Preferences
	err := r.db.QueryRowContext(ctx, selectPreferencesSQL, accountID).Scan(
		&p.AccountID,
		&p.SoundEnabled,
		&p.NotificationsEnabled,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultPreferences(accountID), nil
		}
		return models.Preferences{}, fmt.Errorf("load preferences for account %d: %w", accountID, err)
	}
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}
