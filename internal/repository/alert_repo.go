package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"alert_console/internal/models"

	"github.com/google/uuid"
)

type AlertSQLite struct {
	db *sql.DB
}

func NewAlertSQLite(db *sql.DB) *AlertSQLite { return &AlertSQLite{db: db} }

var _ AlertRepo = (*AlertSQLite)(nil)

const (
	insertAlertRecordSQL = `
		INSERT INTO alert_log (id, account_id, alert_id, transition, type, level, level_rank, source, device_id, serial_number, data, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	selectAlertRecordsSQL = `SELECT id, account_id, alert_id, transition, type, level, source, device_id, serial_number, data, occurred_at FROM alert_log`

	defaultListLimit = 200
	maxListLimit     = 1000
)

// Append inserts a log entry. RecordID and OccurredAt are filled in when empty.
func (r *AlertSQLite) Append(ctx context.Context, rec models.AlertRecord) error {
	if rec.RecordID == "" {
		rec.RecordID = uuid.NewString()
	}
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	} else {
		rec.OccurredAt = rec.OccurredAt.UTC()
	}

	data, err := json.Marshal(rec.Data)
	if err != nil {
		return fmt.Errorf("encode alert data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, insertAlertRecordSQL,
		rec.RecordID,
		rec.AccountID,
		rec.AlertID,
		strings.ToUpper(strings.TrimSpace(rec.Transition)),
		string(rec.Type),
		rec.Level.String(),
		rec.Level.Rank(),
		string(rec.Source),
		rec.DeviceID,
		rec.SerialNumber,
		string(data),
		rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert record %s: %w", rec.AlertID, err)
	}
	return nil
}

// List returns the newest entries matching f, newest first.
func (r *AlertSQLite) List(ctx context.Context, f models.AlertFilter) ([]models.AlertRecord, error) {
	var (
		conds []string
		args  []any
	)

	if f.AccountID != 0 {
		conds = append(conds, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.From.UTC())
	}
	if !f.To.IsZero() {
		conds = append(conds, "occurred_at <= ?")
		args = append(args, f.To.UTC())
	}
	if f.MinLevel > models.LevelNormal {
		conds = append(conds, "level_rank >= ?")
		args = append(args, f.MinLevel.Rank())
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.DeviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, f.DeviceID)
	}
	if f.SerialNumber != "" {
		conds = append(conds, "serial_number = ?")
		args = append(args, f.SerialNumber)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := selectAlertRecordsSQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY occurred_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert log: %w", err)
	}
	defer rows.Close()

	out := make([]models.AlertRecord, 0, 64)
	for rows.Next() {
		var (
			rec                models.AlertRecord
			typ, level, source string
			device, sn, data   sql.NullString
		)
		if err := rows.Scan(&rec.RecordID, &rec.AccountID, &rec.AlertID, &rec.Transition,
			&typ, &level, &source, &device, &sn, &data, &rec.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan alert record: %w", err)
		}
		rec.Type = models.AlertType(typ)
		rec.Source = models.AlertSource(source)
		rec.DeviceID = device.String
		rec.SerialNumber = sn.String
		rec.OccurredAt = rec.OccurredAt.UTC()
		if lv, ok := models.ParseLevel(level); ok {
			rec.Level = lv
		}
		if data.Valid && data.String != "" {
			// a malformed blob leaves Data empty rather than failing the page
			_ = json.Unmarshal([]byte(data.String), &rec.Data)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
