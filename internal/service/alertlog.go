package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"alert_console/internal/models"
	"alert_console/internal/repository"
)

type AlertLogService struct {
	alertRepo repository.AlertRepo
}

func NewAlertLogService(alertRepo repository.AlertRepo) *AlertLogService {
	return &AlertLogService{alertRepo: alertRepo}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
	errInvalidLevel     = errors.New("invalid level: must be WARNING, DANGER or CRITICAL")
	errInvalidType      = errors.New("invalid type: must be gas, fire, smoke, temperature or emergency")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeAndValidateFilter turns the request filter into a repository query.
func normalizeAndValidateFilter(accountID int, f LogFilter) (models.AlertFilter, error) {
	out := models.AlertFilter{
		AccountID:    accountID,
		From:         normalizeToUTC(f.From),
		To:           normalizeToUTC(f.To),
		DeviceID:     strings.TrimSpace(f.DeviceID),
		SerialNumber: strings.TrimSpace(f.SerialNumber),
		Limit:        f.Limit,
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.From.After(out.To) {
		return models.AlertFilter{}, errInvalidTimeRange
	}
	if lv := strings.TrimSpace(f.Level); lv != "" {
		level, ok := models.ParseLevel(lv)
		if !ok {
			return models.AlertFilter{}, errInvalidLevel
		}
		out.MinLevel = level
	}
	if typ := strings.TrimSpace(f.Type); typ != "" {
		t, ok := models.ParseAlertType(typ)
		if !ok {
			return models.AlertFilter{}, errInvalidType
		}
		out.Type = t
	}
	return out, nil
}

// List returns the account's alert log entries, newest first.
func (s *AlertLogService) List(ctx context.Context, accountID int, f LogFilter) ([]models.AlertRecord, error) {
	q, err := normalizeAndValidateFilter(accountID, f)
	if err != nil {
		return nil, err
	}
	recs, err := s.alertRepo.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return recs, nil
}

// IsValidationError reports whether err came from a bad filter.
func IsValidationError(err error) bool {
	return errors.Is(err, errInvalidTimeRange) || errors.Is(err, errInvalidLevel) || errors.Is(err, errInvalidType)
}
