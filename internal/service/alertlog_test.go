package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alert_console/internal/models"
)

// fakeAlertRepo is a minimal stub that satisfies repository.AlertRepo.
type fakeAlertRepo struct {
	mu sync.Mutex

	// captured inputs
	gotFilter models.AlertFilter
	appended  []models.AlertRecord

	// configured outputs
	records   []models.AlertRecord
	err       error
	appendErr error

	calls int
}

func (f *fakeAlertRepo) List(_ context.Context, q models.AlertFilter) ([]models.AlertRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFilter = q
	return f.records, f.err
}

func (f *fakeAlertRepo) Append(_ context.Context, rec models.AlertRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, rec)
	return f.appendErr
}

func (f *fakeAlertRepo) transitions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, r := range f.appended {
		out = append(out, r.Transition)
	}
	return out
}

func mustTimeIn(loc *time.Location, y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   time.Time
		want func(time.Time) bool
	}{
		{
			name: "zero time remains zero",
			in:   time.Time{},
			want: func(out time.Time) bool { return out.IsZero() },
		},
		{
			name: "non-UTC converted to UTC preserving instant",
			in:   mustTimeIn(time.FixedZone("UTC+3", 3*3600), 2025, time.August, 1, 12, 34, 56),
			want: func(out time.Time) bool {
				exp := time.Date(2025, time.August, 1, 9, 34, 56, 0, time.UTC)
				return out.Location() == time.UTC && out.Equal(exp)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeToUTC(tc.in)
			if !tc.want(got) {
				t.Fatalf("unexpected normalizeToUTC result: %v (loc=%v)", got, got.Location())
			}
		})
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	fromLocal := mustTimeIn(time.FixedZone("UTC+2", 2*3600), 2025, time.September, 10, 10, 0, 0)
	toUTC := time.Date(2025, time.September, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		in        LogFilter
		wantFrom  time.Time
		wantLevel models.AlertLevel
		wantType  models.AlertType
		wantErr   error
	}{
		{
			name: "all empty ok",
			in:   LogFilter{},
		},
		{
			name: "from after to",
			in: LogFilter{
				From: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC),
			},
			wantErr: errInvalidTimeRange,
		},
		{
			name:      "normalize tz, level and type",
			in:        LogFilter{From: fromLocal, To: toUTC, Level: " danger ", Type: "GAS"},
			wantFrom:  time.Date(2025, time.September, 10, 8, 0, 0, 0, time.UTC),
			wantLevel: models.LevelDanger,
			wantType:  models.TypeGas,
		},
		{
			name:    "unknown level",
			in:      LogFilter{Level: "loud"},
			wantErr: errInvalidLevel,
		},
		{
			name:    "unknown type",
			in:      LogFilter{Type: "flood"},
			wantErr: errInvalidType,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := normalizeAndValidateFilter(7, tc.in)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v; got %v", tc.wantErr, err)
			}
			if err != nil {
				return
			}
			if got.AccountID != 7 {
				t.Fatalf("account id: got %d", got.AccountID)
			}
			if !tc.wantFrom.IsZero() && !got.From.Equal(tc.wantFrom) {
				t.Fatalf("from: got %v; want %v", got.From, tc.wantFrom)
			}
			if got.MinLevel != tc.wantLevel {
				t.Fatalf("level: got %v; want %v", got.MinLevel, tc.wantLevel)
			}
			if got.Type != tc.wantType {
				t.Fatalf("type: got %q; want %q", got.Type, tc.wantType)
			}
		})
	}
}

func TestAlertLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &fakeAlertRepo{records: []models.AlertRecord{{RecordID: "1"}}}
	svc := NewAlertLogService(frepo)

	fromLocal := mustTimeIn(time.FixedZone("UTC+5", 5*3600), 2025, time.October, 1, 10, 0, 0)
	out, err := svc.List(context.Background(), 3, LogFilter{
		From:         fromLocal,
		SerialNumber: "  SN-1 ",
		Limit:        20,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].RecordID != "1" {
		t.Fatalf("unexpected records: %+v", out)
	}
	if frepo.calls != 1 {
		t.Fatalf("repo List should be called once, got %d", frepo.calls)
	}
	q := frepo.gotFilter
	if !q.From.Equal(time.Date(2025, time.October, 1, 5, 0, 0, 0, time.UTC)) || q.SerialNumber != "SN-1" ||
		q.AccountID != 3 || q.Limit != 20 {
		t.Fatalf("unexpected repo filter: %+v", q)
	}
}

func TestAlertLogService_List_ValidationError(t *testing.T) {
	t.Parallel()

	frepo := &fakeAlertRepo{}
	_, err := NewAlertLogService(frepo).List(context.Background(), 1, LogFilter{Level: "nope"})
	if !IsValidationError(err) {
		t.Fatalf("expected validation error; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestAlertLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &fakeAlertRepo{err: errors.New("db down")}
	_, err := NewAlertLogService(frepo).List(context.Background(), 1, LogFilter{})
	if !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
	if IsValidationError(err) {
		t.Fatalf("repo error must not look like a validation error")
	}
}
