package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"alert_console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrefsRepo struct {
	mu      sync.Mutex
	stored  map[int]models.Preferences
	saveErr error
	loadErr error
}

func (f *fakePrefsRepo) Save(_ context.Context, p models.Preferences) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.stored == nil {
		f.stored = map[int]models.Preferences{}
	}
	f.stored[p.AccountID] = p
	return nil
}

func (f *fakePrefsRepo) Load(_ context.Context, accountID int) (models.Preferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return models.Preferences{}, f.loadErr
	}
	if p, ok := f.stored[accountID]; ok {
		return p, nil
	}
	return models.DefaultPreferences(accountID), nil
}

type recordingListener struct {
	got []models.Preferences
}

func (l *recordingListener) PreferencesChanged(p models.Preferences) { l.got = append(l.got, p) }

func TestPreferenceService_UpdateNotifiesListener(t *testing.T) {
	repo := &fakePrefsRepo{}
	listener := &recordingListener{}
	svc := NewPreferenceService(repo, listener)

	p, err := svc.Update(context.Background(), 4, false, true)
	require.NoError(t, err)
	assert.False(t, p.SoundEnabled)
	assert.True(t, p.NotificationsEnabled)
	assert.False(t, p.UpdatedAt.IsZero())

	got, err := svc.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	require.Len(t, listener.got, 1)
	assert.Equal(t, 4, listener.got[0].AccountID)
}

func TestPreferenceService_GetDefaults(t *testing.T) {
	got, err := NewPreferenceService(&fakePrefsRepo{}, nil).Get(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPreferences(9), got)
}

func TestPreferenceService_SaveErrorSkipsListener(t *testing.T) {
	repo := &fakePrefsRepo{saveErr: errors.New("disk full")}
	listener := &recordingListener{}

	_, err := NewPreferenceService(repo, listener).Update(context.Background(), 1, true, true)
	assert.ErrorIs(t, err, repo.saveErr)
	assert.Empty(t, listener.got)
}
