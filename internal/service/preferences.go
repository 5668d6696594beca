package service

import (
	"context"
	"fmt"
	"time"

	"alert_console/internal/models"
	"alert_console/internal/repository"
)

// PrefsListener is told about saved preferences so live sessions can follow.
type PrefsListener interface {
	PreferencesChanged(p models.Preferences)
}

type PreferenceService struct {
	repo     repository.PreferenceRepo
	listener PrefsListener
}

func NewPreferenceService(repo repository.PreferenceRepo, listener PrefsListener) *PreferenceService {
	return &PreferenceService{repo: repo, listener: listener}
}

func (s *PreferenceService) Get(ctx context.Context, accountID int) (models.Preferences, error) {
	return s.repo.Load(ctx, accountID)
}

// Update saves the switches and pushes them to the account's open sessions.
func (s *PreferenceService) Update(ctx context.Context, accountID int, sound, notifications bool) (models.Preferences, error) {
	p := models.Preferences{
		AccountID:            accountID,
		SoundEnabled:         sound,
		NotificationsEnabled: notifications,
		UpdatedAt:            time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return models.Preferences{}, fmt.Errorf("update preferences: %w", err)
	}
	if s.listener != nil {
		s.listener.PreferencesChanged(p)
	}
	return p, nil
}
