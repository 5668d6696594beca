package repository

import (
	"context"
	"database/sql"

	"alert_console/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
}

type AlertRepo interface {
	Append(ctx context.Context, rec models.AlertRecord) error
	List(ctx context.Context, f models.AlertFilter) ([]models.AlertRecord, error)
}

type PreferenceRepo interface {
	Save(ctx context.Context, p models.Preferences) error
	Load(ctx context.Context, accountID int) (models.Preferences, error)
}

type Repository struct {
	AlertRepo      AlertRepo
	PreferenceRepo PreferenceRepo
	Auth           Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		AlertRepo:      NewAlertSQLite(db),
		PreferenceRepo: NewPreferenceSQLite(db),
		Auth:           NewUserRepository(db),
	}
}
