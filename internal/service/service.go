package service

import (
	"context"
	"time"

	"alert_console/internal/config"
	"alert_console/internal/control"
	"alert_console/internal/engine"
	"alert_console/internal/feed"
	"alert_console/internal/logger"
	"alert_console/internal/models"
	"alert_console/internal/repository"

	"go.uber.org/multierr"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Sessions opens per-connection alert sessions.
type Sessions interface {
	Open(ctx context.Context, p SessionParams) (*Session, error)
	Live() int
}

// AlertLog exposes the append-only alert history with filtering access.
type AlertLog interface {
	List(ctx context.Context, accountID int, f LogFilter) ([]models.AlertRecord, error)
}

// Preferences reads and writes the per-account notification switches.
type Preferences interface {
	Get(ctx context.Context, accountID int) (models.Preferences, error)
	Update(ctx context.Context, accountID int, sound, notifications bool) (models.Preferences, error)
}

// Ingest accepts device traffic pushed over HTTP.
type Ingest interface {
	PublishReading(serial, deviceID string, r models.SensorReading) int
	PublishAlarm(serial, deviceID string, a models.DeviceAlarm) int
	PublishEmergency(ctx context.Context, accountID int, g models.GlobalAlert) (models.GlobalAlert, error)
	Evaluate(r models.SensorReading) engine.Evaluation
}

// Simulator plays scripted scenarios. Run stops when ctx is cancelled.
type Simulator interface {
	Start(ctx context.Context, p SimulationParams) error
	Run(ctx context.Context, tick time.Duration)
}

// DeviceControl drives the device management backend.
type DeviceControl interface {
	Controls(deviceID string) models.ControlState
	SetControls(deviceID string, values map[string]any) (models.ControlState, error)
	TogglePower(ctx context.Context, deviceID string) (models.PowerState, error)
	ToggleDoor(ctx context.Context, deviceID string) (models.DoorStatus, error)
	DoorStatus(ctx context.Context, deviceID string) (models.DoorStatus, error)
	Lock(ctx context.Context, deviceID string) (models.DoorStatus, error)
	Unlock(ctx context.Context, deviceID string) (models.DoorStatus, error)
	Share(ctx context.Context, deviceID, permission string) (models.ShareTicket, error)
	SharedUsers(ctx context.Context, deviceID string) ([]models.SharedUser, error)
	RemoveSharedUser(ctx context.Context, deviceID, userID string) error
	Links(ctx context.Context, deviceID string) ([]models.DeviceLink, error)
	CreateLink(ctx context.Context, deviceID string, link models.DeviceLink) (models.DeviceLink, error)
	DeleteLink(ctx context.Context, deviceID, linkID string) error
}

type Service struct {
	Authorization
	Sessions
	AlertLog
	Preferences
	Ingest
	Simulator
	DeviceControl

	closers []func(context.Context) error
}

// Deps is what NewService wires together. Emergencies may be nil, in which
// case emergencies stay on the local broker.
type Deps struct {
	Repos       *repository.Repository
	Broker      *feed.Broker
	Emergencies feed.EmergencyPublisher
	Backend     ControlBackend
	Config      *config.Config
	Log         *logger.Logger
}

func NewService(d Deps) *Service {
	cfg := d.Config
	thresholds := cfg.Alerting.Thresholds

	sessions := NewSessionService(d.Broker, d.Repos.AlertRepo, d.Repos.PreferenceRepo,
		thresholds, DispatcherConfig(cfg.Alerting), cfg.Session, d.Log)
	debounce := control.NewDebouncer(engine.RealClock(), cfg.Backend.DebounceWindow, cfg.Backend.Timeout)
	devices := NewDeviceControlService(d.Backend, debounce, d.Log)

	return &Service{
		Authorization: NewAuthService(d.Repos.Auth, cfg.Auth.SigningKey, cfg.Auth.TokenTTL),
		Sessions:      sessions,
		AlertLog:      NewAlertLogService(d.Repos.AlertRepo),
		Preferences:   NewPreferenceService(d.Repos.PreferenceRepo, sessions),
		Ingest:        NewIngestService(d.Broker, d.Emergencies, thresholds),
		Simulator:     NewSimulatorService(d.Broker, thresholds, cfg.Simulator.Enabled, d.Log),
		DeviceControl: devices,
		closers: []func(context.Context) error{
			sessions.Close,
			func(context.Context) error { devices.Close(); return nil },
		},
	}
}

// Close ends live sessions, then releases background work owned by the
// sub-services. ctx bounds the wait for sessions to finish.
func (s *Service) Close(ctx context.Context) error {
	var errs error
	for _, c := range s.closers {
		errs = multierr.Append(errs, c(ctx))
	}
	return errs
}

// DispatcherConfig maps the alerting section onto engine timings.
func DispatcherConfig(a config.AlertingConfig) engine.DispatcherConfig {
	def := engine.DefaultDispatcherConfig()
	out := engine.DispatcherConfig{
		DangerSound:     a.DangerSound,
		CriticalSound:   a.CriticalSound,
		WarningAutoHide: a.WarningAutoHide,
		MuteOptions:     a.MuteOptions,
	}
	if out.DangerSound <= 0 {
		out.DangerSound = def.DangerSound
	}
	if out.CriticalSound <= 0 {
		out.CriticalSound = def.CriticalSound
	}
	if out.WarningAutoHide <= 0 {
		out.WarningAutoHide = def.WarningAutoHide
	}
	if len(out.MuteOptions) == 0 {
		out.MuteOptions = def.MuteOptions
	}
	return out
}
