package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"alert_console/internal/control"
	"alert_console/internal/logger"
	"alert_console/internal/models"

	"github.com/go-playground/validator/v10"
)

// ControlBackend is the device management API. *control.Client implements it.
type ControlBackend interface {
	UpdateControl(ctx context.Context, deviceID string, values map[string]any) error
	TogglePower(ctx context.Context, deviceID string) (models.PowerState, error)
	ToggleDoor(ctx context.Context, deviceID string) (models.DoorStatus, error)
	DoorStatus(ctx context.Context, deviceID string) (models.DoorStatus, error)
	Lock(ctx context.Context, deviceID string) (models.DoorStatus, error)
	Unlock(ctx context.Context, deviceID string) (models.DoorStatus, error)
	CreateShareTicket(ctx context.Context, deviceID, permission string) (models.ShareTicket, error)
	ListSharedUsers(ctx context.Context, deviceID string) ([]models.SharedUser, error)
	RemoveSharedUser(ctx context.Context, deviceID, userID string) error
	ListLinks(ctx context.Context, deviceID string) ([]models.DeviceLink, error)
	CreateLink(ctx context.Context, deviceID string, link models.DeviceLink) (models.DeviceLink, error)
	DeleteLink(ctx context.Context, deviceID, linkID string) error
}

var _ ControlBackend = (*control.Client)(nil)

var (
	ErrEmptyControls     = errors.New("at least one control value is required")
	ErrInvalidPermission = errors.New("permission must be read, control or admin")
	ErrInvalidLink       = errors.New("invalid link")
)

type controlEntry struct {
	local        map[string]any
	committed    map[string]any
	committedSeq uint64
	pending      bool
	lastErr      string
	updatedAt    time.Time
}

// DeviceControlService keeps an optimistic copy of each device's controls.
// Changes show up locally at once and reach the backend through a debouncer;
// a failed push puts the last confirmed values back.
type DeviceControlService struct {
	backend  ControlBackend
	debounce *control.Debouncer
	validate *validator.Validate
	log      *logger.Logger

	mu      sync.Mutex
	devices map[string]*controlEntry
}

func NewDeviceControlService(backend ControlBackend, debounce *control.Debouncer, log *logger.Logger) *DeviceControlService {
	return &DeviceControlService{
		backend:  backend,
		debounce: debounce,
		validate: validator.New(),
		log:      log,
		devices:  make(map[string]*controlEntry),
	}
}

func (s *DeviceControlService) entry(deviceID string) *controlEntry {
	e, ok := s.devices[deviceID]
	if !ok {
		e = &controlEntry{local: map[string]any{}, committed: map[string]any{}}
		s.devices[deviceID] = e
	}
	return e
}

func (e *controlEntry) view(deviceID string) models.ControlState {
	return models.ControlState{
		DeviceID:  deviceID,
		Values:    maps.Clone(e.local),
		Pending:   e.pending,
		LastError: e.lastErr,
		UpdatedAt: e.updatedAt,
	}
}

// Controls returns the optimistic view of a device.
func (s *DeviceControlService) Controls(deviceID string) models.ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry(deviceID).view(deviceID)
}

// SetControls merges values into the local view and schedules a push.
func (s *DeviceControlService) SetControls(deviceID string, values map[string]any) (models.ControlState, error) {
	if len(values) == 0 {
		return models.ControlState{}, ErrEmptyControls
	}

	s.mu.Lock()
	e := s.entry(deviceID)
	maps.Copy(e.local, values)
	e.pending = true
	e.lastErr = ""
	e.updatedAt = time.Now().UTC()
	snapshot := maps.Clone(e.local)
	view := e.view(deviceID)
	s.mu.Unlock()

	s.debounce.Submit(deviceID, func(ctx context.Context) error {
		return s.backend.UpdateControl(ctx, deviceID, snapshot)
	}, func(r control.Result) {
		s.settle(deviceID, snapshot, r)
	})
	return view, nil
}

func (s *DeviceControlService) settle(deviceID string, sent map[string]any, r control.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(deviceID)

	if r.Err == nil {
		if r.Seq > e.committedSeq {
			e.committed = sent
			e.committedSeq = r.Seq
		}
		if r.Latest {
			e.pending = false
		}
		return
	}

	if s.log != nil {
		s.log.Warnw("device_control_update_failed", "device_id", deviceID, "err", r.Err, "latest", r.Latest)
	}
	if !r.Latest {
		return
	}
	e.local = maps.Clone(e.committed)
	e.pending = false
	e.lastErr = r.Err.Error()
	e.updatedAt = time.Now().UTC()
}

// TogglePower flips the power switch and records the result as confirmed.
func (s *DeviceControlService) TogglePower(ctx context.Context, deviceID string) (models.PowerState, error) {
	st, err := s.backend.TogglePower(ctx, deviceID)
	if err != nil {
		return models.PowerState{}, err
	}
	s.mu.Lock()
	e := s.entry(deviceID)
	e.local["power"] = st.On
	e.committed["power"] = st.On
	e.updatedAt = time.Now().UTC()
	s.mu.Unlock()
	return st, nil
}

func (s *DeviceControlService) ToggleDoor(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	return s.backend.ToggleDoor(ctx, deviceID)
}

func (s *DeviceControlService) DoorStatus(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	return s.backend.DoorStatus(ctx, deviceID)
}

func (s *DeviceControlService) Lock(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	return s.backend.Lock(ctx, deviceID)
}

func (s *DeviceControlService) Unlock(ctx context.Context, deviceID string) (models.DoorStatus, error) {
	return s.backend.Unlock(ctx, deviceID)
}

func (s *DeviceControlService) Share(ctx context.Context, deviceID, permission string) (models.ShareTicket, error) {
	permission = strings.ToLower(strings.TrimSpace(permission))
	if permission == "" {
		permission = "read"
	}
	switch permission {
	case "read", "control", "admin":
	default:
		return models.ShareTicket{}, ErrInvalidPermission
	}
	return s.backend.CreateShareTicket(ctx, deviceID, permission)
}

func (s *DeviceControlService) SharedUsers(ctx context.Context, deviceID string) ([]models.SharedUser, error) {
	return s.backend.ListSharedUsers(ctx, deviceID)
}

func (s *DeviceControlService) RemoveSharedUser(ctx context.Context, deviceID, userID string) error {
	return s.backend.RemoveSharedUser(ctx, deviceID, userID)
}

func (s *DeviceControlService) Links(ctx context.Context, deviceID string) ([]models.DeviceLink, error) {
	return s.backend.ListLinks(ctx, deviceID)
}

func (s *DeviceControlService) CreateLink(ctx context.Context, deviceID string, link models.DeviceLink) (models.DeviceLink, error) {
	if err := s.validate.Struct(link); err != nil {
		return models.DeviceLink{}, fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	return s.backend.CreateLink(ctx, deviceID, link)
}

func (s *DeviceControlService) DeleteLink(ctx context.Context, deviceID, linkID string) error {
	return s.backend.DeleteLink(ctx, deviceID, linkID)
}

// Close drops pushes still waiting out their window.
func (s *DeviceControlService) Close() {
	s.debounce.Close()
}
