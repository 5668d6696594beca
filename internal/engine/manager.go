package engine

import (
	"errors"
	"fmt"

	"alert_console/internal/models"

	"github.com/google/uuid"
)

// HistoryLimit bounds the alert history kept per session.
const HistoryLimit = 10

var errTestLevel = errors.New("test alert level must be WARNING, DANGER or CRITICAL")

// DeviceIdentity names the device a Manager watches.
type DeviceIdentity struct {
	DeviceID     string `json:"device_id,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	DeviceName   string `json:"device_name,omitempty"`
}

// TransitionKind describes what a Manager call did to the current alert.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionTriggered
	TransitionUpgraded
	TransitionOverridden
	TransitionAcknowledged
	TransitionCleared
)

// Record maps the transition onto its alert log name; empty for TransitionNone.
func (k TransitionKind) Record() string {
	switch k {
	case TransitionTriggered:
		return models.RecordTriggered
	case TransitionUpgraded:
		return models.RecordUpgraded
	case TransitionOverridden:
		return models.RecordOverridden
	case TransitionAcknowledged:
		return models.RecordAcknowledged
	case TransitionCleared:
		return models.RecordCleared
	default:
		return ""
	}
}

// Transition is the outcome of one Manager input.
type Transition struct {
	Kind     TransitionKind
	Alert    models.Alert
	Previous *models.Alert
}

// Changed reports whether the input altered alert state.
func (t Transition) Changed() bool { return t.Kind != TransitionNone }

// Notifier receives the side-effect hooks of alert lifecycle changes.
type Notifier interface {
	// Announce is called once for every alert that becomes current.
	Announce(alert models.Alert, timers *TimerSet)
	// Silence is called when the current alert is acknowledged.
	Silence(alert models.Alert, timers *TimerSet)
	// Retract is called when the current alert is replaced or cleared.
	Retract(alert models.Alert, reason string)
}

type nopNotifier struct{}

func (nopNotifier) Announce(models.Alert, *TimerSet) {}
func (nopNotifier) Silence(models.Alert, *TimerSet)  {}
func (nopNotifier) Retract(models.Alert, string)     {}

// Snapshot is a read-only copy of a Manager's state.
type Snapshot struct {
	Device     DeviceIdentity    `json:"device"`
	Level      models.AlertLevel `json:"level"`
	IsAlerting bool              `json:"is_alerting"`
	Current    *models.Alert     `json:"current,omitempty"`
	History    []models.Alert    `json:"history"`
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock sets the time source used for timestamps and alert timers.
func WithClock(c Clock) ManagerOption { return func(m *Manager) { m.clock = c } }

// WithNotifier sets the side-effect receiver.
func WithNotifier(n Notifier) ManagerOption { return func(m *Manager) { m.notifier = n } }

// WithIDGenerator replaces the alert id source.
func WithIDGenerator(f func() string) ManagerOption { return func(m *Manager) { m.newID = f } }

// Manager tracks the current alert and recent history of one device.
// It holds at most one current alert; readings only replace it with a
// strictly more severe one. Manager is not safe for concurrent use.
type Manager struct {
	device     DeviceIdentity
	thresholds models.Thresholds
	clock      Clock
	notifier   Notifier
	newID      func() string

	current *models.Alert
	timers  *TimerSet
	history []models.Alert
}

// NewManager returns a Manager in the NORMAL state.
func NewManager(device DeviceIdentity, thresholds models.Thresholds, opts ...ManagerOption) *Manager {
	m := &Manager{
		device:     device,
		thresholds: thresholds,
		clock:      RealClock(),
		notifier:   nopNotifier{},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// HandleReading evaluates a sensor reading against the current alert.
func (m *Manager) HandleReading(r models.SensorReading, source models.AlertSource) Transition {
	if source == "" {
		source = models.SourceSensor
	}
	level := GetAlertLevel(r, m.thresholds)
	typ, ok := GetAlertType(r, m.thresholds)

	if level != models.LevelNormal && ok {
		if m.current != nil && !level.Exceeds(m.current.Level) {
			return Transition{}
		}
		kind := TransitionTriggered
		if m.current != nil {
			kind = TransitionUpgraded
		}
		return m.activate(kind, m.newAlert(typ, level, r, source, m.device, ""))
	}

	if level == models.LevelNormal && m.current != nil {
		return m.clearCurrent("normal")
	}
	return Transition{}
}

// HandleDeviceAlarm applies an alarm raised by the device itself. Device alarms
// are authoritative and replace the current alert regardless of severity.
// A NORMAL level is the device reporting all-clear.
func (m *Manager) HandleDeviceAlarm(a models.DeviceAlarm) Transition {
	level, ok := models.ParseLevel(a.Level)
	if !ok {
		level = models.LevelDanger
	}
	if level == models.LevelNormal {
		if m.current == nil {
			return Transition{}
		}
		return m.clearCurrent("device_normal")
	}
	typ, ok := models.ParseAlertType(a.Type)
	if !ok {
		typ = models.TypeEmergency
	}
	// A resent id updates the current alert in place; an id that only lives
	// in history belongs to a finished alert and is not reused.
	id := a.AlertID
	if id != "" && (m.current == nil || m.current.ID != id) && m.seen(id) {
		id = ""
	}
	alert := m.newAlert(typ, level, a.Data, models.SourceDevice, m.device, id)
	if a.Message != "" {
		alert.Message = a.Message
	}
	return m.activate(m.overrideKind(), alert)
}

// HandleGlobalAlert applies an entry of the account-wide emergency feed. Only
// entries addressed to this device, or generic fire/smoke alerts, are taken.
// They are always CRITICAL and are ignored if their id was already seen.
func (m *Manager) HandleGlobalAlert(g models.GlobalAlert) Transition {
	typ, known := models.ParseAlertType(g.Type)
	addressed := (g.SerialNumber != "" && g.SerialNumber == m.device.SerialNumber) ||
		(g.DeviceID != "" && g.DeviceID == m.device.DeviceID)
	generic := known && (typ == models.TypeFire || typ == models.TypeSmoke)
	if !addressed && !generic {
		return Transition{}
	}
	if g.ID != "" && m.seen(g.ID) {
		return Transition{}
	}
	if !known {
		typ = models.TypeEmergency
	}

	device := m.device
	if g.SerialNumber != "" {
		device.SerialNumber = g.SerialNumber
	}
	if g.DeviceID != "" {
		device.DeviceID = g.DeviceID
	}
	if g.DeviceName != "" {
		device.DeviceName = g.DeviceName
	}
	alert := m.newAlert(typ, models.LevelCritical, g.Data, models.SourceGlobal, device, g.ID)
	if g.Message != "" {
		alert.Message = g.Message
	}
	return m.activate(m.overrideKind(), alert)
}

// TriggerTest raises a manual test alert at level, replacing the current one.
func (m *Manager) TriggerTest(level models.AlertLevel) (Transition, error) {
	if !level.Valid() || level == models.LevelNormal {
		return Transition{}, errTestLevel
	}
	alert := m.newAlert(models.TypeEmergency, level, models.SensorReading{}, models.SourceManualTest, m.device, "")
	alert.Message = fmt.Sprintf("test alert (%s)", level)
	return m.activate(m.overrideKind(), alert), nil
}

// Acknowledge marks the alert with id as acknowledged. It silences the current
// alert but keeps it active.
func (m *Manager) Acknowledge(id string) Transition {
	if id == "" {
		return Transition{}
	}
	changed := false
	for i := range m.history {
		if m.history[i].ID == id && !m.history[i].Acknowledged {
			m.history[i].Acknowledged = true
			changed = true
		}
	}
	if m.current != nil && m.current.ID == id && !m.current.Acknowledged {
		m.current.Acknowledged = true
		m.notifier.Silence(*m.current, m.timers)
		return Transition{Kind: TransitionAcknowledged, Alert: *m.current}
	}
	if changed {
		for _, h := range m.history {
			if h.ID == id {
				return Transition{Kind: TransitionAcknowledged, Alert: h}
			}
		}
	}
	return Transition{}
}

// Clear drops the current alert. A non-empty id that does not match the
// current alert is a no-op.
func (m *Manager) Clear(id string) Transition {
	if m.current == nil {
		return Transition{}
	}
	if id != "" && m.current.ID != id {
		return Transition{}
	}
	return m.clearCurrent("cleared")
}

// Current returns the active alert, if any.
func (m *Manager) Current() (models.Alert, bool) {
	if m.current == nil {
		return models.Alert{}, false
	}
	return *m.current, true
}

// History returns past alerts, most recent first.
func (m *Manager) History() []models.Alert {
	out := make([]models.Alert, len(m.history))
	copy(out, m.history)
	return out
}

// IsAlerting reports whether an alert is active.
func (m *Manager) IsAlerting() bool { return m.current != nil }

// Level is the level of the active alert, or NORMAL.
func (m *Manager) Level() models.AlertLevel {
	if m.current == nil {
		return models.LevelNormal
	}
	return m.current.Level
}

// Device returns the identity the Manager was built with.
func (m *Manager) Device() DeviceIdentity { return m.device }

// Snapshot copies the full state.
func (m *Manager) Snapshot() Snapshot {
	s := Snapshot{
		Device:     m.device,
		Level:      m.Level(),
		IsAlerting: m.IsAlerting(),
		History:    m.History(),
	}
	if cur, ok := m.Current(); ok {
		s.Current = &cur
	}
	return s
}

// Close stops the timers of the current alert. The Manager keeps its state.
func (m *Manager) Close() {
	if m.timers != nil {
		m.timers.StopAll()
	}
}

func (m *Manager) overrideKind() TransitionKind {
	if m.current == nil {
		return TransitionTriggered
	}
	return TransitionOverridden
}

func (m *Manager) activate(kind TransitionKind, alert models.Alert) Transition {
	prev := m.current
	if prev != nil {
		m.timers.StopAll()
		m.notifier.Retract(*prev, "replaced")
	}
	m.current = &alert
	if prev != nil && prev.ID == alert.ID && len(m.history) > 0 && m.history[0].ID == alert.ID {
		m.history[0] = alert
	} else {
		m.pushHistory(alert)
	}
	m.timers = NewTimerSet(m.clock)
	m.notifier.Announce(alert, m.timers)
	return Transition{Kind: kind, Alert: alert, Previous: prev}
}

func (m *Manager) clearCurrent(reason string) Transition {
	prev := *m.current
	m.timers.StopAll()
	m.timers = nil
	m.current = nil
	m.notifier.Retract(prev, reason)
	return Transition{Kind: TransitionCleared, Alert: prev, Previous: &prev}
}

func (m *Manager) pushHistory(a models.Alert) {
	m.history = append([]models.Alert{a}, m.history...)
	if len(m.history) > HistoryLimit {
		m.history = m.history[:HistoryLimit]
	}
}

func (m *Manager) seen(id string) bool {
	if m.current != nil && m.current.ID == id {
		return true
	}
	for _, h := range m.history {
		if h.ID == id {
			return true
		}
	}
	return false
}

func (m *Manager) newAlert(typ models.AlertType, level models.AlertLevel, r models.SensorReading,
	source models.AlertSource, device DeviceIdentity, id string) models.Alert {
	if id == "" {
		id = m.newID()
	}
	return models.Alert{
		ID:           id,
		Type:         typ,
		Level:        level,
		Data:         r,
		Source:       source,
		DeviceID:     device.DeviceID,
		SerialNumber: device.SerialNumber,
		DeviceName:   device.DeviceName,
		Message:      describe(typ, level, r),
		Timestamp:    m.clock.Now().UTC(),
	}
}

func describe(typ models.AlertType, level models.AlertLevel, r models.SensorReading) string {
	switch typ {
	case models.TypeGas:
		return fmt.Sprintf("%s: gas level %.0f ppm", level, r.GasPPM())
	case models.TypeFire:
		return fmt.Sprintf("%s: possible fire, temperature %.1f°C", level, r.TempC())
	case models.TypeSmoke:
		return fmt.Sprintf("%s: smoke suspected (gas %.0f ppm, temperature %.1f°C)", level, r.GasPPM(), r.TempC())
	default:
		return fmt.Sprintf("%s: %s alert", level, typ)
	}
}
