package engine

import (
	"errors"
	"time"

	"alert_console/internal/logger"
	"alert_console/internal/models"
)

// EffectKind names a side effect the client has to render.
type EffectKind string

const (
	EffectSoundStart  EffectKind = "sound_start"
	EffectSoundStop   EffectKind = "sound_stop"
	EffectNotify      EffectKind = "notify"
	EffectOverlayShow EffectKind = "overlay_show"
	EffectOverlayHide EffectKind = "overlay_hide"
	EffectMuteChanged EffectKind = "mute_changed"
)

// Effect is one instruction for the client.
type Effect struct {
	Kind                EffectKind        `json:"kind"`
	AlertID             string            `json:"alert_id,omitempty"`
	Level               models.AlertLevel `json:"level,omitempty"`
	Loop                bool              `json:"loop,omitempty"`
	DurationMS          int64             `json:"duration_ms,omitempty"`
	Title               string            `json:"title,omitempty"`
	Body                string            `json:"body,omitempty"`
	RequireInteraction  bool              `json:"require_interaction,omitempty"`
	AutoHideMS          int64             `json:"auto_hide_ms,omitempty"`
	Closable            bool              `json:"closable,omitempty"`
	OutsideClickDismiss bool              `json:"outside_click_dismiss,omitempty"`
	Muted               bool              `json:"muted,omitempty"`
	Until               *time.Time        `json:"until,omitempty"`
	Reason              string            `json:"reason,omitempty"`
}

// Sink delivers effects to whoever renders them.
type Sink interface {
	Emit(Effect) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Effect) error

func (f SinkFunc) Emit(e Effect) error { return f(e) }

// Permission mirrors the system notification permission of the client.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

// ParsePermission maps unknown values to PermissionDefault.
func ParsePermission(s string) Permission {
	switch p := Permission(s); p {
	case PermissionGranted, PermissionDenied:
		return p
	default:
		return PermissionDefault
	}
}

var (
	ErrInvalidMuteDuration = errors.New("mute duration must be one of the offered options")
	ErrOverlayLocked       = errors.New("critical overlay can only be closed by acknowledging the alert")
	ErrNoOverlay           = errors.New("no overlay shown for this alert")
)

// Timer names used inside an alert's TimerSet.
const (
	timerSoundStop   = "sound_stop"
	timerOverlayHide = "overlay_hide"
)

// DispatcherConfig holds the notification timings.
type DispatcherConfig struct {
	DangerSound     time.Duration
	CriticalSound   time.Duration
	WarningAutoHide time.Duration
	MuteOptions     []time.Duration
}

// DefaultDispatcherConfig returns the stock timings.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		DangerSound:     30 * time.Second,
		CriticalSound:   60 * time.Second,
		WarningAutoHide: 10 * time.Second,
		MuteOptions:     []time.Duration{5 * time.Minute, 15 * time.Minute, 30 * time.Minute},
	}
}

// NotifyPrefs are the user switches the Dispatcher honours.
type NotifyPrefs struct {
	SoundEnabled         bool
	NotificationsEnabled bool
	Permission           Permission
}

// Dispatcher turns alert lifecycle changes into client effects: sound,
// system notification and overlay. It implements Notifier.
// Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	sink  Sink
	clock Clock
	cfg   DispatcherConfig
	log   *logger.Logger
	prefs NotifyPrefs

	soundAlertID string
	overlayID    string
	overlayLevel models.AlertLevel
	lastNotified string

	mutedUntil time.Time
	muteTimer  Timer
	muteGen    uint64
}

// NewDispatcher builds a Dispatcher. log may be nil.
func NewDispatcher(sink Sink, clock Clock, cfg DispatcherConfig, prefs NotifyPrefs, log *logger.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, clock: clock, cfg: cfg, prefs: prefs, log: log}
}

var _ Notifier = (*Dispatcher)(nil)

// Announce shows the overlay, fires the system notification and starts the
// alarm sound for a newly current alert.
func (d *Dispatcher) Announce(alert models.Alert, timers *TimerSet) {
	d.showOverlay(alert, timers)
	d.notify(alert)
	d.startSound(alert, timers)
}

// Silence stops sound and overlay of an acknowledged alert.
func (d *Dispatcher) Silence(alert models.Alert, timers *TimerSet) {
	if timers != nil {
		timers.Cancel(timerSoundStop)
		timers.Cancel(timerOverlayHide)
	}
	d.stopSound(alert.ID, "acknowledged")
	d.hideOverlay(alert.ID, "acknowledged")
}

// Retract withdraws every effect of an alert that left the current slot.
func (d *Dispatcher) Retract(alert models.Alert, reason string) {
	d.stopSound(alert.ID, reason)
	d.hideOverlay(alert.ID, reason)
}

// CloseOverlay handles an explicit user close of the overlay.
func (d *Dispatcher) CloseOverlay(alertID string) error {
	if d.overlayID == "" || d.overlayID != alertID {
		return ErrNoOverlay
	}
	if d.overlayLevel == models.LevelCritical {
		return ErrOverlayLocked
	}
	d.hideOverlay(alertID, "closed")
	return nil
}

// Mute silences sound for dur, which must be one of cfg.MuteOptions.
// Sound comes back by itself when the mute expires.
func (d *Dispatcher) Mute(dur time.Duration) error {
	if !d.muteAllowed(dur) {
		return ErrInvalidMuteDuration
	}
	d.cancelMuteTimer()
	d.mutedUntil = d.clock.Now().Add(dur)
	d.muteGen++
	gen := d.muteGen
	d.muteTimer = d.clock.AfterFunc(dur, func() {
		if gen != d.muteGen {
			return
		}
		d.unmute("expired")
	})
	if d.soundAlertID != "" {
		d.stopSound(d.soundAlertID, "muted")
	}
	until := d.mutedUntil
	d.emit(Effect{Kind: EffectMuteChanged, Muted: true, Until: &until, DurationMS: dur.Milliseconds()})
	return nil
}

// Unmute ends a temporary mute early.
func (d *Dispatcher) Unmute() {
	if d.mutedUntil.IsZero() {
		return
	}
	d.unmute("manual")
}

// Muted reports whether a temporary mute is in effect.
func (d *Dispatcher) Muted() bool {
	return !d.mutedUntil.IsZero() && d.clock.Now().Before(d.mutedUntil)
}

// MutedUntil returns the end of the current mute, zero when not muted.
func (d *Dispatcher) MutedUntil() time.Time { return d.mutedUntil }

// SetPrefs replaces the user switches. Turning sound off stops a playing alarm.
func (d *Dispatcher) SetPrefs(p NotifyPrefs) {
	d.prefs = p
	if !p.SoundEnabled && d.soundAlertID != "" {
		d.stopSound(d.soundAlertID, "disabled")
	}
}

// Prefs returns the current switches.
func (d *Dispatcher) Prefs() NotifyPrefs { return d.prefs }

// Close cancels the mute timer.
func (d *Dispatcher) Close() {
	d.cancelMuteTimer()
}

func (d *Dispatcher) showOverlay(alert models.Alert, timers *TimerSet) {
	eff := Effect{
		Kind:                EffectOverlayShow,
		AlertID:             alert.ID,
		Level:               alert.Level,
		Title:               title(alert),
		Body:                alert.Message,
		Closable:            alert.Level != models.LevelCritical,
		OutsideClickDismiss: alert.Level != models.LevelCritical,
	}
	if alert.Level == models.LevelWarning {
		eff.AutoHideMS = d.cfg.WarningAutoHide.Milliseconds()
	}
	if err := d.sink.Emit(eff); err != nil {
		d.logErr("overlay_show_failed", err, alert.ID)
		return
	}
	d.overlayID = alert.ID
	d.overlayLevel = alert.Level
	if alert.Level == models.LevelWarning && timers != nil {
		id := alert.ID
		timers.Start(timerOverlayHide, d.cfg.WarningAutoHide, func() { d.hideOverlay(id, "timeout") })
	}
}

func (d *Dispatcher) hideOverlay(alertID, reason string) {
	if d.overlayID == "" || d.overlayID != alertID {
		return
	}
	d.overlayID = ""
	d.emit(Effect{Kind: EffectOverlayHide, AlertID: alertID, Reason: reason})
}

func (d *Dispatcher) notify(alert models.Alert) {
	if !d.prefs.NotificationsEnabled || d.prefs.Permission != PermissionGranted {
		return
	}
	if d.lastNotified == alert.ID {
		return
	}
	d.lastNotified = alert.ID
	d.emit(Effect{
		Kind:               EffectNotify,
		AlertID:            alert.ID,
		Level:              alert.Level,
		Title:              title(alert),
		Body:               alert.Message,
		RequireInteraction: alert.Level == models.LevelCritical,
	})
}

func (d *Dispatcher) startSound(alert models.Alert, timers *TimerSet) {
	var dur time.Duration
	switch alert.Level {
	case models.LevelCritical:
		dur = d.cfg.CriticalSound
	case models.LevelDanger:
		dur = d.cfg.DangerSound
	default:
		return
	}
	if !d.prefs.SoundEnabled || d.Muted() {
		return
	}
	err := d.sink.Emit(Effect{
		Kind:       EffectSoundStart,
		AlertID:    alert.ID,
		Level:      alert.Level,
		Loop:       true,
		DurationMS: dur.Milliseconds(),
	})
	if err != nil {
		// Playback problems must not hold back the visual alert.
		d.logErr("sound_start_failed", err, alert.ID)
		return
	}
	d.soundAlertID = alert.ID
	if timers != nil {
		id := alert.ID
		timers.Start(timerSoundStop, dur, func() { d.stopSound(id, "timeout") })
	}
}

func (d *Dispatcher) stopSound(alertID, reason string) {
	if d.soundAlertID == "" || d.soundAlertID != alertID {
		return
	}
	d.soundAlertID = ""
	d.emit(Effect{Kind: EffectSoundStop, AlertID: alertID, Reason: reason})
}

func (d *Dispatcher) unmute(reason string) {
	d.cancelMuteTimer()
	d.mutedUntil = time.Time{}
	d.emit(Effect{Kind: EffectMuteChanged, Muted: false, Reason: reason})
}

func (d *Dispatcher) cancelMuteTimer() {
	if d.muteTimer != nil {
		d.muteTimer.Stop()
		d.muteTimer = nil
	}
	d.muteGen++
}

func (d *Dispatcher) muteAllowed(dur time.Duration) bool {
	for _, opt := range d.cfg.MuteOptions {
		if opt == dur {
			return true
		}
	}
	return false
}

func (d *Dispatcher) emit(e Effect) {
	if err := d.sink.Emit(e); err != nil {
		d.logErr(string(e.Kind)+"_failed", err, e.AlertID)
	}
}

func (d *Dispatcher) logErr(key string, err error, alertID string) {
	if d.log != nil {
		d.log.Errorw(key, "err", err, "alert_id", alertID)
	}
}

func title(a models.Alert) string {
	name := a.DeviceName
	if name == "" {
		name = a.SerialNumber
	}
	if name == "" {
		return a.Level.String() + " " + string(a.Type) + " alert"
	}
	return a.Level.String() + " " + string(a.Type) + " alert on " + name
}
