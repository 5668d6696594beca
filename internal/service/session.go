package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"alert_console/internal/config"
	"alert_console/internal/engine"
	"alert_console/internal/feed"
	"alert_console/internal/logger"
	"alert_console/internal/models"
	"alert_console/internal/repository"
)

// Commands a client may send on its session stream.
const (
	CmdAcknowledge  = "acknowledge"
	CmdClear        = "clear"
	CmdMute         = "mute"
	CmdUnmute       = "unmute"
	CmdCloseOverlay = "close_overlay"
	CmdTestAlert    = "test_alert"
	CmdSnapshot     = "snapshot"
)

// Event types pushed to the client.
const (
	EventState  = "state"
	EventEffect = "effect"
	EventError  = "error"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrSessionClosed  = errors.New("session closed")
	ErrNoDevice       = errors.New("serial or device_id is required")
)

// Command is one client instruction. AlertID defaults to the current alert
// where that makes sense; Duration accepts "15m" or a number of minutes.
type Command struct {
	Action   string `json:"action"`
	AlertID  string `json:"alert_id,omitempty"`
	Duration string `json:"duration,omitempty"`
	Level    string `json:"level,omitempty"`
}

// Event is one server message on the session stream.
type Event struct {
	Type  string
	Data  any
	Error string
}

// SessionState is the payload of a state event.
type SessionState struct {
	engine.Snapshot
	Muted       bool       `json:"muted"`
	MutedUntil  *time.Time `json:"muted_until,omitempty"`
	Sound       bool       `json:"sound_enabled"`
	Notify      bool       `json:"notifications_enabled"`
	MuteOptions []string   `json:"mute_options"`
}

// SessionParams identifies who is watching which device.
type SessionParams struct {
	AccountID  int
	Device     engine.DeviceIdentity
	Permission engine.Permission
}

// Session is the alert state of one connected client. All engine calls
// happen on the goroutine running Run.
type Session struct {
	params SessionParams
	sub    *feed.Subscription
	alerts repository.AlertRepo
	log    *logger.Logger

	mgr   *engine.Manager
	disp  *engine.Dispatcher
	cfg   engine.DispatcherConfig
	clock engine.Clock
	ctx   context.Context
	// closing is cancelled when the owning SessionService shuts down.
	closing context.Context

	cmds  chan Command
	tasks chan func()
	out   chan Event
	done  chan struct{}
	once  sync.Once
	onEnd func()
}

// Params returns what the session was opened with.
func (s *Session) Params() SessionParams { return s.params }

// Events is the outbound stream. It is never closed; watch Done instead.
func (s *Session) Events() <-chan Event { return s.out }

// Done is closed when Run returns.
func (s *Session) Done() <-chan struct{} { return s.done }

// Submit queues a client command.
func (s *Session) Submit(ctx context.Context, c Command) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.cmds <- c:
		return nil
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do runs f on the session goroutine.
func (s *Session) Do(f func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.tasks <- f:
		return true
	case <-s.done:
		return false
	}
}

// Run processes feed messages, commands and timer callbacks one at a time
// until ctx is cancelled or the SessionService is closed.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.closing, cancel)
	defer stop()
	s.ctx = ctx
	defer s.end()

	s.sendState()
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.sub.Readings:
			s.apply(s.mgr.HandleReading(m.Reading, m.Source))
		case m := <-s.sub.Alarms:
			s.apply(s.mgr.HandleDeviceAlarm(m.Alarm))
		case m := <-s.sub.Emergencies:
			s.apply(s.mgr.HandleGlobalAlert(m.Alert))
		case c := <-s.cmds:
			if err := s.handle(c); err != nil {
				s.send(Event{Type: EventError, Error: err.Error()})
			}
		case f := <-s.tasks:
			f()
		}
	}
}

func (s *Session) end() {
	s.once.Do(func() {
		s.mgr.Close()
		s.disp.Close()
		if s.onEnd != nil {
			s.onEnd()
		}
		close(s.done)
	})
}

func (s *Session) handle(c Command) error {
	switch strings.ToLower(strings.TrimSpace(c.Action)) {
	case CmdAcknowledge:
		s.apply(s.mgr.Acknowledge(s.alertID(c.AlertID)))
	case CmdClear:
		s.apply(s.mgr.Clear(c.AlertID))
	case CmdMute:
		d, err := parseMuteDuration(c.Duration)
		if err != nil {
			return err
		}
		if err := s.disp.Mute(d); err != nil {
			return err
		}
		s.sendState()
	case CmdUnmute:
		s.disp.Unmute()
		s.sendState()
	case CmdCloseOverlay:
		return s.disp.CloseOverlay(s.alertID(c.AlertID))
	case CmdTestAlert:
		level := models.LevelWarning
		if c.Level != "" {
			lv, ok := models.ParseLevel(c.Level)
			if !ok {
				return fmt.Errorf("unknown level %q", c.Level)
			}
			level = lv
		}
		tr, err := s.mgr.TriggerTest(level)
		if err != nil {
			return err
		}
		s.apply(tr)
	case CmdSnapshot:
		s.sendState()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Action)
	}
	return nil
}

func (s *Session) alertID(id string) string {
	if id != "" {
		return id
	}
	if cur, ok := s.mgr.Current(); ok {
		return cur.ID
	}
	return ""
}

// apply persists and broadcasts a state change.
func (s *Session) apply(tr engine.Transition) {
	if !tr.Changed() {
		return
	}
	if s.log != nil {
		s.log.Infow("alert_"+strings.ToLower(tr.Kind.Record()),
			"alert_id", tr.Alert.ID, "type", tr.Alert.Type, "level", tr.Alert.Level.String(),
			"source", tr.Alert.Source, "serial", tr.Alert.SerialNumber, "account_id", s.params.AccountID)
	}
	if s.alerts != nil {
		rec := models.AlertRecord{
			AccountID:    s.params.AccountID,
			AlertID:      tr.Alert.ID,
			Transition:   tr.Kind.Record(),
			Type:         tr.Alert.Type,
			Level:        tr.Alert.Level,
			Source:       tr.Alert.Source,
			DeviceID:     tr.Alert.DeviceID,
			SerialNumber: tr.Alert.SerialNumber,
			Data:         tr.Alert.Data,
			OccurredAt:   tr.Alert.Timestamp,
		}
		if tr.Kind == engine.TransitionAcknowledged || tr.Kind == engine.TransitionCleared {
			rec.OccurredAt = s.clock.Now()
		}
		wctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		if err := s.alerts.Append(wctx, rec); err != nil && s.log != nil {
			s.log.Errorw("alert_log_append_failed", "alert_id", tr.Alert.ID, "err", err)
		}
		cancel()
	}
	s.sendState()
}

func (s *Session) state() SessionState {
	p := s.disp.Prefs()
	st := SessionState{
		Snapshot: s.mgr.Snapshot(),
		Muted:    s.disp.Muted(),
		Sound:    p.SoundEnabled,
		Notify:   p.NotificationsEnabled,
	}
	if st.Muted {
		u := s.disp.MutedUntil()
		st.MutedUntil = &u
	}
	for _, d := range s.cfg.MuteOptions {
		st.MuteOptions = append(st.MuteOptions, d.String())
	}
	return st
}

func (s *Session) sendState() {
	s.send(Event{Type: EventState, Data: s.state()})
}

// send blocks until the client side takes e or the session is cancelled.
func (s *Session) send(e Event) {
	select {
	case s.out <- e:
	case <-s.ctx.Done():
	}
}

// applyPrefs swaps the notification switches, keeping the browser permission.
func (s *Session) applyPrefs(p models.Preferences) {
	cur := s.disp.Prefs()
	s.disp.SetPrefs(engine.NotifyPrefs{
		SoundEnabled:         p.SoundEnabled,
		NotificationsEnabled: p.NotificationsEnabled,
		Permission:           cur.Permission,
	})
	s.sendState()
}

func parseMuteDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, engine.ErrInvalidMuteDuration
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", engine.ErrInvalidMuteDuration, s)
	}
	return d, nil
}

// SessionService opens alert sessions and keeps track of the live ones.
type SessionService struct {
	broker     *feed.Broker
	alerts     repository.AlertRepo
	prefs      repository.PreferenceRepo
	thresholds models.Thresholds
	dispCfg    engine.DispatcherConfig
	bufs       config.SessionConfig
	clock      engine.Clock
	log        *logger.Logger

	closing context.Context
	shut    context.CancelFunc

	mu   sync.Mutex
	live map[*Session]struct{}
}

func NewSessionService(broker *feed.Broker, alerts repository.AlertRepo, prefs repository.PreferenceRepo,
	thresholds models.Thresholds, dispCfg engine.DispatcherConfig, bufs config.SessionConfig, log *logger.Logger) *SessionService {
	closing, shut := context.WithCancel(context.Background())
	return &SessionService{
		closing:    closing,
		shut:       shut,
		broker:     broker,
		alerts:     alerts,
		prefs:      prefs,
		thresholds: thresholds,
		dispCfg:    dispCfg,
		bufs:       bufs,
		clock:      engine.RealClock(),
		log:        log,
		live:       make(map[*Session]struct{}),
	}
}

// WithClock replaces the base clock. Used by tests.
func (s *SessionService) WithClock(c engine.Clock) *SessionService {
	s.clock = c
	return s
}

// Open builds a session and subscribes it to its device. The caller must Run it.
func (s *SessionService) Open(ctx context.Context, p SessionParams) (*Session, error) {
	if s.closing.Err() != nil {
		return nil, ErrSessionClosed
	}
	if p.Device.SerialNumber == "" && p.Device.DeviceID == "" {
		return nil, ErrNoDevice
	}

	prefs := models.DefaultPreferences(p.AccountID)
	if s.prefs != nil {
		loaded, err := s.prefs.Load(ctx, p.AccountID)
		if err != nil {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
		prefs = loaded
	}

	sess := &Session{
		params:  p,
		alerts:  s.alerts,
		log:     s.log,
		cfg:     s.dispCfg,
		clock:   s.clock,
		closing: s.closing,
		cmds:    make(chan Command, max(s.bufs.CommandBuffer, 1)),
		tasks:   make(chan func(), max(s.bufs.CommandBuffer, 1)),
		out:     make(chan Event, max(s.bufs.OutBuffer, 1)),
		done:    make(chan struct{}),
	}
	if s.log != nil {
		sess.log = s.log.With("account_id", p.AccountID, "serial", p.Device.SerialNumber)
	}

	clock := engine.SerialClock(s.clock, func(f func()) { sess.Do(f) })
	sink := engine.SinkFunc(func(e engine.Effect) error {
		if sess.ctx == nil || sess.ctx.Err() != nil {
			return ErrSessionClosed
		}
		sess.send(Event{Type: EventEffect, Data: e})
		return nil
	})
	sess.disp = engine.NewDispatcher(sink, clock, s.dispCfg, engine.NotifyPrefs{
		SoundEnabled:         prefs.SoundEnabled,
		NotificationsEnabled: prefs.NotificationsEnabled,
		Permission:           p.Permission,
	}, sess.log)
	sess.mgr = engine.NewManager(p.Device, s.thresholds, engine.WithClock(clock), engine.WithNotifier(sess.disp))

	sess.sub = s.broker.Subscribe(feed.Target{
		AccountID:    p.AccountID,
		DeviceID:     p.Device.DeviceID,
		SerialNumber: p.Device.SerialNumber,
	})
	sess.onEnd = func() {
		s.broker.Unsubscribe(sess.sub)
		s.mu.Lock()
		delete(s.live, sess)
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.live[sess] = struct{}{}
	s.mu.Unlock()
	return sess, nil
}

// Close ends every live session and waits for them to finish, or for ctx.
// Sessions opened afterwards fail with ErrSessionClosed.
func (s *SessionService) Close(ctx context.Context) error {
	s.shut()

	s.mu.Lock()
	live := make([]*Session, 0, len(s.live))
	for sess := range s.live {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		select {
		case <-sess.Done():
		case <-ctx.Done():
			return fmt.Errorf("close sessions: %w", ctx.Err())
		}
	}
	return nil
}

// Live is the number of running sessions.
func (s *SessionService) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// PreferencesChanged pushes new switches to every live session of the account.
func (s *SessionService) PreferencesChanged(p models.Preferences) {
	s.mu.Lock()
	targets := make([]*Session, 0, len(s.live))
	for sess := range s.live {
		if sess.params.AccountID == p.AccountID {
			targets = append(targets, sess)
		}
	}
	s.mu.Unlock()

	for _, sess := range targets {
		sess := sess
		go sess.Do(func() { sess.applyPrefs(p) })
	}
}
