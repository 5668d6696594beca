// Package feed fans inbound device traffic out to alert sessions.
package feed

import (
	"context"
	"sync"

	"alert_console/internal/logger"
	"alert_console/internal/models"

	"github.com/google/uuid"
)

// ReadingMsg is a sensor reading addressed to a device.
type ReadingMsg struct {
	DeviceID     string
	SerialNumber string
	Source       models.AlertSource
	Reading      models.SensorReading
}

// AlarmMsg is a device-raised alarm addressed to a device.
type AlarmMsg struct {
	DeviceID     string
	SerialNumber string
	Alarm        models.DeviceAlarm
}

// EmergencyMsg is an entry of an account's global emergency feed.
type EmergencyMsg struct {
	AccountID int                `json:"account_id"`
	Alert     models.GlobalAlert `json:"alert"`
}

// NewEmergency addresses g to an account. A missing id is filled in here so
// that every session and every relayed instance sees the same one.
func NewEmergency(accountID int, g models.GlobalAlert) EmergencyMsg {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return EmergencyMsg{AccountID: accountID, Alert: g}
}

// Target selects what a subscription receives.
type Target struct {
	AccountID    int
	DeviceID     string
	SerialNumber string
}

func (t Target) matches(deviceID, serial string) bool {
	return (t.SerialNumber != "" && t.SerialNumber == serial) ||
		(t.DeviceID != "" && t.DeviceID == deviceID)
}

// Subscription is one consumer's view of the three feeds. Each channel is
// FIFO; nothing is promised about ordering across channels.
type Subscription struct {
	Target      Target
	Readings    chan ReadingMsg
	Alarms      chan AlarmMsg
	Emergencies chan EmergencyMsg
}

// Broker delivers published messages to matching subscriptions without
// blocking: a subscriber whose buffer is full misses the message.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	log    *logger.Logger
}

// NewBroker creates a broker whose subscriptions buffer up to buffer messages per feed.
func NewBroker(buffer int, log *logger.Logger) *Broker {
	if buffer < 1 {
		buffer = 1
	}
	return &Broker{subs: make(map[*Subscription]struct{}), buffer: buffer, log: log}
}

// Subscribe registers a new subscription for t.
func (b *Broker) Subscribe(t Target) *Subscription {
	s := &Subscription{
		Target:      t,
		Readings:    make(chan ReadingMsg, b.buffer),
		Alarms:      make(chan AlarmMsg, b.buffer),
		Emergencies: make(chan EmergencyMsg, b.buffer),
	}
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes s. Its channels are left open so that a consumer
// still selecting on them never sees a spurious zero message.
func (b *Broker) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	b.mu.Unlock()
}

// Subscribers is the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// PublishReading delivers m to every subscription watching its device and
// returns how many received it.
func (b *Broker) PublishReading(m ReadingMsg) int {
	if m.Source == "" {
		m.Source = models.SourceSensor
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.subs {
		if !s.Target.matches(m.DeviceID, m.SerialNumber) {
			continue
		}
		select {
		case s.Readings <- m:
			n++
		default:
			b.dropped("reading", s)
		}
	}
	return n
}

// PublishAlarm delivers m to every subscription watching its device.
func (b *Broker) PublishAlarm(m AlarmMsg) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.subs {
		if !s.Target.matches(m.DeviceID, m.SerialNumber) {
			continue
		}
		select {
		case s.Alarms <- m:
			n++
		default:
			b.dropped("alarm", s)
		}
	}
	return n
}

// PublishEmergency delivers m to every subscription of the account. Device
// filtering is left to the session.
func (b *Broker) PublishEmergency(_ context.Context, m EmergencyMsg) error {
	b.deliverEmergency(m)
	return nil
}

func (b *Broker) deliverEmergency(m EmergencyMsg) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for s := range b.subs {
		if s.Target.AccountID != m.AccountID {
			continue
		}
		select {
		case s.Emergencies <- m:
			n++
		default:
			b.dropped("emergency", s)
		}
	}
	return n
}

func (b *Broker) dropped(kind string, s *Subscription) {
	if b.log != nil {
		b.log.Warnw("feed_subscriber_full", "kind", kind,
			"serial", s.Target.SerialNumber, "device_id", s.Target.DeviceID, "account_id", s.Target.AccountID)
	}
}

// EmergencyPublisher hands an emergency to whatever transport fans it out.
type EmergencyPublisher interface {
	PublishEmergency(ctx context.Context, m EmergencyMsg) error
}

var _ EmergencyPublisher = (*Broker)(nil)
