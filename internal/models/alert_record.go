package models

import "time"

// Transition kinds stored in the alert log.
const (
	RecordTriggered    = "TRIGGERED"
	RecordUpgraded     = "UPGRADED"
	RecordOverridden   = "OVERRIDDEN"
	RecordAcknowledged = "ACKNOWLEDGED"
	RecordCleared      = "CLEARED"
)

// AlertRecord is a single alert log entry.
type AlertRecord struct {
	RecordID     string        `json:"record_id"`
	AccountID    int           `json:"account_id"`
	AlertID      string        `json:"alert_id"`
	Transition   string        `json:"transition"` // TRIGGERED | UPGRADED | OVERRIDDEN | ACKNOWLEDGED | CLEARED
	Type         AlertType     `json:"type"`
	Level        AlertLevel    `json:"level"`
	Source       AlertSource   `json:"source"`
	DeviceID     string        `json:"device_id,omitempty"`
	SerialNumber string        `json:"serial_number,omitempty"`
	Data         SensorReading `json:"data"`
	OccurredAt   time.Time     `json:"occurred_at"`
}

// Preferences are the per-account notification switches.
type Preferences struct {
	AccountID            int       `json:"account_id"`
	SoundEnabled         bool      `json:"sound_enabled"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// DefaultPreferences is what an account gets before it saves any.
func DefaultPreferences(accountID int) Preferences {
	return Preferences{AccountID: accountID, SoundEnabled: true, NotificationsEnabled: true}
}

// AlertFilter narrows an alert log query. Zero fields do not filter.
type AlertFilter struct {
	AccountID    int
	From, To     time.Time
	MinLevel     AlertLevel
	Type         AlertType
	DeviceID     string
	SerialNumber string
	Limit        int
}
