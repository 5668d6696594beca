package models

import (
	"fmt"
	"strings"
	"time"
)

// AlertLevel is the severity of an alert. Levels are totally ordered by rank.
type AlertLevel int

const (
	LevelNormal AlertLevel = iota
	LevelWarning
	LevelDanger
	LevelCritical
)

var levelNames = [...]string{"NORMAL", "WARNING", "DANGER", "CRITICAL"}

func (l AlertLevel) String() string {
	if l < LevelNormal || l > LevelCritical {
		return fmt.Sprintf("AlertLevel(%d)", int(l))
	}
	return levelNames[l]
}

// Rank is the numeric position of the level in the severity order.
func (l AlertLevel) Rank() int { return int(l) }

// Valid reports whether l is one of the four known levels.
func (l AlertLevel) Valid() bool { return l >= LevelNormal && l <= LevelCritical }

// Exceeds reports whether l is strictly more severe than other.
func (l AlertLevel) Exceeds(other AlertLevel) bool { return l.Rank() > other.Rank() }

// CompareLevels returns -1, 0 or 1 as a is less, equal or more severe than b.
func CompareLevels(a, b AlertLevel) int {
	switch {
	case a.Rank() < b.Rank():
		return -1
	case a.Rank() > b.Rank():
		return 1
	default:
		return 0
	}
}

// ParseLevel parses a level name case-insensitively.
func ParseLevel(s string) (AlertLevel, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, name := range levelNames {
		if name == s {
			return AlertLevel(i), true
		}
	}
	return LevelNormal, false
}

func (l AlertLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid alert level %d", int(l))
	}
	return []byte(l.String()), nil
}

func (l *AlertLevel) UnmarshalText(b []byte) error {
	lvl, ok := ParseLevel(string(b))
	if !ok {
		return fmt.Errorf("unknown alert level %q", string(b))
	}
	*l = lvl
	return nil
}

// AlertType is the hazard category of an alert.
type AlertType string

const (
	TypeGas         AlertType = "gas"
	TypeFire        AlertType = "fire"
	TypeSmoke       AlertType = "smoke"
	TypeTemperature AlertType = "temperature"
	TypeEmergency   AlertType = "emergency"
)

// ParseAlertType normalizes s into a known type.
func ParseAlertType(s string) (AlertType, bool) {
	switch t := AlertType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeGas, TypeFire, TypeSmoke, TypeTemperature, TypeEmergency:
		return t, true
	default:
		return "", false
	}
}

// AlertSource tells where an alert came from.
type AlertSource string

const (
	SourceSensor     AlertSource = "sensor"
	SourceDevice     AlertSource = "device"
	SourceGlobal     AlertSource = "global"
	SourceManualTest AlertSource = "manual_test"
	SourceSimulation AlertSource = "simulation"
)

// Alert is an active or past alert of a single device session.
type Alert struct {
	ID           string        `json:"id"`
	Type         AlertType     `json:"type"`
	Level        AlertLevel    `json:"level"`
	Data         SensorReading `json:"data"`
	Source       AlertSource   `json:"source"`
	DeviceID     string        `json:"device_id,omitempty"`
	SerialNumber string        `json:"serial_number,omitempty"`
	DeviceName   string        `json:"device_name,omitempty"`
	Message      string        `json:"message,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
	Acknowledged bool          `json:"acknowledged"`
}
