package service

import "time"

// LogFilter narrows an alert log query for the calling account.
type LogFilter struct {
	From         time.Time // inclusive; zero means no lower bound
	To           time.Time // inclusive; zero means no upper bound
	Level        string    // minimum level: "", "WARNING", "DANGER", "CRITICAL"
	Type         string    // "", "gas", "fire", "smoke", "temperature", "emergency"
	DeviceID     string
	SerialNumber string
	Limit        int
}

// SimulationParams starts a scripted scenario on a device.
type SimulationParams struct {
	Scenario     string // "fire" | "gas" | "smoke" | "clear"
	SerialNumber string
	DeviceID     string
}
