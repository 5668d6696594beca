package models

import "time"

// ControlState is the console's view of a device's control widgets. Values
// are whatever the device exposes (power, brightness, mode...).
type ControlState struct {
	DeviceID  string         `json:"device_id"`
	Values    map[string]any `json:"values"`
	Pending   bool           `json:"pending"`
	LastError string         `json:"last_error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type PowerState struct {
	On bool `json:"on"`
}

type DoorStatus struct {
	Open   bool `json:"open"`
	Locked bool `json:"locked"`
}

// ShareTicket is a one-off code another account redeems to gain access to a device.
type ShareTicket struct {
	Ticket     string    `json:"ticket"`
	Permission string    `json:"permission"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type SharedUser struct {
	UserID     string `json:"user_id"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

// DeviceLink is an automation rule stored by the backend: when Trigger
// happens on the source device, Action runs on the target.
type DeviceLink struct {
	ID             string `json:"id,omitempty"`
	SourceDeviceID string `json:"source_device_id"`
	TargetDeviceID string `json:"target_device_id" validate:"required"`
	Trigger        string `json:"trigger" validate:"required"`
	Action         string `json:"action" validate:"required"`
	Enabled        bool   `json:"enabled"`
}
