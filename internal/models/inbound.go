package models

// DeviceAlarm is the alarmData push a device raises on its own.
type DeviceAlarm struct {
	AlertID string        `json:"alert_id,omitempty"`
	Type    string        `json:"type"`
	Level   string        `json:"level"`
	Message string        `json:"message,omitempty"`
	Data    SensorReading `json:"data"`
}

// GlobalAlert is an entry of the account-wide emergency feed.
type GlobalAlert struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Level        string        `json:"level,omitempty"`
	SerialNumber string        `json:"serial_number,omitempty"`
	DeviceID     string        `json:"device_id,omitempty"`
	DeviceName   string        `json:"device_name,omitempty"`
	Message      string        `json:"message,omitempty"`
	Data         SensorReading `json:"data"`
}
