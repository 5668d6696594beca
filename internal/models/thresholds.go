package models

import "fmt"

// Band holds the three trigger points of one metric.
type Band struct {
	Warning  float64 `json:"warning" mapstructure:"warning"`
	Danger   float64 `json:"danger" mapstructure:"danger"`
	Critical float64 `json:"critical" mapstructure:"critical"`
}

// Thresholds is the per-metric, per-level trigger table.
type Thresholds struct {
	Gas         Band `json:"gas" mapstructure:"gas"`                 // PPM
	Temperature Band `json:"temperature" mapstructure:"temperature"` // °C
	Humidity    Band `json:"humidity" mapstructure:"humidity"`       // %
}

// DefaultThresholds returns the factory table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Gas:         Band{Warning: 1000, Danger: 2000, Critical: 3000},
		Temperature: Band{Warning: 40, Danger: 50, Critical: 60},
		Humidity:    Band{Warning: 80, Danger: 90, Critical: 95},
	}
}

// Validate checks that every band is strictly ascending.
func (t Thresholds) Validate() error {
	for name, b := range map[string]Band{"gas": t.Gas, "temperature": t.Temperature, "humidity": t.Humidity} {
		if !(b.Warning < b.Danger && b.Danger < b.Critical) {
			return fmt.Errorf("thresholds for %s must satisfy warning < danger < critical, got %v/%v/%v",
				name, b.Warning, b.Danger, b.Critical)
		}
	}
	return nil
}
