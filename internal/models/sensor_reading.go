package models

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// SensorReading is a single push from a device's sensor stream.
// Gas and PPM are synonyms for the gas level in PPM; Gas wins when both are set.
// Any missing or malformed field reads as 0.
type SensorReading struct {
	Gas  *float64 `json:"gas,omitempty"`
	PPM  *float64 `json:"ppm,omitempty"`
	Temp *float64 `json:"temp,omitempty"`
	Hum  *float64 `json:"hum,omitempty"`
}

var errReadingNotObject = errors.New("sensor reading must be a JSON object")

// GasPPM returns the gas level, preferring Gas over PPM.
func (r SensorReading) GasPPM() float64 {
	if r.Gas != nil {
		return sanitize(*r.Gas)
	}
	if r.PPM != nil {
		return sanitize(*r.PPM)
	}
	return 0
}

// TempC returns the temperature in °C.
func (r SensorReading) TempC() float64 {
	if r.Temp == nil {
		return 0
	}
	return sanitize(*r.Temp)
}

// HumidityPct returns the relative humidity in %.
func (r SensorReading) HumidityPct() float64 {
	if r.Hum == nil {
		return 0
	}
	return sanitize(*r.Hum)
}

// IsEmpty reports whether no metric was present in the payload.
func (r SensorReading) IsEmpty() bool {
	return r.Gas == nil && r.PPM == nil && r.Temp == nil && r.Hum == nil
}

// NewReading builds a reading from plain values; convenient for tests and the simulator.
func NewReading(gas, temp, hum float64) SensorReading {
	return SensorReading{Gas: Float(gas), Temp: Float(temp), Hum: Float(hum)}
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// UnmarshalJSON accepts numbers and numeric strings for every metric and
// silently drops anything else, so a partially broken payload still yields
// the metrics that could be read.
func (r *SensorReading) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = SensorReading{}
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		return errReadingNotObject
	}
	*r = SensorReading{
		Gas:  lenientFloat(raw["gas"]),
		PPM:  lenientFloat(raw["ppm"]),
		Temp: lenientFloat(raw["temp"]),
		Hum:  lenientFloat(raw["hum"]),
	}
	return nil
}

func lenientFloat(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		return &x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return &f
	default:
		return nil
	}
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
