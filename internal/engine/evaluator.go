package engine

import "alert_console/internal/models"

// GetAlertLevel maps a reading to a severity. Any single metric crossing a
// trigger point is enough; the most severe crossing wins.
func GetAlertLevel(r models.SensorReading, t models.Thresholds) models.AlertLevel {
	gas, temp, hum := r.GasPPM(), r.TempC(), r.HumidityPct()

	crosses := func(pick func(models.Band) float64) bool {
		return gas >= pick(t.Gas) || temp >= pick(t.Temperature) || hum >= pick(t.Humidity)
	}

	switch {
	case crosses(func(b models.Band) float64 { return b.Critical }):
		return models.LevelCritical
	case crosses(func(b models.Band) float64 { return b.Danger }):
		return models.LevelDanger
	case crosses(func(b models.Band) float64 { return b.Warning }):
		return models.LevelWarning
	default:
		return models.LevelNormal
	}
}

// GetAlertType classifies a reading. Gas is checked before temperature, so a
// reading with both high gas and high temperature is always a gas alert.
// Humidity never produces a type on its own.
func GetAlertType(r models.SensorReading, t models.Thresholds) (models.AlertType, bool) {
	gas, temp := r.GasPPM(), r.TempC()

	switch {
	case gas >= t.Gas.Warning:
		return models.TypeGas, true
	case temp >= t.Temperature.Danger:
		return models.TypeFire, true
	case temp >= t.Temperature.Warning || gas >= t.Gas.Warning:
		return models.TypeSmoke, true
	default:
		return "", false
	}
}

// Evaluation is the stateless verdict for one reading.
type Evaluation struct {
	Level models.AlertLevel `json:"level"`
	Type  models.AlertType  `json:"type,omitempty"`
}

// Evaluate runs both the level and the type checks.
func Evaluate(r models.SensorReading, t models.Thresholds) Evaluation {
	typ, _ := GetAlertType(r, t)
	return Evaluation{Level: GetAlertLevel(r, t), Type: typ}
}
