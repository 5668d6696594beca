package service

import (
	"context"
	"fmt"

	"alert_console/internal/engine"
	"alert_console/internal/feed"
	"alert_console/internal/models"
)

// IngestService accepts device traffic arriving over HTTP and hands it to
// the feeds. Emergencies go through the configured publisher, which may be
// the local broker or a cross-instance relay.
type IngestService struct {
	broker      *feed.Broker
	emergencies feed.EmergencyPublisher
	thresholds  models.Thresholds
}

func NewIngestService(broker *feed.Broker, emergencies feed.EmergencyPublisher, thresholds models.Thresholds) *IngestService {
	if emergencies == nil {
		emergencies = broker
	}
	return &IngestService{broker: broker, emergencies: emergencies, thresholds: thresholds}
}

// PublishReading returns how many sessions received the reading.
func (s *IngestService) PublishReading(serial, deviceID string, r models.SensorReading) int {
	return s.broker.PublishReading(feed.ReadingMsg{
		SerialNumber: serial,
		DeviceID:     deviceID,
		Source:       models.SourceSensor,
		Reading:      r,
	})
}

func (s *IngestService) PublishAlarm(serial, deviceID string, a models.DeviceAlarm) int {
	return s.broker.PublishAlarm(feed.AlarmMsg{SerialNumber: serial, DeviceID: deviceID, Alarm: a})
}

// PublishEmergency fans g out to every session of the account. An id is
// assigned when missing so that sessions can de-duplicate it.
func (s *IngestService) PublishEmergency(ctx context.Context, accountID int, g models.GlobalAlert) (models.GlobalAlert, error) {
	msg := feed.NewEmergency(accountID, g)
	if err := s.emergencies.PublishEmergency(ctx, msg); err != nil {
		return models.GlobalAlert{}, fmt.Errorf("publish emergency: %w", err)
	}
	return msg.Alert, nil
}

// Evaluate classifies a reading without touching any session.
func (s *IngestService) Evaluate(r models.SensorReading) engine.Evaluation {
	return engine.Evaluate(r, s.thresholds)
}
