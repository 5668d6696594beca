package service

import (
	"context"
	"errors"
	"testing"

	"alert_console/internal/feed"
	"alert_console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingPublisher struct{ err error }

func (p failingPublisher) PublishEmergency(context.Context, feed.EmergencyMsg) error { return p.err }

func TestIngestService_RoutesToBroker(t *testing.T) {
	broker := feed.NewBroker(4, nil)
	sub := broker.Subscribe(feed.Target{AccountID: 5, SerialNumber: "SN-1"})
	svc := NewIngestService(broker, nil, models.DefaultThresholds())

	assert.Equal(t, 1, svc.PublishReading("SN-1", "", models.NewReading(1500, 20, 40)))
	assert.Equal(t, 0, svc.PublishReading("SN-2", "", models.NewReading(1500, 20, 40)))
	assert.Equal(t, 1, svc.PublishAlarm("SN-1", "", models.DeviceAlarm{Type: "gas", Level: "DANGER"}))

	g, err := svc.PublishEmergency(context.Background(), 5, models.GlobalAlert{Type: "fire"})
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID, "an id is assigned")

	got := <-sub.Emergencies
	assert.Equal(t, g.ID, got.Alert.ID)
	assert.Equal(t, models.SourceSensor, (<-sub.Readings).Source)
}

func TestIngestService_PublishEmergencyError(t *testing.T) {
	boom := errors.New("relay down")
	svc := NewIngestService(feed.NewBroker(1, nil), failingPublisher{err: boom}, models.DefaultThresholds())

	_, err := svc.PublishEmergency(context.Background(), 1, models.GlobalAlert{ID: "keep", Type: "smoke"})
	assert.ErrorIs(t, err, boom)
}

func TestIngestService_Evaluate(t *testing.T) {
	svc := NewIngestService(feed.NewBroker(1, nil), nil, models.DefaultThresholds())

	ev := svc.Evaluate(models.NewReading(0, 55, 40))
	assert.Equal(t, models.LevelDanger, ev.Level)
	assert.Equal(t, models.TypeFire, ev.Type)

	ev = svc.Evaluate(models.SensorReading{Hum: models.Float(96)})
	assert.Equal(t, models.LevelCritical, ev.Level)
	assert.Empty(t, ev.Type)
}
