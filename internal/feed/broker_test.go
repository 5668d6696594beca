package feed

import (
	"context"
	"testing"

	"alert_console/internal/config"
	"alert_console/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_RoutesByDevice(t *testing.T) {
	b := NewBroker(4, nil)
	bySerial := b.Subscribe(Target{AccountID: 1, SerialNumber: "SN-1"})
	byID := b.Subscribe(Target{AccountID: 1, DeviceID: "dev-2"})

	n := b.PublishReading(ReadingMsg{SerialNumber: "SN-1", Reading: models.NewReading(1200, 0, 0)})
	assert.Equal(t, 1, n)
	got := <-bySerial.Readings
	assert.Equal(t, models.SourceSensor, got.Source, "source defaults to sensor")
	assert.Empty(t, byID.Readings)

	assert.Equal(t, 1, b.PublishAlarm(AlarmMsg{DeviceID: "dev-2", Alarm: models.DeviceAlarm{Type: "fire"}}))
	assert.Equal(t, "fire", (<-byID.Alarms).Alarm.Type)

	assert.Zero(t, b.PublishReading(ReadingMsg{SerialNumber: "SN-9"}))
}

func TestBroker_EmergenciesGoToAccount(t *testing.T) {
	b := NewBroker(4, nil)
	mine := b.Subscribe(Target{AccountID: 7, SerialNumber: "SN-1"})
	other := b.Subscribe(Target{AccountID: 8, SerialNumber: "SN-1"})

	require.NoError(t, b.PublishEmergency(context.Background(), EmergencyMsg{AccountID: 7, Alert: models.GlobalAlert{ID: "g1"}}))
	assert.Equal(t, "g1", (<-mine.Emergencies).Alert.ID)
	assert.Empty(t, other.Emergencies)
}

func TestBroker_FullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker(1, nil)
	s := b.Subscribe(Target{SerialNumber: "SN-1"})

	assert.Equal(t, 1, b.PublishReading(ReadingMsg{SerialNumber: "SN-1"}))
	assert.Equal(t, 0, b.PublishReading(ReadingMsg{SerialNumber: "SN-1"}))
	assert.Len(t, s.Readings, 1)
}

func TestBroker_Unsubscribe(t *testing.T) {
	b := NewBroker(1, nil)
	s := b.Subscribe(Target{SerialNumber: "SN-1"})
	assert.Equal(t, 1, b.Subscribers())
	b.Unsubscribe(s)
	assert.Zero(t, b.Subscribers())
	assert.Zero(t, b.PublishReading(ReadingMsg{SerialNumber: "SN-1"}))
}

func TestParseTopic(t *testing.T) {
	cases := []struct {
		topic string
		want  topicDest
		ok    bool
	}{
		{"home/SN-1/sensor", topicDest{kind: topicSensor, serial: "SN-1"}, true},
		{"home/SN-1/alarm", topicDest{kind: topicAlarm, serial: "SN-1"}, true},
		{"home/accounts/42/emergency", topicDest{kind: topicEmergency, account: 42}, true},
		{"home/accounts/x/emergency", topicDest{}, false},
		{"home/SN-1/status", topicDest{}, false},
		{"office/SN-1/sensor", topicDest{}, false},
		{"home//sensor", topicDest{}, false},
	}
	for _, tc := range cases {
		got, err := parseTopic("home", tc.topic)
		if !tc.ok {
			assert.ErrorIs(t, err, errUnknownTopic, tc.topic)
			continue
		}
		require.NoError(t, err, tc.topic)
		assert.Equal(t, tc.want, got, tc.topic)
	}
}

func TestMQTTIngest_Handle(t *testing.T) {
	b := NewBroker(4, nil)
	sub := b.Subscribe(Target{AccountID: 3, SerialNumber: "SN-1"})
	in := NewMQTTIngest(config.MQTTConfig{Broker: "tcp://127.0.0.1:1", TopicPrefix: "home"}, b, nil, nil)
	ctx := context.Background()

	require.NoError(t, in.Handle(ctx, "home/SN-1/sensor", []byte(`{"gas":"2100"}`)))
	assert.Equal(t, 2100.0, (<-sub.Readings).Reading.GasPPM())

	require.NoError(t, in.Handle(ctx, "home/SN-1/alarm", []byte(`{"type":"smoke","level":"CRITICAL"}`)))
	assert.Equal(t, "CRITICAL", (<-sub.Alarms).Alarm.Level)

	require.NoError(t, in.Handle(ctx, "home/accounts/3/emergency", []byte(`{"id":"e1","type":"gas"}`)))
	assert.Equal(t, "e1", (<-sub.Emergencies).Alert.ID)

	require.NoError(t, in.Handle(ctx, "home/accounts/3/emergency", []byte(`{"type":"fire"}`)))
	assigned := (<-sub.Emergencies).Alert.ID
	assert.NotEmpty(t, assigned, "emergencies without an id get one at ingest")
	require.NoError(t, in.Handle(ctx, "home/accounts/3/emergency", []byte(`{"type":"fire"}`)))
	assert.NotEqual(t, assigned, (<-sub.Emergencies).Alert.ID)

	assert.Error(t, in.Handle(ctx, "home/SN-1/sensor", []byte(`[1]`)))
	assert.ErrorIs(t, in.Handle(ctx, "home/x", []byte(`{}`)), errUnknownTopic)
}
