package feed

import (
	"context"
	"testing"
	"time"

	"alert_console/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisRelay_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewBroker(4, nil)
	sub := b.Subscribe(Target{AccountID: 5, SerialNumber: "SN-1"})
	relay := NewRedisRelay(client, "alerts:emergency", b, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	select {
	case <-relay.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	msg := EmergencyMsg{AccountID: 5, Alert: models.GlobalAlert{ID: "g-1", Type: "fire", SerialNumber: "SN-1"}}
	require.NoError(t, relay.PublishEmergency(ctx, msg))

	select {
	case got := <-sub.Emergencies:
		assert.Equal(t, msg, got)
	case <-time.After(2 * time.Second):
		t.Fatal("emergency not relayed")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRedisRelay_PublishFailsWhenServerGone(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	relay := NewRedisRelay(client, "p", NewBroker(1, nil), nil)

	mr.Close()
	assert.Error(t, relay.PublishEmergency(context.Background(), EmergencyMsg{AccountID: 1}))
}
