package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alert_console/internal/logger"

	"github.com/redis/go-redis/v9"
)

// RedisRelay carries emergencies between service instances over Redis
// pub/sub, one channel per account. Every instance runs the relay and hands
// what it receives to its local Broker.
type RedisRelay struct {
	client *redis.Client
	prefix string
	local  *Broker
	log    *logger.Logger
	ready  chan struct{}
}

// NewRedisRelay builds a relay publishing on "<prefix>:<account>" channels.
func NewRedisRelay(client *redis.Client, prefix string, local *Broker, log *logger.Logger) *RedisRelay {
	return &RedisRelay{client: client, prefix: prefix, local: local, log: log, ready: make(chan struct{})}
}

var _ EmergencyPublisher = (*RedisRelay)(nil)

func (r *RedisRelay) channel(accountID int) string {
	return fmt.Sprintf("%s:%d", r.prefix, accountID)
}

// PublishEmergency sends m to every instance, this one included.
func (r *RedisRelay) PublishEmergency(ctx context.Context, m EmergencyMsg) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode emergency: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(m.AccountID), payload).Err(); err != nil {
		return fmt.Errorf("publish emergency for account %d: %w", m.AccountID, err)
	}
	return nil
}

// Ready is closed once the relay's subscription is confirmed.
func (r *RedisRelay) Ready() <-chan struct{} { return r.ready }

// Run subscribes to every account channel and forwards messages until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.PSubscribe(ctx, r.prefix+":*")
	defer func() { _ = ps.Close() }()

	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s:*: %w", r.prefix, err)
	}
	close(r.ready)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis emergency channel closed")
			}
			var m EmergencyMsg
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				if r.log != nil {
					r.log.Warnw("redis_emergency_decode_failed", "channel", msg.Channel, "err", err)
				}
				continue
			}
			r.local.deliverEmergency(m)
		}
	}
}
