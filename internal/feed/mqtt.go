package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"alert_console/internal/config"
	"alert_console/internal/logger"
	"alert_console/internal/models"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicSensor    = "sensor"
	topicAlarm     = "alarm"
	topicEmergency = "emergency"
	topicAccounts  = "accounts"
)

var errUnknownTopic = errors.New("unknown topic")

// MQTTIngest subscribes to device topics and republishes what arrives on the
// local Broker. Emergencies go through Emergencies so that a Redis relay can
// fan them out across instances.
type MQTTIngest struct {
	cfg         config.MQTTConfig
	client      mqtt.Client
	broker      *Broker
	emergencies EmergencyPublisher
	log         *logger.Logger
}

// NewMQTTIngest prepares a client for cfg. Nothing connects until Start.
func NewMQTTIngest(cfg config.MQTTConfig, broker *Broker, emergencies EmergencyPublisher, log *logger.Logger) *MQTTIngest {
	if emergencies == nil {
		emergencies = broker
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	in := &MQTTIngest{cfg: cfg, broker: broker, emergencies: emergencies, log: log}
	// Subscriptions are clean-session scoped, so they are restored on every reconnect.
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := in.subscribe(c); err != nil && in.log != nil {
			in.log.Errorw("mqtt_subscribe_failed", "err", err)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if in.log != nil {
			in.log.Warnw("mqtt_connection_lost", "err", err)
		}
	})
	in.client = mqtt.NewClient(opts)
	return in
}

// Start connects, retrying with exponential backoff for up to cfg.ConnectWait.
func (in *MQTTIngest) Start(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = in.cfg.ConnectWait

	op := func() error {
		token := in.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			if in.log != nil {
				in.log.Warnw("mqtt_connect_retry", "broker", in.cfg.Broker, "err", err)
			}
			return err
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("connect to MQTT broker %s: %w", in.cfg.Broker, err)
	}
	if in.log != nil {
		in.log.Infow("mqtt_connected", "broker", in.cfg.Broker, "prefix", in.cfg.TopicPrefix)
	}
	return nil
}

// Stop disconnects, waiting briefly for in-flight work.
func (in *MQTTIngest) Stop() {
	in.client.Disconnect(250)
}

func (in *MQTTIngest) subscribe(c mqtt.Client) error {
	p := in.cfg.TopicPrefix
	filters := make(map[string]byte, 3)
	for _, f := range []string{
		p + "/+/" + topicSensor,
		p + "/+/" + topicAlarm,
		p + "/" + topicAccounts + "/+/" + topicEmergency,
	} {
		filters[f] = in.cfg.QoS
	}
	token := c.SubscribeMultiple(filters, func(_ mqtt.Client, msg mqtt.Message) {
		if err := in.Handle(context.Background(), msg.Topic(), msg.Payload()); err != nil && in.log != nil {
			in.log.Warnw("mqtt_message_rejected", "topic", msg.Topic(), "err", err)
		}
	})
	token.Wait()
	return token.Error()
}

// Handle routes one MQTT message by topic.
func (in *MQTTIngest) Handle(ctx context.Context, topic string, payload []byte) error {
	dest, err := parseTopic(in.cfg.TopicPrefix, topic)
	if err != nil {
		return err
	}

	switch dest.kind {
	case topicSensor:
		var r models.SensorReading
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("decode reading: %w", err)
		}
		in.broker.PublishReading(ReadingMsg{SerialNumber: dest.serial, Source: models.SourceSensor, Reading: r})
	case topicAlarm:
		var a models.DeviceAlarm
		if err := json.Unmarshal(payload, &a); err != nil {
			return fmt.Errorf("decode alarm: %w", err)
		}
		in.broker.PublishAlarm(AlarmMsg{SerialNumber: dest.serial, Alarm: a})
	case topicEmergency:
		var g models.GlobalAlert
		if err := json.Unmarshal(payload, &g); err != nil {
			return fmt.Errorf("decode emergency: %w", err)
		}
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return in.emergencies.PublishEmergency(ctx, NewEmergency(dest.account, g))
	}
	return nil
}

type topicDest struct {
	kind    string
	serial  string
	account int
}

// parseTopic understands <prefix>/<serial>/sensor, <prefix>/<serial>/alarm
// and <prefix>/accounts/<id>/emergency.
func parseTopic(prefix, topic string) (topicDest, error) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return topicDest{}, fmt.Errorf("%w: %s", errUnknownTopic, topic)
	}
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 2 && parts[0] != "" && (parts[1] == topicSensor || parts[1] == topicAlarm):
		return topicDest{kind: parts[1], serial: parts[0]}, nil
	case len(parts) == 3 && parts[0] == topicAccounts && parts[2] == topicEmergency:
		id, err := strconv.Atoi(parts[1])
		if err != nil || id <= 0 {
			return topicDest{}, fmt.Errorf("%w: bad account in %s", errUnknownTopic, topic)
		}
		return topicDest{kind: topicEmergency, account: id}, nil
	}
	return topicDest{}, fmt.Errorf("%w: %s", errUnknownTopic, topic)
}
