package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"alert_console/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Port      string          `mapstructure:"port" validate:"required"`
	DB        DBConfig        `mapstructure:"db"`
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Session   SessionConfig   `mapstructure:"session"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

type DBConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key" validate:"required,min=8"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

// AlertingConfig holds the thresholds and notification timings.
type AlertingConfig struct {
	Thresholds      models.Thresholds `mapstructure:"thresholds"`
	DangerSound     time.Duration     `mapstructure:"danger_sound" validate:"gt=0"`
	CriticalSound   time.Duration     `mapstructure:"critical_sound" validate:"gt=0"`
	WarningAutoHide time.Duration     `mapstructure:"warning_auto_hide" validate:"gt=0"`
	MuteOptions     []time.Duration   `mapstructure:"mute_options" validate:"min=1,dive,gt=0"`
}

// SessionConfig sizes the per-connection queues.
type SessionConfig struct {
	FeedBuffer    int `mapstructure:"feed_buffer" validate:"min=1"`
	CommandBuffer int `mapstructure:"command_buffer" validate:"min=1"`
	OutBuffer     int `mapstructure:"out_buffer" validate:"min=1"`
}

type MQTTConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Broker      string        `mapstructure:"broker" validate:"required_if=Enabled true"`
	ClientID    string        `mapstructure:"client_id"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TopicPrefix string        `mapstructure:"topic_prefix" validate:"required_if=Enabled true"`
	QoS         byte          `mapstructure:"qos" validate:"max=2"`
	ConnectWait time.Duration `mapstructure:"connect_wait"`
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db" validate:"min=0"`
	ChannelPrefix string `mapstructure:"channel_prefix" validate:"required_if=Enabled true"`
}

// BackendConfig points at the device management API the console drives.
type BackendConfig struct {
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	DebounceWindow  time.Duration `mapstructure:"debounce_window" validate:"gt=0"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" validate:"min=1"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout" validate:"gt=0"`
}

type SimulatorConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Tick    time.Duration `mapstructure:"tick" validate:"gt=0"`
}

const envPrefix = "ALERT"

var errNoConfig = errors.New("config: nil config")

// setDefaults registers every key so env overrides work without a file.
func setDefaults(v *viper.Viper) {
	th := models.DefaultThresholds()

	v.SetDefault("port", "8080")
	v.SetDefault("db.path", "app.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("auth.signing_key", "change-me-please")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("alerting.thresholds.gas.warning", th.Gas.Warning)
	v.SetDefault("alerting.thresholds.gas.danger", th.Gas.Danger)
	v.SetDefault("alerting.thresholds.gas.critical", th.Gas.Critical)
	v.SetDefault("alerting.thresholds.temperature.warning", th.Temperature.Warning)
	v.SetDefault("alerting.thresholds.temperature.danger", th.Temperature.Danger)
	v.SetDefault("alerting.thresholds.temperature.critical", th.Temperature.Critical)
	v.SetDefault("alerting.thresholds.humidity.warning", th.Humidity.Warning)
	v.SetDefault("alerting.thresholds.humidity.danger", th.Humidity.Danger)
	v.SetDefault("alerting.thresholds.humidity.critical", th.Humidity.Critical)
	v.SetDefault("alerting.danger_sound", 30*time.Second)
	v.SetDefault("alerting.critical_sound", 60*time.Second)
	v.SetDefault("alerting.warning_auto_hide", 10*time.Second)
	v.SetDefault("alerting.mute_options", []string{"5m", "15m", "30m"})

	v.SetDefault("session.feed_buffer", 32)
	v.SetDefault("session.command_buffer", 16)
	v.SetDefault("session.out_buffer", 64)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.client_id", "alert-console")
	v.SetDefault("mqtt.topic_prefix", "home")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.connect_wait", 30*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "alerts:emergency")

	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.debounce_window", 300*time.Millisecond)
	v.SetDefault("backend.breaker_failures", 5)
	v.SetDefault("backend.breaker_timeout", 30*time.Second)

	v.SetDefault("simulator.enabled", true)
	v.SetDefault("simulator.tick", time.Second)
}

// Load reads configs/config.yml (or the file at path when non-empty), applies
// ALERT_* environment overrides and validates the result. A missing file is
// not an error when path is empty.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs") // configs/config.yml
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and the threshold ordering.
func (c *Config) Validate() error {
	if c == nil {
		return errNoConfig
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Alerting.Thresholds.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
