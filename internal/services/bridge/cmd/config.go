package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

type MQTTConfig struct {
	Host         string        `env:"MQTT_HOST" envDefault:"broker.hivemq.com"`
	Port         int           `env:"MQTT_PORT" envDefault:"1883"`
	User         string        `env:"MQTT_USER"`
	Password     string        `env:"MQTT_PASSWORD"`
	ClientID     string        `env:"MQTT_CLIENT_ID"`
	ControlTopic string        `env:"MQTT_TOPIC_CONTROL" envDefault:"esp32/control"`
	StatusTopic  string        `env:"MQTT_TOPIC_STATUS" envDefault:"esp32/status"`
	KeepAlive    time.Duration `env:"MQTT_KEEPALIVE" envDefault:"60s"`
	Retries      int           `env:"MQTT_CONNECT_RETRIES" envDefault:"5"`
	InboundQueue int           `env:"MQTT_INBOUND_BUFFER" envDefault:"64"`
}

type DiscordConfig struct {
	Token          string        `env:"DISCORD_TOKEN,required"`
	Prefix         string        `env:"COMMAND_PREFIX" envDefault:"!"`
	CommandTimeout time.Duration `env:"COMMAND_TIMEOUT" envDefault:"10s"`
}

type Config struct {
	MQTT    MQTTConfig
	Discord DiscordConfig

	StatusWait     time.Duration `env:"STATUS_WAIT" envDefault:"3s"`
	FreshFor       time.Duration `env:"STATUS_FRESH_FOR" envDefault:"2s"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"2s"`

	NotifyQueue       int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"32"`
	NotifySendTimeout time.Duration `env:"NOTIFY_SEND_TIMEOUT" envDefault:"5s"`
	BreakerFailures   int           `env:"NOTIFY_BREAKER_FAILURES" envDefault:"3"`
	BreakerOpenFor    time.Duration `env:"NOTIFY_BREAKER_OPEN_FOR" envDefault:"30s"`
	// how long QoS 1 packet ids are remembered to spot broker redeliveries
	DedupWindow time.Duration `env:"EVENT_DEDUP_WINDOW" envDefault:"30s"`

	HTTPPort       int           `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort       int           `env:"GRPC_PORT" envDefault:"50051"`
	ReadinessGrace time.Duration `env:"READINESS_GRACE" envDefault:"30s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// loadConfig reads the configuration from environ; nil means the process environment.
func loadConfig(environ map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if strings.TrimSpace(cfg.MQTT.ClientID) == "" {
		cfg.MQTT.ClientID = "plant-bridge-" + uuid.NewString()[:8]
	}
	if cfg.StatusWait <= 0 {
		return Config{}, fmt.Errorf("STATUS_WAIT must be positive, got %s", cfg.StatusWait)
	}
	if cfg.MQTT.ControlTopic == cfg.MQTT.StatusTopic {
		return Config{}, fmt.Errorf("control and status topics must differ (%q)", cfg.MQTT.StatusTopic)
	}
	return cfg, nil
}
