// Package mqttbus is the MQTT side of the bridge: a paho client with retrying
// connect, re-subscription after reconnects, and channel-based subscriptions.
package mqttbus

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// ConnectRetries bounds the initial connect attempts; MaxConnectTime bounds their total duration.
	ConnectRetries int
	MaxConnectTime time.Duration
	KeepAlive      time.Duration
}

func (c Config) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.Host, c.Port)
}

// Connect dials the broker with exponential backoff and returns a Client whose
// subscriptions survive reconnects. The connection is closed when ctx is done.
func Connect(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := newClient(log)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.brokerURL())
	if cfg.User != "" {
		opts.SetUsername(cfg.User)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	// clean session: the broker forgets subscriptions, so they are replayed on every connect
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("mqtt connected", zap.String("broker", cfg.brokerURL()))
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxConnectTime
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	retries := cfg.ConnectRetries
	if retries < 1 {
		retries = 5
	}

	cli := mqtt.NewClient(opts)
	c.setClient(cli)
	err := connectWithRetry(cli, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx), log)
	if err != nil {
		return nil, fmt.Errorf("could not establish MQTT connection after retries: %w", err)
	}

	go func() {
		<-ctx.Done()
		c.Close()
	}()
	return c, nil
}

// connectWithRetry dials with the same paho client on every attempt, so a
// failed attempt leaves nothing behind.
func connectWithRetry(cli mqtt.Client, b backoff.BackOff, log *zap.Logger) error {
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		token := cli.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			log.Warn("failed to connect to MQTT broker", zap.Int("attempt", attempt), zap.Error(err))
			return err
		}
		return nil
	}, b)
}
