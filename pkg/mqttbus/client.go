package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Message is one inbound delivery. MessageID is zero for QoS 0; Duplicate is
// the broker's DUP flag, set when a QoS 1 message is being redelivered.
type Message struct {
	Topic     string
	Payload   []byte
	MessageID uint16
	Duplicate bool
}

var ErrNotConnected = errors.New("mqtt client not connected")

// Client wraps a paho client. Subscriptions are remembered so they can be
// replayed after an automatic reconnect.
type Client struct {
	log *zap.Logger

	mu     sync.Mutex
	client mqtt.Client
	subs   map[string]mqtt.MessageHandler
	closed bool

	// BufferSize is the capacity of the channel returned by Subscribe.
	BufferSize int
}

func newClient(log *zap.Logger) *Client {
	return &Client{log: log, subs: make(map[string]mqtt.MessageHandler), BufferSize: 64}
}

// NewClient wraps an already configured paho client.
func NewClient(cli mqtt.Client, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := newClient(log)
	c.client = cli
	return c
}

func (c *Client) setClient(cli mqtt.Client) {
	c.mu.Lock()
	c.client = cli
	c.mu.Unlock()
}

func (c *Client) paho() mqtt.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasSuffix(t, "/status") {
		return 1
	}
	return 0
}

// Publish sends payload on topic and waits for the hand-off, at most until ctx is done.
// Topics ending in /status are published with QoS 1, everything else with QoS 0.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	cli := c.paho()
	if cli == nil || !cli.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := cli.Publish(topic, qosFor(topic), false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publish to %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	c.log.Debug("message published", zap.String("topic", topic), zap.ByteString("payload", payload))
	return nil
}

// Subscribe returns a stream of messages on topic. The paho callback never
// blocks: when the buffer is full the message is dropped and logged.
// The channel is closed once ctx is done and the topic is unsubscribed.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan Message, error) {
	size := c.BufferSize
	if size <= 0 {
		size = 64
	}
	out := make(chan Message, size)
	var closeOnce sync.Once
	var mu sync.RWMutex
	done := false

	handler := func(_ mqtt.Client, m mqtt.Message) {
		mu.RLock()
		defer mu.RUnlock()
		if done {
			return
		}
		payload := append([]byte(nil), m.Payload()...)
		select {
		case out <- Message{Topic: m.Topic(), Payload: payload, MessageID: m.MessageID(), Duplicate: m.Duplicate()}:
		default:
			c.log.Warn("inbound buffer full, dropping message", zap.String("topic", m.Topic()))
		}
	}

	c.mu.Lock()
	c.subs[topic] = handler
	cli := c.client
	c.mu.Unlock()

	if cli != nil && cli.IsConnectionOpen() {
		if err := c.subscribe(cli, topic, handler); err != nil {
			c.mu.Lock()
			delete(c.subs, topic)
			c.mu.Unlock()
			return nil, err
		}
	}
	c.log.Info("subscribed", zap.String("topic", topic), zap.Uint8("qos", qosFor(topic)))

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, topic)
		cli := c.client
		c.mu.Unlock()
		if cli != nil && cli.IsConnectionOpen() {
			cli.Unsubscribe(topic).Wait()
		}
		closeOnce.Do(func() {
			mu.Lock()
			done = true
			close(out)
			mu.Unlock()
		})
	}()
	return out, nil
}

func (c *Client) subscribe(cli mqtt.Client, topic string, h mqtt.MessageHandler) error {
	token := cli.Subscribe(topic, qosFor(topic), h)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	cli := c.client
	subs := make(map[string]mqtt.MessageHandler, len(c.subs))
	for t, h := range c.subs {
		subs[t] = h
	}
	c.mu.Unlock()
	if cli == nil {
		return
	}
	for topic, h := range subs {
		if err := c.subscribe(cli, topic, h); err != nil {
			c.log.Error("resubscribe failed", zap.String("topic", topic), zap.Error(err))
		}
	}
}

// IsConnected reports whether the broker connection is currently open.
func (c *Client) IsConnected() bool {
	cli := c.paho()
	return cli != nil && cli.IsConnectionOpen()
}

// Close disconnects from the broker. It is safe to call more than once.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cli := c.client
	c.mu.Unlock()
	if cli != nil && cli.IsConnected() {
		cli.Disconnect(250)
		c.log.Info("MQTT connection closed")
	}
}
