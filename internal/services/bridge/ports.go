package bridge

import (
	"context"
	"time"
)

// Publisher hands a payload to the bus. Success means "accepted by the bus
// client", not "executed by the device".
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Sink delivers a rendered notification to a chat destination (e.g. a channel id).
type Sink interface {
	Send(ctx context.Context, destination string, n Notification) error
}

// Notification is a chat message: plain text, a structured embed, or both.
type Notification struct {
	Text  string
	Embed *Embed
}

type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed colours.
const (
	ColorGreen  = 0x2ecc71
	ColorOrange = 0xe67e22
	ColorBlue   = 0x3498db
)
