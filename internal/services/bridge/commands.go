package bridge

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	msg "github.com/LeonardoBeccarini/plant-bridge/internal/model/messages"
)

// Chat command names.
const (
	CmdStatus  = "status"
	CmdWater   = "water"
	CmdPumpOn  = "pump_on"
	CmdPumpOff = "pump_off"
	CmdHelp    = "plant"
)

type CommandsConfig struct {
	Prefix       string
	ControlTopic string

	// StatusWait bounds a status command end to end.
	StatusWait time.Duration
	// FreshFor: a cached snapshot younger than this is answered without waiting.
	FreshFor       time.Duration
	PublishTimeout time.Duration
}

func (c CommandsConfig) withDefaults() CommandsConfig {
	if c.Prefix == "" {
		c.Prefix = "!"
	}
	if c.StatusWait <= 0 {
		c.StatusWait = 3 * time.Second
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	return c
}

// Request is a parsed chat command.
type Request struct {
	Name   string
	Args   []string
	Origin string // where the command came from, e.g. a channel id
}

// ParseCommand splits a chat line like "!status now" into a Request.
// Lines without the prefix or without a name are rejected.
func ParseCommand(prefix, content string) (Request, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return Request{}, false
	}
	parts := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(parts) == 0 {
		return Request{}, false
	}
	return Request{Name: strings.ToLower(parts[0]), Args: parts[1:]}, true
}

// Commands implements the chat commands on top of the bus, cache and destination.
type Commands struct {
	pub     Publisher
	cache   *StateCache
	dest    *Destination
	cfg     CommandsConfig
	log     *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

func NewCommands(pub Publisher, cache *StateCache, dest *Destination, cfg CommandsConfig, log *zap.Logger, metrics *Metrics) *Commands {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Commands{pub: pub, cache: cache, dest: dest, cfg: cfg.withDefaults(), log: log, metrics: metrics, now: time.Now}
}

func (c *Commands) Prefix() string { return c.cfg.Prefix }

// Handle runs req and returns the reply; false means the command is unknown.
func (c *Commands) Handle(ctx context.Context, req Request) (Notification, bool) {
	switch req.Name {
	case CmdStatus:
		return c.Status(ctx, req.Origin), true
	case CmdWater:
		return c.WaterNow(ctx), true
	case CmdPumpOn:
		return c.PumpEnable(ctx), true
	case CmdPumpOff:
		return c.PumpDisable(ctx), true
	case CmdHelp:
		return c.Help(), true
	default:
		return Notification{}, false
	}
}

// Status binds the notification destination to origin, asks the device for a
// fresh report and waits for it at most StatusWait.
func (c *Commands) Status(ctx context.Context, origin string) Notification {
	c.dest.Bind(origin)
	start := c.now()
	defer func() { c.metrics.StatusWait.Observe(c.now().Sub(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.StatusWait)
	defer cancel()

	w := c.cache.Watch()
	pubErr := c.publish(ctx, CmdStatus, msg.ControlStatus)

	if snap, ok := c.cache.Read(); ok && c.cfg.FreshFor > 0 && snap.Age(c.now()) <= c.cfg.FreshFor {
		c.metrics.StatusQueries.WithLabelValues(outcomeRecent).Inc()
		return withWarning(RenderStatus(snap), pubErr)
	}
	if snap, ok := w.Wait(ctx); ok {
		c.metrics.StatusQueries.WithLabelValues(outcomeFresh).Inc()
		return withWarning(RenderStatus(snap), pubErr)
	}
	if snap, ok := c.cache.Read(); ok {
		c.metrics.StatusQueries.WithLabelValues(outcomeStale).Inc()
		return withWarning(RenderStaleStatus(snap), pubErr)
	}
	c.metrics.StatusQueries.WithLabelValues(outcomeNoData).Inc()
	return withWarning(Notification{Text: waitingText}, pubErr)
}

func (c *Commands) PumpEnable(ctx context.Context) Notification {
	err := c.publish(ctx, CmdPumpOn, msg.ControlPumpEnable)
	return withWarning(Notification{Text: "✅ **Pump service ENABLED**\nAutomatic watering is now active."}, err)
}

func (c *Commands) PumpDisable(ctx context.Context) Notification {
	err := c.publish(ctx, CmdPumpOff, msg.ControlPumpDisable)
	return withWarning(Notification{Text: "🛑 **Pump service DISABLED**\nAutomatic watering is now turned off."}, err)
}

// WaterNow triggers one manual watering; the device may ignore it while cooling down.
func (c *Commands) WaterNow(ctx context.Context) Notification {
	err := c.publish(ctx, CmdWater, msg.ControlPumpOn)
	return withWarning(Notification{Text: "💧 **Manual watering command sent!**\nThe pump will activate if the cooldown period has passed."}, err)
}

func (c *Commands) Help() Notification {
	return RenderHelp(c.cfg.Prefix)
}

func (c *Commands) publish(ctx context.Context, command string, payload msg.ControlCommand) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
	defer cancel()
	if err := c.pub.Publish(ctx, c.cfg.ControlTopic, []byte(payload)); err != nil {
		c.metrics.Publishes.WithLabelValues(command, "error").Inc()
		c.log.Warn("control publish failed", zap.String("command", command), zap.Error(err))
		return err
	}
	c.metrics.Publishes.WithLabelValues(command, "ok").Inc()
	c.log.Info("control message published", zap.String("command", command), zap.String("payload", string(payload)))
	return nil
}
