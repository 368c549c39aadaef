package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var (
	ErrNoDestination = errors.New("no notification destination bound")
	ErrQueueFull     = errors.New("notification queue full")
)

type NotifierConfig struct {
	QueueSize   int
	SendTimeout time.Duration

	// BreakerFailures consecutive send failures open the breaker for BreakerOpenFor.
	BreakerFailures int
	BreakerOpenFor  time.Duration
}

func (c NotifierConfig) withDefaults() NotifierConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 32
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 5 * time.Second
	}
	if c.BreakerFailures < 1 {
		c.BreakerFailures = 3
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = 30 * time.Second
	}
	return c
}

type envelope struct {
	dest string
	n    Notification
}

// Notifier is the best-effort path from the bridge loop to the chat sink.
// Notify only enqueues; a single dispatcher sends with its own timeout behind a
// circuit breaker. Failed sends are logged and dropped, never retried.
type Notifier struct {
	sink    Sink
	dest    *Destination
	cfg     NotifierConfig
	log     *zap.Logger
	metrics *Metrics
	cb      *gobreaker.CircuitBreaker
	queue   chan envelope

	mu      sync.RWMutex
	lastErr time.Time
}

func NewNotifier(sink Sink, dest *Destination, cfg NotifierConfig, log *zap.Logger, metrics *Metrics) *Notifier {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	n := &Notifier{
		sink:    sink,
		dest:    dest,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		queue:   make(chan envelope, cfg.QueueSize),
		lastErr: time.Now().Add(-24 * time.Hour),
	}
	n.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "chat-sink",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(cfg.BreakerFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("breaker state change", zap.String("breaker", name),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return n
}

// Notify queues msg for the currently bound destination without blocking.
// With no destination the message is dropped (ErrNoDestination); with a full
// queue it is dropped too (ErrQueueFull).
func (n *Notifier) Notify(msg Notification) error {
	dest, ok := n.dest.Current()
	if !ok {
		n.metrics.Notifications.WithLabelValues(resultUnbound).Inc()
		return ErrNoDestination
	}
	select {
	case n.queue <- envelope{dest: dest, n: msg}:
		return nil
	default:
		n.metrics.Notifications.WithLabelValues(resultQueueFull).Inc()
		return ErrQueueFull
	}
}

// Run drains the queue until ctx is done. Whatever is still queued then is dropped.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.queue:
			n.send(ctx, e)
		}
	}
}

func (n *Notifier) send(ctx context.Context, e envelope) {
	_, err := n.cb.Execute(func() (interface{}, error) {
		sctx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
		defer cancel()
		return nil, n.sink.Send(sctx, e.dest, e.n)
	})
	switch {
	case err == nil:
		n.metrics.Notifications.WithLabelValues(resultSent).Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		n.metrics.Notifications.WithLabelValues(resultBreakerOpen).Inc()
		n.log.Warn("notification dropped, chat sink breaker open", zap.String("destination", e.dest))
	default:
		n.markError()
		n.metrics.Notifications.WithLabelValues(resultFailed).Inc()
		n.log.Warn("notification send failed", zap.String("destination", e.dest), zap.Error(err))
	}
}

func (n *Notifier) markError() {
	n.mu.Lock()
	n.lastErr = time.Now()
	n.mu.Unlock()
}

// LastErrorAge is the time since the last failed send.
func (n *Notifier) LastErrorAge() time.Duration {
	if n == nil {
		return 99999 * time.Hour
	}
	n.mu.RLock()
	t := n.lastErr
	n.mu.RUnlock()
	return time.Since(t)
}

func (n *Notifier) BreakerState() gobreaker.State {
	return n.cb.State()
}
