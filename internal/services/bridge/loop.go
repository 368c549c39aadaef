package bridge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/plant-bridge/internal/model"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/dedup"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/mqttbus"
)

// notifier is the non-blocking hand-off used by the loop.
type notifier interface {
	Notify(Notification) error
}

// Loop consumes the status topic: status updates go to the cache, events and
// liveness announcements go to the notifier. A bad message never stops it.
type Loop struct {
	cache       *StateCache
	notifier    notifier
	deduper     *dedup.Deduper
	statusTopic string
	log         *zap.Logger
	metrics     *Metrics
}

// NewLoop builds the loop. An empty statusTopic accepts every topic; a nil
// deduper disables duplicate suppression.
func NewLoop(cache *StateCache, n notifier, deduper *dedup.Deduper, statusTopic string, log *zap.Logger, metrics *Metrics) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Loop{cache: cache, notifier: n, deduper: deduper, statusTopic: statusTopic, log: log, metrics: metrics}
}

// Run processes in until ctx is done or the stream is closed.
func (l *Loop) Run(ctx context.Context, in <-chan mqttbus.Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-in:
			if !ok {
				l.log.Info("inbound stream closed")
				return nil
			}
			l.Handle(m)
		}
	}
}

// Handle processes a single inbound message.
func (l *Loop) Handle(m mqttbus.Message) {
	if l.statusTopic != "" && m.Topic != l.statusTopic {
		l.metrics.Inbound.WithLabelValues(kindIgnored).Inc()
		l.log.Debug("ignoring message on unexpected topic", zap.String("topic", m.Topic))
		return
	}

	classified, err := Classify(m.Payload)
	if err != nil {
		l.metrics.Inbound.WithLabelValues(kindMalformed).Inc()
		l.log.Warn("dropping malformed payload", zap.String("topic", m.Topic),
			zap.ByteString("payload", m.Payload), zap.Error(err))
		return
	}

	switch v := classified.(type) {
	case model.StatusUpdate:
		l.metrics.Inbound.WithLabelValues(kindStatus).Inc()
		l.cache.Update(v.Snapshot)
		l.log.Debug("status snapshot updated", zap.String("soil", string(v.Snapshot.SoilState)))
	case model.DeviceEvent:
		if l.redelivered(m) {
			l.metrics.Inbound.WithLabelValues(kindDuplicate).Inc()
			l.log.Debug("redelivered device event suppressed", zap.String("event", v.EventName()),
				zap.Uint16("message_id", m.MessageID))
			return
		}
		l.metrics.Inbound.WithLabelValues(kindEvent).Inc()
		l.forward(v)
	}
}

// redelivered reports whether m is a broker redelivery of a message already
// handled. Identical payloads arriving as separate deliveries are never suppressed.
func (l *Loop) redelivered(m mqttbus.Message) bool {
	if m.MessageID == 0 {
		return false
	}
	key := fmt.Sprintf("%s#%d", m.Topic, m.MessageID)
	if !m.Duplicate {
		l.deduper.Mark(key)
		return false
	}
	return !l.deduper.ShouldProcess(key)
}

func (l *Loop) forward(ev model.DeviceEvent) {
	err := l.notifier.Notify(RenderEvent(ev))
	switch {
	case err == nil:
		l.log.Info("device event forwarded", zap.String("event", ev.EventName()))
	case errors.Is(err, ErrNoDestination):
		l.log.Debug("no destination bound, event dropped", zap.String("event", ev.EventName()))
	default:
		l.log.Warn("event dropped", zap.String("event", ev.EventName()), zap.Error(err))
	}
}
