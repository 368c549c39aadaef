package device_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/plant-bridge/internal/model"
	"github.com/LeonardoBeccarini/plant-bridge/internal/model/messages"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/mqttbus"
	"go.uber.org/zap"
)

// Device firmware constants.
const (
	PumpCooldown = 10 * time.Second
	DryThreshold = 20 // automatic watering at or below this soil percentage
	dryBand      = 30
	wetBand      = 60
)

// Publisher is the outbound side of the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// DeviceSimulator behaves like the plant monitor: it answers control commands
// on the control topic and reports status and events on the status topic.
type DeviceSimulator struct {
	log         *zap.Logger
	pub         Publisher
	gen         *DataGenerator
	statusTopic string
	now         func() time.Time

	mu          sync.Mutex
	pumpEnabled bool
	lastPump    time.Time
}

func NewDeviceSimulator(pub Publisher, gen *DataGenerator, statusTopic string, log *zap.Logger) *DeviceSimulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &DeviceSimulator{
		log:         log,
		pub:         pub,
		gen:         gen,
		statusTopic: statusTopic,
		now:         time.Now,
		pumpEnabled: true,
	}
}

// Start announces the device and then publishes a status report every interval
// until ctx is done or the control stream closes.
func (s *DeviceSimulator) Start(ctx context.Context, control <-chan mqttbus.Message, interval time.Duration) error {
	if err := s.publish(ctx, []byte(messages.LivenessToken)); err != nil {
		s.log.Warn("announce failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-control:
			if !ok {
				return nil
			}
			if err := s.HandleControl(ctx, m.Payload); err != nil {
				s.log.Warn("control handling failed", zap.String("payload", string(m.Payload)), zap.Error(err))
			}
		case <-ticker.C:
			if err := s.PublishStatus(ctx); err != nil {
				s.log.Warn("status publish failed", zap.Error(err))
			}
			if err := s.AutoWater(ctx); err != nil {
				s.log.Warn("automatic watering report failed", zap.Error(err))
			}
		}
	}
}

// HandleControl executes one control literal. Unknown commands are ignored.
func (s *DeviceSimulator) HandleControl(ctx context.Context, payload []byte) error {
	cmd := messages.ControlCommand(strings.TrimSpace(string(payload)))
	s.log.Debug("control received", zap.String("command", string(cmd)))

	switch cmd {
	case messages.ControlStatus:
		return s.PublishStatus(ctx)
	case messages.ControlPumpEnable:
		s.setPumpEnabled(true)
		return s.publishEvent(ctx, messages.EventMessage{Event: messages.EventPumpEnabled})
	case messages.ControlPumpDisable:
		s.setPumpEnabled(false)
		return s.publishEvent(ctx, messages.EventMessage{Event: messages.EventPumpDisabled})
	case messages.ControlPumpOn:
		return s.manualPump(ctx)
	default:
		s.log.Info("unknown control command", zap.String("command", string(cmd)))
		return nil
	}
}

// PublishStatus samples the sensors and publishes a status report.
func (s *DeviceSimulator) PublishStatus(ctx context.Context) error {
	r := s.gen.Next()
	s.mu.Lock()
	enabled := s.pumpEnabled
	s.mu.Unlock()

	soil := float64(r.SoilPercent)
	state := string(soilBand(r.SoilPercent))
	msg := messages.StatusMessage{
		Temperature:  &r.Temperature,
		Humidity:     &r.Humidity,
		SoilMoisture: &soil,
		Status:       &state,
		PumpEnabled:  &enabled,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return s.publish(ctx, payload)
}

// AutoWater runs the pump when the service is enabled, the soil is dry and the
// cooldown has elapsed. Otherwise it does nothing.
func (s *DeviceSimulator) AutoWater(ctx context.Context) error {
	s.mu.Lock()
	if !s.pumpEnabled || s.gen.SoilPercent() > DryThreshold || s.coolingDown() > 0 {
		s.mu.Unlock()
		return nil
	}
	s.runPumpLocked()
	s.mu.Unlock()

	s.log.Info("automatic watering")
	return s.publishEvent(ctx, messages.EventMessage{Event: messages.EventPumpActivated})
}

func (s *DeviceSimulator) manualPump(ctx context.Context) error {
	s.mu.Lock()
	left := s.coolingDown()
	if left > 0 {
		s.mu.Unlock()
		secs := int(left / time.Second)
		return s.publishEvent(ctx, messages.EventMessage{Event: messages.EventPumpCooldown, Seconds: &secs})
	}
	s.runPumpLocked()
	s.mu.Unlock()

	s.log.Info("manual watering")
	return s.publishEvent(ctx, messages.EventMessage{Event: messages.EventPumpActivated, Type: string(model.PumpManual)})
}

// PumpEnabled reports whether automatic watering is on.
func (s *DeviceSimulator) PumpEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pumpEnabled
}

func (s *DeviceSimulator) setPumpEnabled(v bool) {
	s.mu.Lock()
	s.pumpEnabled = v
	s.mu.Unlock()
}

// coolingDown returns the remaining cooldown; s.mu must be held.
func (s *DeviceSimulator) coolingDown() time.Duration {
	if s.lastPump.IsZero() {
		return 0
	}
	return PumpCooldown - s.now().Sub(s.lastPump)
}

func (s *DeviceSimulator) runPumpLocked() {
	s.gen.Water()
	s.lastPump = s.now()
}

func (s *DeviceSimulator) publishEvent(ctx context.Context, ev messages.EventMessage) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.Event, err)
	}
	return s.publish(ctx, payload)
}

func (s *DeviceSimulator) publish(ctx context.Context, payload []byte) error {
	if err := s.pub.Publish(ctx, s.statusTopic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", s.statusTopic, err)
	}
	return nil
}

func soilBand(percent int) model.SoilState {
	switch {
	case percent < dryBand:
		return model.SoilDry
	case percent < wetBand:
		return model.SoilOK
	default:
		return model.SoilWet
	}
}
