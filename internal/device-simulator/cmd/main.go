// Command device-sim stands in for the plant monitor on the MQTT bus.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	deviceSimulator "github.com/LeonardoBeccarini/plant-bridge/internal/device-simulator"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/logger"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/mqttbus"
	"go.uber.org/zap"
)

func main() {
	host := flag.String("host", "localhost", "MQTT broker host")
	port := flag.Int("port", 1883, "MQTT broker port")
	clientID := flag.String("client-id", "esp32-sim", "MQTT client ID")
	controlTopic := flag.String("control-topic", "esp32/control", "topic the device listens on")
	statusTopic := flag.String("status-topic", "esp32/status", "topic the device reports on")
	interval := flag.Duration("interval", 10*time.Second, "status publish interval")
	decay := flag.Float64("decay", 0.01, "soil saturation lost per minute")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	lg, err := logger.New(*level, "console", "device-sim")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus, err := mqttbus.Connect(ctx, mqttbus.Config{
		Host:           *host,
		Port:           *port,
		ClientID:       *clientID,
		ConnectRetries: 5,
		MaxConnectTime: 30 * time.Second,
	}, lg.Named("mqtt"))
	if err != nil {
		lg.Fatal("mqtt connect", zap.Error(err))
	}
	defer bus.Close()

	control, err := bus.Subscribe(ctx, *controlTopic)
	if err != nil {
		lg.Fatal("subscribe", zap.String("topic", *controlTopic), zap.Error(err))
	}

	gen := deviceSimulator.NewDataGenerator(*decay, time.Now().UnixNano())
	sim := deviceSimulator.NewDeviceSimulator(bus, gen, *statusTopic, lg)
	lg.Info("device simulator started", zap.String("control", *controlTopic), zap.String("status", *statusTopic))
	if err := sim.Start(ctx, control, *interval); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("simulator stopped", zap.Error(err))
	}
}
