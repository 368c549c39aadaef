package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/plant-bridge/internal/discord"
	"github.com/LeonardoBeccarini/plant-bridge/internal/services/bridge"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/dedup"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/logger"
	"github.com/LeonardoBeccarini/plant-bridge/pkg/mqttbus"
)

func main() {
	cfg, err := loadConfig(nil)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat, "plant-bridge")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("plant-bridge stopped", zap.Error(err))
	}
}

func run(cfg Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := bridge.NewMetrics(reg)

	cache := bridge.NewStateCache()
	dest := &bridge.Destination{}

	// === MQTT ===
	bus, err := mqttbus.Connect(ctx, mqttbus.Config{
		Host:           cfg.MQTT.Host,
		Port:           cfg.MQTT.Port,
		User:           cfg.MQTT.User,
		Password:       cfg.MQTT.Password,
		ClientID:       cfg.MQTT.ClientID,
		ConnectRetries: cfg.MQTT.Retries,
		KeepAlive:      cfg.MQTT.KeepAlive,
	}, lg.Named("mqtt"))
	if err != nil {
		return fmt.Errorf("mqtt connection: %w", err)
	}
	defer bus.Close()
	bus.BufferSize = cfg.MQTT.InboundQueue

	// === Commands + Discord ===
	commands := bridge.NewCommands(bus, cache, dest, bridge.CommandsConfig{
		Prefix:         cfg.Discord.Prefix,
		ControlTopic:   cfg.MQTT.ControlTopic,
		StatusWait:     cfg.StatusWait,
		FreshFor:       cfg.FreshFor,
		PublishTimeout: cfg.PublishTimeout,
	}, lg.Named("commands"), metrics)

	bot, err := discord.New(discord.Config{Token: cfg.Discord.Token, CommandTimeout: cfg.Discord.CommandTimeout}, commands, lg.Named("discord"))
	if err != nil {
		return err
	}

	notifier := bridge.NewNotifier(bot, dest, bridge.NotifierConfig{
		QueueSize:       cfg.NotifyQueue,
		SendTimeout:     cfg.NotifySendTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerOpenFor:  cfg.BreakerOpenFor,
	}, lg.Named("notifier"), metrics)

	// === Bridge loop ===
	inbound, err := bus.Subscribe(ctx, cfg.MQTT.StatusTopic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cfg.MQTT.StatusTopic, err)
	}
	loop := bridge.NewLoop(cache, notifier, dedup.New(cfg.DedupWindow, 1024), cfg.MQTT.StatusTopic, lg.Named("loop"), metrics)

	if err := bot.Open(); err != nil {
		return err
	}
	defer func() { _ = bot.Close() }()

	probe := bridge.Probe{Bus: bus, Chat: bot, Notifier: notifier, MinErrorAge: cfg.ReadinessGrace}

	// === HTTP ===
	mux := http.NewServeMux()
	mux.Handle("/healthz", bridge.NewHealthHandler(probe))
	mux.Handle("/readyz", bridge.NewReadyHandler(probe))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	hs := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// === gRPC health ===
	lis, err := net.Listen("tcp", ":"+strconv.Itoa(cfg.GRPCPort))
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	gs := grpc.NewServer()
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(gs, healthSrv)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		notifier.Run(gctx)
		return nil
	})
	g.Go(func() error {
		err := loop.Run(gctx, inbound)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		lg.Info("HTTP listening", zap.String("addr", hs.Addr))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		lg.Info("gRPC health listening", zap.String("addr", lis.Addr().String()))
		return gs.Serve(lis)
	})
	g.Go(func() error {
		bridge.SyncGRPCHealth(gctx, healthSrv, probe, 5*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shCtx)
		gs.GracefulStop()
		return nil
	})

	lg.Info("plant-bridge running",
		zap.String("control_topic", cfg.MQTT.ControlTopic),
		zap.String("status_topic", cfg.MQTT.StatusTopic))
	return g.Wait()
}
