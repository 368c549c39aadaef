package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Connectivity is implemented by the bus client and the chat session.
type Connectivity interface {
	IsConnected() bool
}

// Probe reports the health of the bridge dependencies.
type Probe struct {
	Bus      Connectivity
	Chat     Connectivity
	Notifier *Notifier
	// MinErrorAge: a send error younger than this makes the bridge not ready.
	MinErrorAge time.Duration
}

type HealthStatus struct {
	Status         string  `json:"status"`
	MQTTConnected  bool    `json:"mqtt_connected"`
	ChatConnected  bool    `json:"chat_connected"`
	Breaker        string  `json:"notify_breaker"`
	LastSendErrorS float64 `json:"last_send_error_age_sec"`
}

func connected(c Connectivity) bool {
	return c != nil && c.IsConnected()
}

// Check evaluates the probe: ok when everything is up, degraded when only part is, down otherwise.
func (p Probe) Check() HealthStatus {
	st := HealthStatus{
		MQTTConnected:  connected(p.Bus),
		ChatConnected:  connected(p.Chat),
		LastSendErrorS: p.Notifier.LastErrorAge().Seconds(),
	}
	if p.Notifier != nil {
		st.Breaker = p.Notifier.BreakerState().String()
	}
	switch {
	case st.MQTTConnected && st.ChatConnected && p.Notifier.LastErrorAge() > p.MinErrorAge:
		st.Status = "ok"
	case st.MQTTConnected || st.ChatConnected:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

// Ready is true only when both connections are up and no send failed recently.
func (p Probe) Ready() bool {
	return p.Check().Status == "ok"
}

type healthHandler struct{ probe Probe }

// NewHealthHandler serves /healthz.
func NewHealthHandler(p Probe) http.Handler { return &healthHandler{probe: p} }

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.probe.Check())
}

type readyHandler struct{ probe Probe }

// NewReadyHandler serves /readyz: 200 only when Ready.
func NewReadyHandler(p Probe) http.Handler { return &readyHandler{probe: p} }

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.probe.Ready()
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}

// SyncGRPCHealth mirrors the probe into the gRPC health server every interval until ctx is done.
func SyncGRPCHealth(ctx context.Context, hs *health.Server, p Probe, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Second
	}
	set := func() {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if p.Ready() {
			status = healthpb.HealthCheckResponse_SERVING
		}
		hs.SetServingStatus("", status)
	}
	set()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			set()
		}
	}
}
