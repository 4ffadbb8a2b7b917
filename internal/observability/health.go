package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"voice-chat-service/internal/observability/metrics"
)

// HealthReporter mirrors application readiness into the gRPC health service.
type HealthReporter struct {
	server   *health.Server
	ready    func() bool
	services []string
	metrics  *metrics.Metrics

	mu      sync.Mutex
	synced  bool
	serving bool
}

// NewHealthReporter reports ready() for the overall server ("") and each of
// services. Nothing is reported until the first Sync.
func NewHealthReporter(server *health.Server, ready func() bool, m *metrics.Metrics, services ...string) *HealthReporter {
	return &HealthReporter{
		server:   server,
		ready:    ready,
		services: append([]string{""}, services...),
		metrics:  m,
	}
}

// Sync publishes the current readiness and returns it.
func (h *HealthReporter) Sync() bool {
	serving := h.ready()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.synced && serving == h.serving {
		return serving
	}

	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	for _, svc := range h.services {
		h.server.SetServingStatus(svc, status)
	}
	h.synced = true
	h.serving = serving
	h.metrics.RecordHealth(serving)
	log.Info().Str("status", status.String()).Msg("gRPC health status changed")
	return serving
}

// Run syncs every interval until ctx is done.
func (h *HealthReporter) Run(ctx context.Context, interval time.Duration) {
	h.Sync()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sync()
		}
	}
}

// Shutdown reports NOT_SERVING for every service and ignores later updates.
func (h *HealthReporter) Shutdown() {
	h.server.Shutdown()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.synced = true
	h.serving = false
	h.metrics.RecordHealth(false)
}
