package grpcserver

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rzbill/relay/internal/runtime"
)

const healthProbeInterval = 5 * time.Second

// watchHealth mirrors runtime health into hs until ctx is done.
func watchHealth(ctx context.Context, rt *runtime.Runtime, hs *health.Server) {
	set := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if err := rt.CheckHealth(ctx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(EventsServiceName, status)
	}
	set()
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			set()
		}
	}
}
