// Package grpc exposes the storefront health over the standard gRPC health protocol.
package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name of the storefront.
const ServiceName = "bazaar.storefront.v1.Storefront"

// Health reports SERVING while the backend is reachable and NOT_SERVING otherwise.
// The overall ("") status stays SERVING: the storefront keeps accepting requests offline.
type Health struct {
	srv *health.Server
}

func NewHealth() *Health {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &Health{srv: srv}
}

// Register adds the health service to s.
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// SetOnline matches connectivity.Listener.
func (h *Health) SetOnline(_ context.Context, online bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if online {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(ServiceName, status)
}

// Shutdown marks every service NOT_SERVING ahead of a graceful stop.
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}
