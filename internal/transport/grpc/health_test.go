package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func check(t *testing.T, h *Health, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := h.srv.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.GetStatus()
}

func Test_Health_FollowsConnectivity(t *testing.T) {
	// given
	h := NewHealth()
	ctx := context.Background()
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ServiceName))

	// when
	h.SetOnline(ctx, false)

	// then
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ""))

	h.SetOnline(ctx, true)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, h, ServiceName))
}

func Test_Health_Shutdown(t *testing.T) {
	h := NewHealth()

	h.Shutdown()

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, h, ServiceName))
}
