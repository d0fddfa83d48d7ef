package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCHealthFollowsReadiness(t *testing.T) {
	l := newLocal(t, false, entryA, entryB)
	g := NewGRPCServer(GRPCConfig{Translator: l, Logger: nullLogger()})
	ctx := context.Background()

	check := func(service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := g.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		require.NoError(t, err)
		return resp.Status
	}

	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(""))
	assert.False(t, g.updateHealth(ctx))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(HealthServiceName))

	require.NoError(t, l.InitializeModels(ctx, false))
	assert.True(t, g.updateHealth(ctx))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(""))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, check(HealthServiceName))
}
