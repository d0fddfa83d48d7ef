package federation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/polyglot/pkg/api"
)

func modelsServer(t *testing.T, calls *atomic.Int32, models func(call int32) []string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		n := calls.Add(1)
		writeJSON(w, http.StatusOK, api.ModelsResponse{Models: models(n)})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverRetriesWholeRound(t *testing.T) {
	var callsA, callsB atomic.Int32
	a := modelsServer(t, &callsA, func(int32) []string { return []string{"A", "shared"} })
	b := modelsServer(t, &callsB, func(n int32) []string {
		if n == 1 {
			return []string{}
		}
		return []string{"B", "shared"}
	})

	c := newTestClient(t, map[string]*httptest.Server{"a": a, "b": b})
	inv, err := c.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), callsA.Load(), "the healthy peer is queried again in the second round")
	assert.Equal(t, int32(2), callsB.Load())
	assert.Equal(t, Inventory{
		"A":      {"a"},
		"B":      {"b"},
		"shared": {"a", "b"},
	}, inv)
}

func TestDiscoverStopsOnContextCancel(t *testing.T) {
	var calls atomic.Int32
	empty := modelsServer(t, &calls, func(int32) []string { return nil })

	c := newTestClient(t, map[string]*httptest.Server{"a": empty})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Discover(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Greater(t, calls.Load(), int32(1))
}

func TestHealthyFlipsWithPeerHealth(t *testing.T) {
	var bAvailable atomic.Bool
	bAvailable.Store(true)

	healthServer := func(available func() bool) *httptest.Server {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.HealthResponse{Healthy: true, ServiceAvailable: available()})
		}))
		t.Cleanup(srv.Close)
		return srv
	}
	a := healthServer(func() bool { return true })
	b := healthServer(bAvailable.Load)

	c := newTestClient(t, map[string]*httptest.Server{"a": a, "b": b})
	ctx := context.Background()

	assert.True(t, c.Healthy(ctx))
	bAvailable.Store(false)
	assert.False(t, c.Healthy(ctx))
	bAvailable.Store(true)
	assert.True(t, c.Healthy(ctx))
}

func TestHealthyWithUnreachablePeer(t *testing.T) {
	a := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, api.HealthResponse{Healthy: true, ServiceAvailable: true})
	}))
	defer a.Close()
	b := httptest.NewServer(http.NotFoundHandler())
	b.Close()

	c := newTestClient(t, map[string]*httptest.Server{"a": a, "b": b})
	assert.False(t, c.Healthy(context.Background()))
}
