package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dasmlab/polyglot/pkg/api"
	"github.com/dasmlab/polyglot/pkg/backend"
	"github.com/dasmlab/polyglot/pkg/federation"
)

// fakePeers hosts one backend per peer and translates like the mock backend.
type fakePeers struct {
	mu        sync.Mutex
	hosts     map[string]string // peer -> backend
	inventory federation.Inventory
	healthy   atomic.Bool
	detected  string
	failWith  error
	calls     []string
	discovers int
}

func newFakePeers() *fakePeers {
	f := &fakePeers{
		hosts:     map[string]string{"p1": "A", "p2": "B"},
		inventory: federation.Inventory{"A": {"p1"}, "B": {"p2"}},
		detected:  "de",
	}
	f.healthy.Store(true)
	return f
}

func (f *fakePeers) Peers() []string { return []string{"p1", "p2"} }

func (f *fakePeers) Discover(context.Context) (federation.Inventory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovers++
	return f.inventory, nil
}

func (f *fakePeers) Healthy(context.Context) bool { return f.healthy.Load() }

func (f *fakePeers) PostTranslation(_ context.Context, peer string, req api.TranslationRequest) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "translate@"+peer)
	if f.failWith != nil {
		return nil, f.failWith
	}
	return []string{fmt.Sprintf("%s[%s;%s->%s]", req.Texts[0], f.hosts[peer], req.SourceLanguage, req.TargetLanguage)}, nil
}

func (f *fakePeers) PostDetection(_ context.Context, peer, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "detect@"+peer)
	if f.failWith != nil {
		return "", f.failWith
	}
	return f.detected, nil
}

func newFederated(t *testing.T, peers *fakePeers) *Federated {
	t.Helper()
	f, err := NewFederated(FederatedConfig{
		Client:  peers,
		Catalog: &backend.Catalog{Backends: scenarioEntries()},
		Pick:    func(n int) int { return n - 1 },
		Logger:  nullLogger(),
	})
	require.NoError(t, err)
	return f
}

func TestFederatedNotDetermined(t *testing.T) {
	f := newFederated(t, newFakePeers())
	ctx := context.Background()

	assert.False(t, f.ModelsDetermined())
	assert.False(t, f.ModelsLoaded(ctx))

	_, err := f.ListModels()
	assert.EqualError(t, err, "Models have not been determined yet.")
	_, err = f.ListAvailableLanguages("en")
	assert.True(t, IsNotReady(err))
	_, err = f.DetectLanguage(ctx, "Hallo")
	assert.True(t, IsNotReady(err))
	_, err = f.Translate(ctx, "X", "es", "de")
	assert.EqualError(t, err, "Models have not been loaded yet.")
}

func TestFederatedScenarios(t *testing.T) {
	peers := newFakePeers()
	f := newFederated(t, peers)
	ctx := context.Background()
	require.NoError(t, f.InitializeModels(ctx, false))

	assert.True(t, f.ModelsDetermined())
	models, err := f.ListModels()
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, models)

	out, err := f.Translate(ctx, "X", "es", "de")
	require.NoError(t, err)
	assert.Equal(t, "X[A;de->en][B;en->es]", out)

	out, err = f.Translate(ctx, "X", "de", "en")
	require.NoError(t, err)
	assert.Equal(t, "X[A;en->fr][A;fr->de]", out)

	assert.Equal(t, []string{"translate@p1", "translate@p2", "translate@p1", "translate@p1"}, peers.calls)
}

func TestFederatedDetectsOnce(t *testing.T) {
	peers := newFakePeers()
	f := newFederated(t, peers)
	ctx := context.Background()
	require.NoError(t, f.InitializeModels(ctx, false))

	out, err := f.Translate(ctx, "X", "es", "")
	require.NoError(t, err)
	assert.Equal(t, "X[A;de->en][B;en->es]", out)
	assert.Equal(t, "detect@p2", peers.calls[0], "detection goes to a peer picked among all peers")
	assert.Len(t, peers.calls, 3)
}

func TestFederatedHealthFlip(t *testing.T) {
	peers := newFakePeers()
	f := newFederated(t, peers)
	ctx := context.Background()
	require.NoError(t, f.InitializeModels(ctx, false))

	assert.True(t, f.ModelsLoaded(ctx))
	peers.healthy.Store(false)
	assert.False(t, f.ModelsLoaded(ctx))

	_, err := f.Translate(ctx, "X", "es", "de")
	assert.True(t, IsNotReady(err))

	peers.healthy.Store(true)
	assert.True(t, f.ModelsLoaded(ctx))
}

func TestFederatedPeerErrors(t *testing.T) {
	peers := newFakePeers()
	f := newFederated(t, peers)
	ctx := context.Background()
	require.NoError(t, f.InitializeModels(ctx, false))

	peers.failWith = &federation.Error{Kind: federation.KindTransport, Peer: "p1", Message: "request failed", Err: errors.New("connection refused")}
	_, err := f.Translate(ctx, "X", "en", "de")
	assert.ErrorIs(t, err, ErrUnexpected)

	peers.failWith = &federation.Error{Kind: federation.KindApplication, Peer: "p1", StatusCode: http.StatusServiceUnavailable, Message: "Models have not been loaded yet."}
	_, err = f.Translate(ctx, "X", "en", "de")
	fe, ok := federation.AsApplication(err)
	require.True(t, ok, "structured peer errors are forwarded")
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
}

func TestFederatedDetectionFailureSurfacesPeerError(t *testing.T) {
	peers := newFakePeers()
	f := newFederated(t, peers)
	ctx := context.Background()
	require.NoError(t, f.InitializeModels(ctx, false))

	peers.failWith = &federation.Error{Kind: federation.KindTransport, Peer: "p2", Message: "request failed"}
	_, err := f.Translate(ctx, "X", "en", "")
	assert.ErrorIs(t, err, ErrUnexpected)
	assert.False(t, IsUnsupportedInput(err))

	peers.failWith = &federation.Error{Kind: federation.KindApplication, Peer: "p2", StatusCode: http.StatusServiceUnavailable, Message: "Request limit exceeded"}
	_, err = f.Translate(ctx, "X", "en", "")
	fe, ok := federation.AsApplication(err)
	require.True(t, ok, "the peer's own error is forwarded")
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Equal(t, "Request limit exceeded", fe.Message)
}

func TestFederatedEmptyDetectionIsUnknown(t *testing.T) {
	peers := newFakePeers()
	peers.detected = ""
	f := newFederated(t, peers)
	ctx := context.Background()
	require.NoError(t, f.InitializeModels(ctx, false))

	_, err := f.Translate(ctx, "X", "en", "")
	assert.EqualError(t, err, "Language 'unknown' is not supported.")
}

func TestFederatedIgnoresBackendsMissingFromCatalog(t *testing.T) {
	peers := newFakePeers()
	peers.inventory = federation.Inventory{"A": {"p1"}, "nllb-200": {"p2"}}
	f := newFederated(t, peers)
	require.NoError(t, f.InitializeModels(context.Background(), false))

	models, err := f.ListModels()
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, models)

	langs, err := f.ListAvailableLanguages("en")
	require.NoError(t, err)
	assert.Equal(t, []string{"de", "en", "fr"}, langs)
}

func TestNewFederatedRequiresClient(t *testing.T) {
	_, err := NewFederated(FederatedConfig{})
	assert.Error(t, err)
}
