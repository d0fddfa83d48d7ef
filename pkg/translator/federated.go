package translator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/api"
	"github.com/dasmlab/polyglot/pkg/backend"
	"github.com/dasmlab/polyglot/pkg/federation"
	"github.com/dasmlab/polyglot/pkg/graph"
)

// PeerClient is the part of *federation.Client a Federated translator uses.
type PeerClient interface {
	Peers() []string
	Discover(ctx context.Context) (federation.Inventory, error)
	Healthy(ctx context.Context) bool
	PostTranslation(ctx context.Context, peer string, req api.TranslationRequest) ([]string, error)
	PostDetection(ctx context.Context, peer, text string) (string, error)
}

// FederatedConfig configures a Federated translator.
type FederatedConfig struct {
	// Client talks to the peers. Required.
	Client PeerClient
	// Catalog provides pairs and grades of the backends peers report.
	// Defaults to backend.DefaultCatalog().
	Catalog *backend.Catalog
	// Pick returns a uniformly random index in [0, n). Defaults to rand.IntN.
	Pick func(n int) int
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// federatedState is built once discovery completes and never changes.
type federatedState struct {
	inventory federation.Inventory
	models    []string
	pipeline  *pipeline
}

// Federated forwards every hop and detection to peer instances.
type Federated struct {
	client  PeerClient
	catalog *backend.Catalog
	pick    func(int) int
	logger  *logrus.Logger

	state atomic.Pointer[federatedState]
}

var _ Translator = (*Federated)(nil)

// NewFederated creates a Federated translator. Nothing is contacted until
// InitializeModels runs.
func NewFederated(cfg FederatedConfig) (*Federated, error) {
	if cfg.Client == nil {
		return nil, errors.New("a federation client is required")
	}
	if cfg.Catalog == nil {
		cfg.Catalog = backend.DefaultCatalog()
	}
	if cfg.Pick == nil {
		cfg.Pick = rand.Intn
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Federated{
		client:  cfg.Client,
		catalog: cfg.Catalog,
		pick:    cfg.Pick,
		logger:  cfg.Logger,
	}, nil
}

// ModelsDetermined is true once discovery has completed.
func (f *Federated) ModelsDetermined() bool {
	return f.state.Load() != nil
}

// ModelsLoaded polls every peer on each call and is true only while all of
// them report themselves available.
func (f *Federated) ModelsLoaded(ctx context.Context) bool {
	if !f.ModelsDetermined() {
		return false
	}
	return f.client.Healthy(ctx)
}

// InitializeModels discovers which peer hosts which backend. It retries
// until every peer answered in the same round, so it only fails when ctx
// is cancelled. Preloading is left to the peers.
func (f *Federated) InitializeModels(ctx context.Context, _ bool) error {
	f.logger.WithField("peers", f.client.Peers()).Info("Starting translator proxy initialization")

	inv, err := f.client.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover peer models: %w", err)
	}

	names := make([]string, 0, len(inv))
	for name := range inv {
		if _, ok := f.catalog.Lookup(name); !ok {
			f.logger.WithFields(logrus.Fields{
				"backend": name,
				"peers":   inv[name],
			}).Warn("Peer reports a backend missing from the catalog, ignoring it")
			continue
		}
		names = append(names, name)
	}
	descs := f.catalog.Descriptors(names)
	models := make([]string, 0, len(descs))
	for _, d := range descs {
		models = append(models, d.Name)
	}

	s := &federatedState{inventory: inv, models: models}
	s.pipeline = &pipeline{
		graph:  graph.New(descs...),
		detect: f.DetectLanguage,
		hop:    f.DirectTranslate,
		logger: f.logger,
	}
	f.state.Store(s)

	f.logger.WithField("models", models).Info("Detected client models")
	return nil
}

// DetectLanguage asks a random peer.
func (f *Federated) DetectLanguage(ctx context.Context, text string) (string, error) {
	if !f.ModelsDetermined() {
		return "", errNotDetermined()
	}
	peers := f.client.Peers()
	peer := peers[f.pick(len(peers))]
	f.logger.WithField("peer", peer).Debug("Language detection call")

	lang, err := f.client.PostDetection(ctx, peer, text)
	if err != nil {
		return "", f.peerError(err)
	}
	return lang, nil
}

// ListModels returns the discovered backend ids in catalog order.
func (f *Federated) ListModels() ([]string, error) {
	s := f.state.Load()
	if s == nil {
		return nil, errNotDetermined()
	}
	return append([]string(nil), s.models...), nil
}

// DirectTranslate forwards one hop to a random peer hosting the backend.
func (f *Federated) DirectTranslate(ctx context.Context, backendName, text string, pair backend.LanguagePair) (string, error) {
	s := f.state.Load()
	if s == nil {
		return "", errNotDetermined()
	}
	peers := s.inventory[backendName]
	if len(peers) == 0 {
		return "", fmt.Errorf("no peer hosts backend %q", backendName)
	}
	peer := peers[f.pick(len(peers))]
	f.logger.WithFields(logrus.Fields{
		"peer":        peer,
		"backend":     backendName,
		"source_lang": pair.Source,
		"target_lang": pair.Target,
	}).Debug("Forwarding translation hop")

	texts, err := f.client.PostTranslation(ctx, peer, api.TranslationRequest{
		Texts:          []string{text},
		SourceLanguage: pair.Source,
		TargetLanguage: pair.Target,
	})
	if err != nil {
		return "", f.peerError(err)
	}
	if len(texts) != 1 {
		f.logger.WithFields(logrus.Fields{
			"peer":  peer,
			"texts": len(texts),
		}).Error("Peer returned an unexpected number of texts")
		return "", ErrUnexpected
	}
	return texts[0], nil
}

// Translate implements Translator.
func (f *Federated) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if !f.ModelsLoaded(ctx) {
		return "", errNotLoaded()
	}
	return f.state.Load().pipeline.translate(ctx, text, targetLang, sourceLang)
}

// ListAvailableLanguages implements Translator.
func (f *Federated) ListAvailableLanguages(base string) ([]string, error) {
	s := f.state.Load()
	if s == nil {
		return nil, errNotDetermined()
	}
	return s.pipeline.graph.StronglyConnectedComponent(base), nil
}

// peerError passes structured peer errors and cancellations through and
// hides everything else behind ErrUnexpected.
func (f *Federated) peerError(err error) error {
	if _, ok := federation.AsApplication(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var fe *federation.Error
	if errors.As(err, &fe) {
		f.logger.WithError(err).WithField("peer", fe.Peer).Error("Call to peer failed")
	} else {
		f.logger.WithError(err).Error("Call to peer failed")
	}
	return ErrUnexpected
}
