package translator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/backend"
	"github.com/dasmlab/polyglot/pkg/detect"
	"github.com/dasmlab/polyglot/pkg/graph"
)

// LocalConfig configures a Local translator.
type LocalConfig struct {
	// Backends are the selected catalog entries, in registration order.
	Backends []backend.Entry
	// Detector guesses source languages. Defaults to whatlanggo.
	Detector detect.Detector
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// Local translates with backends loaded in this process.
type Local struct {
	entries  []backend.Entry
	names    []string
	detector detect.Detector
	logger   *logrus.Logger
	pipeline *pipeline

	registry atomic.Pointer[backend.Registry]
	loaded   atomic.Bool
}

var _ Translator = (*Local)(nil)

// NewLocal creates a Local translator. The routing graph is built from the
// catalog declarations right away; backends are created by InitializeModels.
func NewLocal(cfg LocalConfig) (*Local, error) {
	if len(cfg.Backends) == 0 {
		return nil, errors.New("at least one backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Detector == nil {
		cfg.Detector = detect.NewWhatlang()
	}

	l := &Local{
		entries:  cfg.Backends,
		detector: cfg.Detector,
		logger:   cfg.Logger,
	}
	descs := make([]backend.Descriptor, 0, len(cfg.Backends))
	for _, e := range cfg.Backends {
		d, err := e.Descriptor()
		if err != nil {
			return nil, err
		}
		descs = append(descs, d)
		l.names = append(l.names, e.Name)
	}
	l.pipeline = &pipeline{
		graph:  graph.New(descs...),
		detect: l.DetectLanguage,
		hop:    l.DirectTranslate,
		logger: cfg.Logger,
	}
	return l, nil
}

// ModelsLoaded is true once InitializeModels has finished.
func (l *Local) ModelsLoaded(context.Context) bool {
	return l.loaded.Load()
}

// ModelsDetermined is always true: the selection is fixed by configuration.
func (l *Local) ModelsDetermined() bool {
	return true
}

// InitializeModels creates every selected backend and optionally preloads it.
func (l *Local) InitializeModels(ctx context.Context, preload bool) error {
	start := time.Now()
	l.logger.WithField("models", l.names).Info("Starting initialization of models")

	reg, err := backend.NewRegistry(ctx, l.entries, backend.Config{Logger: l.logger})
	if err != nil {
		return fmt.Errorf("initialize models: %w", err)
	}
	if preload {
		for _, name := range reg.Names() {
			b, _ := reg.Get(name)
			backend.Preload(ctx, b, l.logger)
		}
	}

	l.registry.Store(reg)
	l.loaded.Store(true)
	l.logger.WithFields(logrus.Fields{
		"models":      reg.Names(),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Models have been loaded")
	return nil
}

// DetectLanguage runs the configured detector, reporting detect.Unknown on failure.
func (l *Local) DetectLanguage(ctx context.Context, text string) (string, error) {
	lang := detect.Language(ctx, l.detector, text, l.logger)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return lang, nil
}

// ListModels returns the selected backend ids.
func (l *Local) ListModels() ([]string, error) {
	return append([]string(nil), l.names...), nil
}

// DirectTranslate runs one hop on a loaded backend.
func (l *Local) DirectTranslate(ctx context.Context, backendName, text string, pair backend.LanguagePair) (string, error) {
	if !l.loaded.Load() {
		return "", errNotLoaded()
	}
	b, ok := l.registry.Load().Get(backendName)
	if !ok {
		return "", fmt.Errorf("backend %q is not loaded", backendName)
	}
	return b.Translate(ctx, text, pair.Source, pair.Target)
}

// Translate implements Translator.
func (l *Local) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if !l.loaded.Load() {
		return "", errNotLoaded()
	}
	return l.pipeline.translate(ctx, text, targetLang, sourceLang)
}

// ListAvailableLanguages implements Translator.
func (l *Local) ListAvailableLanguages(base string) ([]string, error) {
	return l.pipeline.graph.StronglyConnectedComponent(base), nil
}
