// Package translator answers translation requests between any two
// languages connected by a chain of backends.
//
// Local runs every hop on backends loaded in this process. Federated
// forwards every hop to a peer instance hosting the backend. Both build
// the same routing graph from backend descriptors and share one request
// pipeline.
package translator

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/backend"
	"github.com/dasmlab/polyglot/pkg/detect"
	"github.com/dasmlab/polyglot/pkg/graph"
)

// Translator is implemented by Local and Federated.
type Translator interface {
	// ModelsLoaded reports whether requests can be served right now.
	ModelsLoaded(ctx context.Context) bool
	// ModelsDetermined reports whether the set of backends is known.
	ModelsDetermined() bool
	// InitializeModels loads (or discovers) the backends. It blocks until
	// done or ctx is cancelled.
	InitializeModels(ctx context.Context, preload bool) error
	// DetectLanguage returns the language code of text.
	DetectLanguage(ctx context.Context, text string) (string, error)
	// ListModels returns the ids of the active backends.
	ListModels() ([]string, error)
	// DirectTranslate runs a single hop on the named backend.
	DirectTranslate(ctx context.Context, backendName, text string, pair backend.LanguagePair) (string, error)
	// Translate translates text into targetLang. An empty sourceLang is detected.
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)
	// ListAvailableLanguages returns the languages mutually reachable with base.
	ListAvailableLanguages(base string) ([]string, error)
}

// pipeline is the request path shared by both translators.
type pipeline struct {
	graph  *graph.Graph
	detect func(ctx context.Context, text string) (string, error)
	hop    func(ctx context.Context, backendName, text string, pair backend.LanguagePair) (string, error)
	logger *logrus.Logger
}

func (p *pipeline) translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if sourceLang == "" {
		detected, err := p.detect(ctx, text)
		if err != nil {
			return "", err
		}
		if detected == "" {
			detected = detect.Unknown
		}
		sourceLang = detected
	}
	for _, lang := range []string{sourceLang, targetLang} {
		if !p.graph.Contains(lang) {
			return "", &UnsupportedLanguageError{Language: lang}
		}
	}

	path, err := p.graph.FindOptimalPath(sourceLang, targetLang)
	if err != nil {
		return "", &UnsupportedLanguagePairError{Source: sourceLang, Target: targetLang}
	}
	p.logger.WithFields(logrus.Fields{
		"source_lang": sourceLang,
		"target_lang": targetLang,
		"path":        path.String(),
		"weight":      path.Weight(),
	}).Debug("Translation path")

	for _, h := range path {
		text, err = p.hop(ctx, h.Backend, text, backend.LanguagePair{Source: h.Source, Target: h.Target})
		if err != nil {
			return "", err
		}
	}
	return text, nil
}
