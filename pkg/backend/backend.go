// Package backend defines the translation backends the router composes.
// A backend translates directly between a fixed, declared set of directed
// language pairs and carries a quality grade; lower grades are preferred.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// LanguagePair is a directed translation from Source to Target.
// Language codes are opaque; they are compared as-is.
type LanguagePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (p LanguagePair) String() string {
	return p.Source + "->" + p.Target
}

// ParseLanguagePair parses a catalog pair. "src->tgt" allows codes that
// contain hyphens (zh-TW->en); the "src-tgt" shorthand must have exactly
// one hyphen so a code is never split.
func ParseLanguagePair(s string) (LanguagePair, error) {
	s = strings.TrimSpace(s)
	sep := "->"
	if !strings.Contains(s, sep) {
		if strings.Count(s, "-") != 1 {
			return LanguagePair{}, fmt.Errorf("invalid language pair %q (expected src-tgt, or src->tgt for hyphenated codes)", s)
		}
		sep = "-"
	}
	src, tgt, _ := strings.Cut(s, sep)
	src, tgt = strings.TrimSpace(src), strings.TrimSpace(tgt)
	if src == "" || tgt == "" || strings.Contains(tgt, "->") {
		return LanguagePair{}, fmt.Errorf("invalid language pair %q (expected src-tgt, or src->tgt for hyphenated codes)", s)
	}
	return LanguagePair{Source: src, Target: tgt}, nil
}

// Descriptor is the static capability declaration of a backend.
// It is all the routing graph needs to know about a backend, so a
// federated instance can route over backends that only exist on peers.
type Descriptor struct {
	Name         string
	Pairs        []LanguagePair
	QualityGrade int
}

// Supports reports whether the pair is declared by the descriptor.
func (d Descriptor) Supports(source, target string) bool {
	for _, p := range d.Pairs {
		if p.Source == source && p.Target == target {
			return true
		}
	}
	return false
}

// Backend is a loaded translation engine.
type Backend interface {
	// Descriptor returns the capability declaration of the backend.
	Descriptor() Descriptor

	// Translate translates text directly from sourceLang to targetLang.
	// It fails if the pair is not declared by the backend.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Preloader is implemented by backends that warm up differently than by
// translating a dummy text for every declared pair.
type Preloader interface {
	Preload(ctx context.Context) error
}

// UnsupportedPairError is returned by backends asked for an undeclared pair.
type UnsupportedPairError struct {
	Backend string
	Pair    LanguagePair
}

func (e *UnsupportedPairError) Error() string {
	return fmt.Sprintf("direct translation from %s to %s is not available in %s",
		e.Pair.Source, e.Pair.Target, e.Backend)
}

func checkPair(d Descriptor, sourceLang, targetLang string) error {
	if !d.Supports(sourceLang, targetLang) {
		return &UnsupportedPairError{Backend: d.Name, Pair: LanguagePair{Source: sourceLang, Target: targetLang}}
	}
	return nil
}

// Preload warms up a backend. Backends implementing Preloader do it their
// own way; all others translate "text" once per declared pair. Failures of
// single pairs are logged and skipped.
func Preload(ctx context.Context, b Backend, logger *logrus.Logger) {
	if logger == nil {
		logger = logrus.New()
	}
	d := b.Descriptor()
	log := logger.WithField("backend", d.Name)

	if p, ok := b.(Preloader); ok {
		if err := p.Preload(ctx); err != nil {
			log.WithError(err).Error("Failed to preload backend")
		}
		return
	}

	start := time.Now()
	for i, pair := range d.Pairs {
		log.WithFields(logrus.Fields{
			"pair":      pair.String(),
			"processed": i,
			"total":     len(d.Pairs),
		}).Info("Preloading language pair")
		if _, err := b.Translate(ctx, "text", pair.Source, pair.Target); err != nil {
			log.WithError(err).WithField("pair", pair.String()).Error("Failed to preload language pair")
		}
	}
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("Backend preloaded")
}
