package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind selects the engine implementation behind a backend.
type Kind string

const (
	// KindMock is an in-process backend that only decorates text.
	KindMock Kind = "mock"
	// KindLibreTranslate uses a LibreTranslate HTTP server.
	KindLibreTranslate Kind = "libretranslate"
	// KindArgos uses an Argos Translate HTTP service.
	KindArgos Kind = "argos"
	// KindWorker talks to an inference worker over a unix socket.
	KindWorker Kind = "worker"
	// KindLambda invokes an AWS Lambda translator function.
	KindLambda Kind = "lambda"
)

// ParseKind parses a catalog kind, case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindMock, KindLibreTranslate, KindArgos, KindWorker, KindLambda:
		return k, nil
	default:
		return "", fmt.Errorf("unknown backend kind: %q (supported: mock, libretranslate, argos, worker, lambda)", s)
	}
}

// Config holds what every backend constructor needs besides its catalog entry.
type Config struct {
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// New creates the backend described by the catalog entry.
func New(ctx context.Context, e Entry, cfg Config) (Backend, error) {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	d, err := e.Descriptor()
	if err != nil {
		return nil, err
	}
	kind, err := ParseKind(string(e.Kind))
	if err != nil {
		return nil, err
	}
	var timeout time.Duration
	if e.Timeout != "" {
		if timeout, err = time.ParseDuration(e.Timeout); err != nil {
			return nil, fmt.Errorf("backend %s: invalid timeout: %w", e.Name, err)
		}
	}

	cfg.Logger.WithFields(logrus.Fields{
		"backend": e.Name,
		"kind":    kind,
		"grade":   e.Grade,
		"pairs":   len(d.Pairs),
	}).Info("Creating backend instance")

	start := time.Now()
	var b Backend
	switch kind {
	case KindMock:
		b = NewMock(d)
	case KindLibreTranslate:
		b = NewLibreTranslateClient(d, e.URL, timeout, cfg.Logger)
	case KindArgos:
		b = NewArgosClient(d, e.URL, timeout, cfg.Logger)
	case KindWorker:
		b, err = NewWorkerBackend(d, e.Socket, e.Workers, timeout, cfg.Logger)
	case KindLambda:
		b, err = NewLambdaBackend(ctx, d, e.Function, e.Region, cfg.Logger)
	}
	if err != nil {
		return nil, fmt.Errorf("create backend %s: %w", e.Name, err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"backend":     e.Name,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Backend load time")
	return b, nil
}
