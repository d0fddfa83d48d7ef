// Package admission bounds the number of requests in flight across every
// instance sharing one counter store.
package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ErrRejected is returned by Acquire when the limit is reached.
var ErrRejected = errors.New("request limit exceeded")

// Limiter admits at most max concurrent requests. A max of 0 or less
// disables limiting entirely and the store is never touched.
type Limiter struct {
	store  Store
	max    int64
	logger *logrus.Logger
}

// New creates a limiter over store.
func New(store Store, max int, logger *logrus.Logger) *Limiter {
	if logger == nil {
		logger = logrus.New()
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{store: store, max: int64(max), logger: logger}
}

// Enabled reports whether requests are limited.
func (l *Limiter) Enabled() bool {
	return l.max > 0
}

// Max returns the configured limit.
func (l *Limiter) Max() int {
	return int(l.max)
}

// Reset sets the shared counter to 0. It is called once at startup.
func (l *Limiter) Reset(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	if err := l.store.Reset(ctx); err != nil {
		storeErrorsTotal.WithLabelValues("reset").Inc()
		return err
	}
	inFlight.Set(0)
	return nil
}

// Acquire takes one slot or fails with ErrRejected. Every successful
// Acquire must be paired with exactly one Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if !l.Enabled() {
		return nil
	}
	admitted, observed, err := l.store.TryAcquire(ctx, l.max)
	if err != nil {
		storeErrorsTotal.WithLabelValues("acquire").Inc()
		return fmt.Errorf("admission: %w", err)
	}
	if !admitted {
		rejectionsTotal.Inc()
		inFlight.Set(float64(observed))
		l.logger.WithFields(logrus.Fields{
			"in_flight": observed,
			"limit":     l.max,
		}).Warn("Request limit exceeded")
		return ErrRejected
	}
	inFlight.Set(float64(observed + 1))
	return nil
}

// Release gives back a slot taken by Acquire.
func (l *Limiter) Release(ctx context.Context) {
	if !l.Enabled() {
		return
	}
	released, current, err := l.store.Release(ctx)
	if err != nil {
		storeErrorsTotal.WithLabelValues("release").Inc()
		l.logger.WithError(err).Error("Failed to release admission slot")
		return
	}
	inFlight.Set(float64(current))
	if !released {
		l.logger.WithField("in_flight", current).Error("Released an admission slot while the counter was already 0")
	}
}

// Do runs fn holding one slot. The slot is released on every return path
// of fn, including panics.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	// Release must not be skipped when the request context is cancelled.
	defer l.Release(context.WithoutCancel(ctx))
	return fn(ctx)
}
