package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultWorkerConnections bounds concurrent requests to one worker socket.
	DefaultWorkerConnections = 4
	// DefaultWorkerTimeout is the deadline of one request/response exchange.
	DefaultWorkerTimeout = 5 * time.Minute
	// workerSlotWait is how long a request waits for a free connection slot.
	workerSlotWait = 10 * time.Second
)

// WorkerBackend talks to a long-running inference worker (model loading,
// tokenization and GPU placement live there) over a unix domain socket.
// Each exchange is one JSON request line answered by one JSON response.
type WorkerBackend struct {
	descriptor Descriptor
	socketPath string
	timeout    time.Duration
	slots      chan struct{}
	logger     *logrus.Entry
	dial       func(ctx context.Context) (net.Conn, error)
}

// workerRequest is sent to the worker.
type workerRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// workerResponse is read back from the worker.
type workerResponse struct {
	Success        bool   `json:"success"`
	TranslatedText string `json:"translated_text,omitempty"`
	Error          string `json:"error,omitempty"`
}

// NewWorkerBackend creates a backend for the worker listening on socketPath.
func NewWorkerBackend(d Descriptor, socketPath string, connections int, timeout time.Duration, logger *logrus.Logger) (*WorkerBackend, error) {
	if socketPath == "" {
		return nil, errors.New("worker socket path is required")
	}
	if connections <= 0 {
		connections = DefaultWorkerConnections
	}
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	w := &WorkerBackend{
		descriptor: d,
		socketPath: socketPath,
		timeout:    timeout,
		slots:      make(chan struct{}, connections),
		logger:     logger.WithField("backend", d.Name),
	}
	w.dial = func(ctx context.Context) (net.Conn, error) {
		var dialer net.Dialer
		return dialer.DialContext(ctx, "unix", w.socketPath)
	}
	return w, nil
}

// Descriptor implements Backend.
func (w *WorkerBackend) Descriptor() Descriptor {
	return w.descriptor
}

// Translate sends one translation to the worker.
func (w *WorkerBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := checkPair(w.descriptor, sourceLang, targetLang); err != nil {
		return "", err
	}
	startTime := time.Now()

	waitStart := time.Now()
	select {
	case w.slots <- struct{}{}:
		workerQueueWaitTime.WithLabelValues(w.descriptor.Name).Observe(time.Since(waitStart).Seconds())
	case <-ctx.Done():
		observeHop(w.descriptor.Name, false, time.Since(startTime))
		return "", ctx.Err()
	case <-time.After(workerSlotWait):
		observeHop(w.descriptor.Name, false, time.Since(startTime))
		return "", fmt.Errorf("timeout waiting for available worker connection")
	}
	workerBusyConnections.WithLabelValues(w.descriptor.Name).Inc()
	defer func() {
		workerBusyConnections.WithLabelValues(w.descriptor.Name).Dec()
		<-w.slots
	}()

	result, err := w.exchange(ctx, &workerRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	})
	observeHop(w.descriptor.Name, err == nil, time.Since(startTime))
	if err != nil {
		w.logger.WithError(err).WithFields(logrus.Fields{
			"source_lang": sourceLang,
			"target_lang": targetLang,
		}).Error("Worker translation failed")
		return "", err
	}
	return result, nil
}

func (w *WorkerBackend) exchange(ctx context.Context, req *workerRequest) (string, error) {
	conn, err := w.dial(ctx)
	if err != nil {
		socketConnectionsTotal.WithLabelValues(w.descriptor.Name, "error").Inc()
		return "", fmt.Errorf("failed to connect to worker socket: %w", err)
	}
	defer conn.Close()
	socketConnectionsTotal.WithLabelValues(w.descriptor.Name, "success").Inc()

	deadline := time.Now().Add(w.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	var resp workerResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("worker connection closed")
		}
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if !resp.Success {
		return "", fmt.Errorf("translation failed: %s", resp.Error)
	}
	return resp.TranslatedText, nil
}
