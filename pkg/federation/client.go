// Package federation talks to peer instances of the translation service.
//
// Peers speak the same HTTP contract as the public API. The client finds
// out which peer hosts which backend, resolves peer addresses and runs
// remote calls with a bounded retry on transport failures.
package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/api"
)

const (
	// DefaultAttempts is how often a peer call is tried on transport failures.
	DefaultAttempts = 3
	// DefaultRetryDelay separates two attempts of one peer call.
	DefaultRetryDelay = 5 * time.Second
	// DefaultDiscoveryDelay separates two discovery rounds.
	DefaultDiscoveryDelay = 30 * time.Second
	// DefaultRequestTimeout bounds one HTTP exchange with a peer.
	DefaultRequestTimeout = 5 * time.Minute
)

// Config configures a Client.
type Config struct {
	// Peers are the peer ids, in a stable order.
	Peers []string
	// Resolver maps peer ids to addresses. Required.
	Resolver Resolver
	// HTTPClient is used for peer calls. If nil, one with DefaultRequestTimeout is created.
	HTTPClient *http.Client
	// Attempts, RetryDelay and DiscoveryDelay default to the package defaults when zero.
	Attempts       int
	RetryDelay     time.Duration
	DiscoveryDelay time.Duration
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// Client calls peers over HTTP.
type Client struct {
	peers          []string
	resolver       Resolver
	httpClient     *http.Client
	attempts       int
	retryDelay     time.Duration
	discoveryDelay time.Duration
	logger         *logrus.Logger
}

// New creates a federation client.
func New(cfg Config) (*Client, error) {
	if len(cfg.Peers) == 0 {
		return nil, errors.New("at least one peer is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("a resolver is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultRequestTimeout}
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.DiscoveryDelay <= 0 {
		cfg.DiscoveryDelay = DefaultDiscoveryDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		peers:          append([]string(nil), cfg.Peers...),
		resolver:       cfg.Resolver,
		httpClient:     cfg.HTTPClient,
		attempts:       cfg.Attempts,
		retryDelay:     cfg.RetryDelay,
		discoveryDelay: cfg.DiscoveryDelay,
		logger:         cfg.Logger,
	}, nil
}

// Peers returns the configured peer ids.
func (c *Client) Peers() []string {
	return append([]string(nil), c.peers...)
}

// GetModels returns the backend ids a peer serves.
func (c *Client) GetModels(ctx context.Context, peer string) ([]string, error) {
	var resp api.ModelsResponse
	if err := c.request(ctx, peer, http.MethodGet, "/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// GetHealth returns a peer's health report.
func (c *Client) GetHealth(ctx context.Context, peer string) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.request(ctx, peer, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// PostTranslation asks a peer to translate texts.
func (c *Client) PostTranslation(ctx context.Context, peer string, req api.TranslationRequest) ([]string, error) {
	var resp api.TranslationResponse
	if err := c.request(ctx, peer, http.MethodPost, "/translation", &req, &resp); err != nil {
		return nil, err
	}
	return resp.Texts, nil
}

// PostDetection asks a peer to detect the language of text.
func (c *Client) PostDetection(ctx context.Context, peer, text string) (string, error) {
	var resp api.DetectionResponse
	if err := c.request(ctx, peer, http.MethodPost, "/detection", &api.DetectionRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// PostLanguages returns the languages a peer can translate to and from base.
func (c *Client) PostLanguages(ctx context.Context, peer, base string) ([]string, error) {
	var resp api.LanguagesResponse
	if err := c.request(ctx, peer, http.MethodPost, "/languages", &api.LanguagesRequest{BaseLanguage: &base}, &resp); err != nil {
		return nil, err
	}
	return resp.Languages, nil
}

// request runs one peer call, retrying the whole call (address resolution
// included) on transport failures. Application errors return immediately.
func (c *Client) request(ctx context.Context, peer, method, endpoint string, body, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		err := c.do(ctx, peer, method, endpoint, body, out)
		if err == nil || !IsTransport(err) {
			return err
		}
		lastErr = err
		if attempt == c.attempts {
			break
		}

		peerRetriesTotal.WithLabelValues(peer, endpoint).Inc()
		c.logger.WithError(err).WithFields(logrus.Fields{
			"peer":     peer,
			"endpoint": endpoint,
			"attempt":  attempt,
			"delay_ms": c.retryDelay.Milliseconds(),
		}).Warn("Peer request failed, retrying")

		select {
		case <-time.After(c.retryDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c.logger.WithError(lastErr).WithFields(logrus.Fields{
		"peer":     peer,
		"endpoint": endpoint,
		"attempts": c.attempts,
	}).Error("Peer request failed")
	return lastErr
}

// do runs a single attempt of a peer call.
func (c *Client) do(ctx context.Context, peer, method, endpoint string, body, out any) (err error) {
	start := time.Now()
	defer func() {
		peerRequestsTotal.WithLabelValues(peer, endpoint, resultLabel(err)).Inc()
		peerRequestDuration.WithLabelValues(peer, endpoint).Observe(time.Since(start).Seconds())
	}()

	baseURL, err := c.resolver.Resolve(ctx, peer)
	if err != nil {
		return transportError(peer, "address resolution failed", err)
	}

	var reader io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := api.RequestIDFrom(ctx); id != "" {
		req.Header.Set(api.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transportError(peer, "request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(peer, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(data, &apiErr); err != nil {
			return transportError(peer, fmt.Sprintf("non-JSON response with status %d", resp.StatusCode), err)
		}
		msg := apiErr.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Kind: KindApplication, Peer: peer, StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return transportError(peer, "non-JSON response", err)
	}
	return nil
}
