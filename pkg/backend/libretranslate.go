package backend

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
)

const (
	// DefaultLibreTranslateURL is the default base URL for LibreTranslate API.
	DefaultLibreTranslateURL = "http://localhost:5000"
	// DefaultLibreTranslateTimeout is the default timeout for HTTP requests.
	// Large documents can take minutes on CPU-only engines.
	DefaultLibreTranslateTimeout = 5 * time.Minute
)

// LibreTranslateClient implements Backend using LibreTranslate.
// LibreTranslate is a self-hosted, open-source machine translation API.
type LibreTranslateClient struct {
	descriptor Descriptor
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewLibreTranslateClient creates a new LibreTranslate backend serving the
// pairs declared in d. A zero timeout uses DefaultLibreTranslateTimeout.
func NewLibreTranslateClient(d Descriptor, baseURL string, timeout time.Duration, logger *logrus.Logger) *LibreTranslateClient {
	if baseURL == "" {
		baseURL = DefaultLibreTranslateURL
	}
	if timeout <= 0 {
		timeout = DefaultLibreTranslateTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &LibreTranslateClient{
		descriptor: d,
		baseURL:    baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// translateRequest represents a LibreTranslate API request.
type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
}

// translateResponse represents a LibreTranslate API response.
type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// detectRequest represents a LibreTranslate /detect request.
type detectRequest struct {
	Q string `json:"q"`
}

// detectResponse is one candidate of a LibreTranslate /detect response.
type detectResponse struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

// Descriptor implements Backend.
func (c *LibreTranslateClient) Descriptor() Descriptor {
	return c.descriptor
}

// Translate translates text from source language to target language.
func (c *LibreTranslateClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := checkPair(c.descriptor, sourceLang, targetLang); err != nil {
		return "", err
	}

	log := c.logger.WithFields(logrus.Fields{
		"backend":     c.descriptor.Name,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	})
	log.WithField("text_length", len(text)).Debug("Translating text with LibreTranslate")

	startTime := time.Now()
	var ltResp translateResponse
	err := c.postJSON(ctx, "/translate", &translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
	}, &ltResp)
	duration := time.Since(startTime)
	observeHop(c.descriptor.Name, err == nil, duration)
	if err != nil {
		log.WithError(err).Error("Translation request failed")
		return "", err
	}

	log.WithField("duration_ms", duration.Milliseconds()).Info("Translation completed successfully")
	return ltResp.TranslatedText, nil
}

// Detect returns the most confident language LibreTranslate reports for text.
func (c *LibreTranslateClient) Detect(ctx context.Context, text string) (string, error) {
	var candidates []detectResponse
	if err := c.postJSON(ctx, "/detect", &detectRequest{Q: text}, &candidates); err != nil {
		c.logger.WithError(err).Warn("Language detection request failed")
		return "", err
	}
	if len(candidates) == 0 {
		return "", errors.New("no language detected")
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	return best.Language, nil
}

// CheckHealth verifies that LibreTranslate is ready and operational.
func (c *LibreTranslateClient) CheckHealth(ctx context.Context) error {
	// Use the /languages endpoint as a health check
	url := c.baseURL + "/languages"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Preload implements Preloader: a LibreTranslate server loads its own
// models, so warming up is a health check.
func (c *LibreTranslateClient) Preload(ctx context.Context) error {
	return c.CheckHealth(ctx)
}

func (c *LibreTranslateClient) postJSON(ctx context.Context, path string, in, out any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
