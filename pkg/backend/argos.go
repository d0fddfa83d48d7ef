package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultArgosURL is the default base URL for Argos Translate API.
	DefaultArgosURL = "http://127.0.0.1:5000"
	// DefaultArgosTimeout is the default timeout for HTTP requests.
	DefaultArgosTimeout = 30 * time.Second
)

// ArgosClient implements Backend using an Argos Translate HTTP service.
type ArgosClient struct {
	descriptor Descriptor
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewArgosClient creates a new Argos Translate backend serving the pairs
// declared in d. A zero timeout uses DefaultArgosTimeout.
func NewArgosClient(d Descriptor, baseURL string, timeout time.Duration, logger *logrus.Logger) *ArgosClient {
	if baseURL == "" {
		baseURL = DefaultArgosURL
	}
	if timeout <= 0 {
		timeout = DefaultArgosTimeout
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ArgosClient{
		descriptor: d,
		baseURL:    baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// argosTranslateRequest represents an Argos Translate API request.
type argosTranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// argosTranslateResponse represents an Argos Translate API response.
type argosTranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Descriptor implements Backend.
func (c *ArgosClient) Descriptor() Descriptor {
	return c.descriptor
}

// Translate translates text from source language to target language.
func (c *ArgosClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := checkPair(c.descriptor, sourceLang, targetLang); err != nil {
		return "", err
	}

	log := c.logger.WithFields(logrus.Fields{
		"backend":     c.descriptor.Name,
		"source_lang": sourceLang,
		"target_lang": targetLang,
	})
	log.WithField("text_length", len(text)).Debug("Translating text with Argos")

	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(&argosTranslateRequest{
		Text:       text,
		SourceLang: sourceLang,
		TargetLang: targetLang,
	}); err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := c.baseURL + "/translate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observeHop(c.descriptor.Name, false, time.Since(startTime))
		log.WithError(err).WithField("url", url).Error("Translation request failed")
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(startTime)
	if resp.StatusCode != http.StatusOK {
		observeHop(c.descriptor.Name, false, duration)
		bodyBytes, _ := io.ReadAll(resp.Body)
		log.WithFields(logrus.Fields{
			"status_code": resp.StatusCode,
			"response":    string(bodyBytes),
		}).Error("Translation request returned non-OK status")
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var argosResp argosTranslateResponse
	if err := json.NewDecoder(resp.Body).Decode(&argosResp); err != nil {
		observeHop(c.descriptor.Name, false, duration)
		return "", fmt.Errorf("decode response: %w", err)
	}
	observeHop(c.descriptor.Name, true, duration)

	log.WithField("duration_ms", duration.Milliseconds()).Info("Translation completed successfully")
	return argosResp.TranslatedText, nil
}
