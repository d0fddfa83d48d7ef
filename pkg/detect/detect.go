// Package detect guesses the language of a text.
package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/backend"
)

// Unknown is the language code reported when detection fails. It is never
// a node of a translation graph, so it fails language validation.
const Unknown = "unknown"

// ErrUndetermined is returned when a text carries no usable language signal.
var ErrUndetermined = errors.New("language could not be determined")

// Detector guesses the language code of a text.
type Detector interface {
	Detect(ctx context.Context, text string) (string, error)
}

// Language runs d and degrades every failure to Unknown.
func Language(ctx context.Context, d Detector, text string, logger *logrus.Logger) string {
	lang, err := d.Detect(ctx, text)
	if err != nil || lang == "" {
		if logger != nil {
			logger.WithError(err).WithField("text_length", len(text)).Warn("Language detection failed")
		}
		return Unknown
	}
	return lang
}

// Whatlang detects languages in-process with whatlanggo. Codes are ISO
// 639-1 where one exists, ISO 639-3 otherwise.
type Whatlang struct{}

// NewWhatlang creates an in-process detector.
func NewWhatlang() *Whatlang {
	return &Whatlang{}
}

// Detect implements Detector.
func (*Whatlang) Detect(_ context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}
	info := whatlanggo.Detect(text)
	if code := info.Lang.Iso6391(); code != "" {
		return code, nil
	}
	if code := info.Lang.Iso6393(); code != "" {
		return code, nil
	}
	return "", ErrUndetermined
}

// Remote detects languages with the /detect endpoint of a LibreTranslate server.
type Remote struct {
	client *backend.LibreTranslateClient
}

// NewRemote creates a detector for the LibreTranslate server at baseURL.
func NewRemote(baseURL string, timeout time.Duration, logger *logrus.Logger) *Remote {
	d := backend.Descriptor{Name: "detector"}
	return &Remote{client: backend.NewLibreTranslateClient(d, baseURL, timeout, logger)}
}

// Detect implements Detector.
func (r *Remote) Detect(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrUndetermined
	}
	return r.client.Detect(ctx, text)
}

// Kind names a detector implementation in configuration.
type Kind string

const (
	KindWhatlang       Kind = "whatlang"
	KindLibreTranslate Kind = "libretranslate"
)

// New creates the detector named by kind.
func New(kind Kind, url string, logger *logrus.Logger) (Detector, error) {
	switch Kind(strings.ToLower(string(kind))) {
	case KindWhatlang:
		return NewWhatlang(), nil
	case KindLibreTranslate:
		return NewRemote(url, 30*time.Second, logger), nil
	default:
		return nil, fmt.Errorf("unknown detector: %q (supported: whatlang, libretranslate)", kind)
	}
}
