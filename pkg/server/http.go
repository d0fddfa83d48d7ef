// Package server exposes a translator over the HTTP API and reports its
// readiness through the standard gRPC health service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/admission"
	"github.com/dasmlab/polyglot/pkg/api"
	"github.com/dasmlab/polyglot/pkg/translator"
)

// DefaultLanguage roots GET /languages when none is configured.
const DefaultLanguage = "en"

// Config configures an HTTPServer.
type Config struct {
	Translator translator.Translator
	// Limiter guards every endpoint except /health and /metrics. If nil,
	// requests are not limited.
	Limiter *admission.Limiter
	// DefaultLanguage roots GET /languages.
	DefaultLanguage string
	Port            int
	// Logger is the logger instance to use. If nil, a default logger is created.
	Logger *logrus.Logger
}

// HTTPServer serves the translation API. Peers call each other through the
// same endpoints.
type HTTPServer struct {
	translator      translator.Translator
	limiter         *admission.Limiter
	defaultLanguage string
	logger          *logrus.Logger
	port            int
	srv             *http.Server
}

// NewHTTPServer creates a new HTTP server for the translation API.
func NewHTTPServer(cfg Config) *HTTPServer {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Limiter == nil {
		cfg.Limiter = admission.New(nil, 0, cfg.Logger)
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguage
	}
	s := &HTTPServer{
		translator:      cfg.Translator,
		limiter:         cfg.Limiter,
		defaultLanguage: cfg.DefaultLanguage,
		logger:          cfg.Logger,
		port:            cfg.Port,
	}
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the API router.
func (s *HTTPServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Post("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.admit)
		r.Post("/translation", s.handleTranslation)
		r.Post("/detection", s.handleDetection)
		r.Get("/languages", s.handleListAllLanguages)
		r.Post("/languages", s.handleListConnectedLanguages)
		r.Get("/models", s.handleModels)
	})
	return r
}

// Start serves until Shutdown is called.
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port": s.port,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// admit runs the request under admission control.
func (s *HTTPServer) admit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.limiter.Do(r.Context(), func(context.Context) error {
			next.ServeHTTP(w, r)
			return nil
		})
		if err != nil {
			s.writeError(w, r, err)
		}
	})
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Healthy:          true,
		ServiceAvailable: s.translator.ModelsLoaded(r.Context()),
	})
}

func (s *HTTPServer) handleTranslation(w http.ResponseWriter, r *http.Request) {
	var req api.TranslationRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Texts == nil {
		s.writeError(w, r, missingParameter("texts"))
		return
	}
	if req.TargetLanguage == "" {
		s.writeError(w, r, missingParameter("targetLanguage"))
		return
	}

	texts := make([]string, 0, len(req.Texts))
	for _, text := range req.Texts {
		out, err := s.translator.Translate(r.Context(), text, req.TargetLanguage, req.SourceLanguage)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		texts = append(texts, out)
	}
	writeJSON(w, http.StatusOK, api.TranslationResponse{Texts: texts})
}

func (s *HTTPServer) handleDetection(w http.ResponseWriter, r *http.Request) {
	var req api.DetectionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	lang, err := s.translator.DetectLanguage(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.DetectionResponse{Text: lang})
}

func (s *HTTPServer) handleListAllLanguages(w http.ResponseWriter, r *http.Request) {
	s.writeLanguages(w, r, s.defaultLanguage)
}

func (s *HTTPServer) handleListConnectedLanguages(w http.ResponseWriter, r *http.Request) {
	var req api.LanguagesRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.BaseLanguage == nil {
		s.writeError(w, r, missingParameter("baseLanguage"))
		return
	}
	s.writeLanguages(w, r, *req.BaseLanguage)
}

func (s *HTTPServer) writeLanguages(w http.ResponseWriter, r *http.Request, base string) {
	langs, err := s.translator.ListAvailableLanguages(base)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.LanguagesResponse{Languages: langs})
}

func (s *HTTPServer) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.translator.ListModels()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ModelsResponse{Models: models})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &badRequestError{msg: fmt.Sprintf("Invalid JSON body: %v", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
