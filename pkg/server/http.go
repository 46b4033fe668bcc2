package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dasmlab/polyglot/pkg/i18n"
	"github.com/dasmlab/polyglot/pkg/languages"
	"github.com/dasmlab/polyglot/pkg/pipeline"
	"github.com/dasmlab/polyglot/pkg/service"
	"github.com/dasmlab/polyglot/pkg/translate"
)

const maxUploadBytes = 32 << 20

// Deps groups what the HTTP server serves.
type Deps struct {
	Translator   translate.Translator
	Registry     *languages.Registry
	Translation  *pipeline.TranslationPipeline
	Localization *pipeline.LocalizationPipeline
	Jobs         *service.JobQueue
	Catalog      *i18n.Catalog
}

// HTTPServer provides the JSON API, batch job endpoints with SSE progress
// updates, the dashboard, health and metrics.
type HTTPServer struct {
	deps         Deps
	logger       *logrus.Logger
	port         int
	pollInterval time.Duration
	pages        *pageRenderer

	srv *http.Server
}

// NewHTTPServer creates a new HTTP server.
func NewHTTPServer(deps Deps, logger *logrus.Logger, port int) *HTTPServer {
	if logger == nil {
		logger = logrus.New()
	}
	if deps.Registry == nil {
		deps.Registry = languages.NewRegistry()
	}
	if deps.Catalog == nil {
		deps.Catalog = i18n.NewCatalog(logger)
	}
	return &HTTPServer{
		deps:         deps,
		logger:       logger,
		port:         port,
		pollInterval: time.Second,
		pages:        newPageRenderer(),
	}
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("POST /translate", s.handleTranslate)
	mux.HandleFunc("POST /localize", s.handleLocalize)
	mux.HandleFunc("GET /languages", s.handleLanguages)

	mux.HandleFunc("POST /api/v1/batch", s.handleBatchUpload)
	mux.HandleFunc("GET /api/v1/jobs", s.handleJobList)
	mux.HandleFunc("GET /api/v1/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /api/v1/jobs/{id}/events", s.handleJobEvents)
	mux.HandleFunc("GET /api/v1/jobs/{id}/result", s.handleJobResult)

	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("POST /dashboard/translate", s.handleDashboardTranslate)
	mux.HandleFunc("POST /dashboard/localize", s.handleDashboardLocalize)
	mux.HandleFunc("POST /dashboard/batch", s.handleDashboardBatch)
	mux.HandleFunc("GET /dashboard/jobs/{id}", s.handleDashboardJob)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// Start listens on the configured port and blocks until the server stops.
func (s *HTTPServer) Start() error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.WithFields(logrus.Fields{
		"port": s.port,
	}).Info("Starting HTTP server")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to Multi-lingual Translator API",
		"status":  "active",
	})
}

type translateRequest struct {
	Text       *string `json:"text"`
	SourceLang *string `json:"source_lang"`
	TargetLang *string `json:"target_lang"`
}

func (req translateRequest) validate() error {
	switch {
	case req.Text == nil:
		return errors.New("field required: text")
	case req.SourceLang == nil:
		return errors.New("field required: source_lang")
	case req.TargetLang == nil:
		return errors.New("field required: target_lang")
	}
	return nil
}

type localizeRequest struct {
	translateRequest
	Currency *string `json:"currency"`
	Units    *string `json:"units"`
}

// settings returns currency and units, defaulting only omitted fields.
func (req localizeRequest) settings() (currency, units string) {
	currency, units = pipeline.DefaultCurrency, pipeline.DefaultUnits
	if req.Currency != nil {
		currency = *req.Currency
	}
	if req.Units != nil {
		units = *req.Units
	}
	return currency, units
}

func (s *HTTPServer) handleTranslate(w http.ResponseWriter, r *http.Request) {
	var req translateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	res, err := s.deps.Translation.Translate(r.Context(), *req.Text, *req.SourceLang, *req.TargetLang)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleLocalize(w http.ResponseWriter, r *http.Request) {
	var req localizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	currency, units := req.settings()
	res, err := s.deps.Localization.Localize(r.Context(), *req.Text, *req.SourceLang, *req.TargetLang, currency, units)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	langs, err := s.deps.Translator.SupportedLanguages(r.Context())
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{
		"supported_languages": langs,
	})
}

// handleHealth reports whether the model backend is reachable.
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Translator.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
