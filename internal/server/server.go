package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/franckalain/foodrescue/internal/inventory"
	"github.com/franckalain/foodrescue/internal/metrics"
	"github.com/franckalain/foodrescue/internal/wizard"
)

// Verifier is the verification pipeline as seen by the transport
type Verifier interface {
	wizard.Verifier
	MinimumQuality() float64
}

// Server serves the donor API and one wizard per websocket connection
type Server struct {
	verifier Verifier
	store    inventory.Store
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server
type Option func(*Server)

// WithMetrics sets the collectors and the registry exposed on /metrics
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithLogger sets the server logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a new server
func New(verifier Verifier, store inventory.Store, opts ...Option) *Server {
	s := &Server{
		verifier: verifier,
		store:    store,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP routes. Static files are served from staticDir
// when it is non-empty.
func (s *Server) Router(staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/config/quality", s.handleQualityThreshold)
		r.Get("/listings", s.handleListings)
		r.Get("/listings/{id}", s.handleListing)
		r.Get("/impact", s.handleImpact)
	})

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context, port, staticDir string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(staticDir),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleQualityThreshold(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]float64{"minimum_quality": s.verifier.MinimumQuality()})
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	listings, err := s.store.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load listings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request) {
	listing, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, inventory.ErrNotFound) {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load listing", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	totals, err := s.store.ImpactTotals(r.Context())
	if err != nil {
		s.logger.Error("failed to sum impact", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to sum impact")
		return
	}
	writeJSON(w, http.StatusOK, totals)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
