// Package server exposes the dashboard pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"MarketPulse/internal/analysis"
	"MarketPulse/internal/cache"
	"MarketPulse/internal/collector"
	"MarketPulse/internal/model"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/recorder"
)

// Cache slot keys.
const (
	slotDashboard   = "dashboard"
	slotMood        = "mood"
	slotMultibagger = "multibagger:"
)

// Pipeline computes dashboard payloads from the sheets.
type Pipeline interface {
	Dashboard(ctx context.Context) (*model.Dashboard, error)
	Mood(ctx context.Context) (model.MoodSnapshot, error)
	Candidates(ctx context.Context, rule string) ([]model.Candidate, error)
}

// Broadcaster runs one mood notification round.
type Broadcaster interface {
	BroadcastMood(ctx context.Context, trigger string) (*model.MoodBroadcast, error)
}

// Pusher sends a push message to a single device.
type Pusher interface {
	SendOne(ctx context.Context, token string, msg notifier.Message) error
}

// Devices is the device-token registry.
type Devices interface {
	Register(token, userAgent string) (bool, error)
	Remove(tokens ...string) (int, error)
	Len() int
}

// Options configures a Server.
type Options struct {
	CacheTTL      time.Duration
	StaleTTL      time.Duration
	CORSOrigins   []string
	CronSecret    string
	RequestBudget time.Duration
}

// Server serves the dashboard HTTP API.
type Server struct {
	pipeline    Pipeline
	broadcaster Broadcaster
	pusher      Pusher
	devices     Devices
	history     recorder.Recorder
	opts        Options

	dashboards *cache.Cache[*model.Dashboard]
	moods      *cache.Cache[model.MoodSnapshot]
	candidates *cache.Cache[[]model.Candidate]

	log *zap.Logger
}

// New creates a Server. broadcaster, pusher and devices may be nil, in which
// case the notification routes answer 503.
func New(p Pipeline, b Broadcaster, pusher Pusher, devices Devices, history recorder.Recorder, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if history == nil {
		history = recorder.NewNoopRecorder()
	}
	if opts.RequestBudget <= 0 {
		opts.RequestBudget = 60 * time.Second
	}
	copts := cache.Options{TTL: opts.CacheTTL, StaleTTL: opts.StaleTTL}
	return &Server{
		pipeline:    p,
		broadcaster: b,
		pusher:      pusher,
		devices:     devices,
		history:     history,
		opts:        opts,
		dashboards:  cache.New[*model.Dashboard](copts, log.Named("cache")),
		moods:       cache.New[model.MoodSnapshot](copts, log.Named("cache")),
		candidates:  cache.New[[]model.Candidate](copts, log.Named("cache")),
		log:         log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/fetch-data", s.handleDashboard)
	mux.HandleFunc("GET /api/multibagger", s.handleMultibagger)
	mux.HandleFunc("GET /api/mood", s.handleMood)
	mux.HandleFunc("GET /api/mood/history", s.handleMoodHistory)
	mux.HandleFunc("GET /api/indices", s.handleIndices)
	mux.HandleFunc("GET /api/stocks/{symbol}", s.handleStock)
	mux.HandleFunc("/api/send-market-mood", s.handleSendMarketMood)
	mux.HandleFunc("POST /api/send-notification", s.handleSendNotification)
	mux.HandleFunc("POST /api/tokens", s.handleRegisterToken)
	mux.HandleFunc("DELETE /api/tokens/{token}", s.handleRemoveToken)
	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// Handler returns an http.Handler with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(s.opts.CORSOrigins, mux))
}

// Warm refreshes the dashboard and mood slots ahead of traffic.
func (s *Server) Warm(ctx context.Context) error {
	if _, err := s.dashboards.Refresh(ctx, slotDashboard, s.pipeline.Dashboard); err != nil {
		return err
	}
	_, err := s.moods.Refresh(ctx, slotMood, s.pipeline.Mood)
	return err
}

// Dashboard returns the cached dashboard, loading it when due.
func (s *Server) Dashboard(ctx context.Context) (*model.Dashboard, error) {
	g, err := s.dashboards.Get(ctx, slotDashboard, s.pipeline.Dashboard)
	if err != nil {
		return nil, err
	}
	return g.Payload, nil
}

// Mood returns the cached mood snapshot, loading it when due.
func (s *Server) Mood(ctx context.Context) (model.MoodSnapshot, error) {
	g, err := s.moods.Get(ctx, slotMood, s.pipeline.Mood)
	if err != nil {
		return model.MoodSnapshot{}, err
	}
	return g.Payload, nil
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case len(allowed) == 0 || allowed["*"]:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)))
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	s.writeJSONStatus(w, http.StatusOK, v)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding JSON response", zap.Error(err))
	}
}

// apiError is the body of every error response.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Error: code, Message: msg})
}

// classify maps a pipeline error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, collector.ErrNoData), errors.Is(err, analysis.ErrEmptyUniverse):
		return http.StatusServiceUnavailable, "no_data"
	case errors.Is(err, collector.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "upstream_timeout"
	case errors.Is(err, collector.ErrUpstream):
		return http.StatusBadGateway, "upstream_unavailable"
	case errors.Is(err, analysis.ErrUnknownRule):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	} else {
		s.log.Warn("request rejected", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	}
	writeError(w, status, code, err.Error())
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
