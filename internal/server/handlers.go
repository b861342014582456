package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"MarketPulse/internal/analysis"
	"MarketPulse/internal/cache"
	"MarketPulse/internal/model"
	"MarketPulse/internal/notifier"
	"MarketPulse/internal/recorder"
	"MarketPulse/internal/registry"
)

const maxHistoryLimit = 500

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.opts.RequestBudget)
}

func setGenerationHeaders[T any](w http.ResponseWriter, g cache.Generation[T]) {
	w.Header().Set("X-Data-Generation", strconv.FormatUint(g.ID, 10))
	if g.Stale {
		w.Header().Set("X-Data-Stale", "true")
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	g, err := s.dashboards.Get(ctx, slotDashboard, s.pipeline.Dashboard)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setGenerationHeaders(w, g)
	s.writeJSON(w, g.Payload)
}

func (s *Server) handleMultibagger(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	rule := strings.TrimSpace(r.URL.Query().Get("rule"))
	if rule == "" {
		rule = analysis.DefaultRuleName
	}
	g, err := s.candidates.Get(ctx, slotMultibagger+rule, func(ctx context.Context) ([]model.Candidate, error) {
		return s.pipeline.Candidates(ctx, rule)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setGenerationHeaders(w, g)
	w.Header().Set("Cache-Control", "s-maxage=60, stale-while-revalidate")
	s.writeJSON(w, g.Payload)
}

func (s *Server) handleMood(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	g, err := s.moods.Get(ctx, slotMood, s.pipeline.Mood)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setGenerationHeaders(w, g)
	s.writeJSON(w, g.Payload)
}

func (s *Server) handleMoodHistory(w http.ResponseWriter, r *http.Request) {
	limit := recorder.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}
	records, err := s.history.ListMoods(limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, records)
}

func (s *Server) handleIndices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	g, err := s.dashboards.Get(ctx, slotDashboard, s.pipeline.Dashboard)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	setGenerationHeaders(w, g)
	out := g.Payload.IndexPerformance
	if out == nil {
		out = []model.IndexAggregate{}
	}
	s.writeJSON(w, out)
}

func (s *Server) handleStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	symbol := strings.ToUpper(strings.TrimSpace(r.PathValue("symbol")))
	g, err := s.dashboards.Get(ctx, slotDashboard, s.pipeline.Dashboard)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	stock, ok := g.Payload.Stock(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "no history for symbol "+symbol)
		return
	}
	setGenerationHeaders(w, g)
	s.writeJSON(w, stock)
}

func (s *Server) handleSendMarketMood(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET or POST")
		return
	}
	if secret := s.opts.CronSecret; secret != "" {
		if subtle.ConstantTimeCompare([]byte(bearerToken(r)), []byte(secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
	}
	if s.broadcaster == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications_disabled", "push notifications are not configured")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	b, err := s.broadcaster.BroadcastMood(ctx, "api")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, b)
}

type notificationRequest struct {
	Token string            `json:"token"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

func (s *Server) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "FCM token is required")
		return
	}
	if s.pusher == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications_disabled", "push notifications are not configured")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()
	msg := notifier.Message{Title: req.Title, Body: req.Body, Data: req.Data}.WithDefaults()
	if err := s.pusher.SendOne(ctx, req.Token, msg); err != nil {
		if errors.Is(err, notifier.ErrTokenInvalid) {
			writeError(w, http.StatusBadRequest, "bad_request", "Token is no longer valid. User may have unsubscribed.")
			return
		}
		s.log.Error("send notification", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "Failed to send notification: "+err.Error())
		return
	}
	s.writeJSON(w, map[string]any{"success": true, "message": "Notification sent successfully"})
}

type tokenRequest struct {
	Token string `json:"token"`
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications_disabled", "device registry is not configured")
		return
	}
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	added, err := s.devices.Register(req.Token, r.UserAgent())
	if errors.Is(err, registry.ErrEmptyToken) {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	s.writeJSONStatus(w, status, map[string]any{"registered": added, "devices": s.devices.Len()})
}

func (s *Server) handleRemoveToken(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications_disabled", "device registry is not configured")
		return
	}
	n, err := s.devices.Remove(r.PathValue("token"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "not_found", "unknown token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if g, ok := s.dashboards.Peek(slotDashboard); ok {
		resp["dashboardGeneration"] = g.ID
		resp["dashboardFetchedAt"] = g.FetchedAt.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, resp)
}
