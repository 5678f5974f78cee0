package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/custos/internal/models"
	"github.com/Kerhoff/custos/internal/service"
)

// Options configures a Server.
type Options struct {
	// RPS and Burst size the per-client token bucket.
	RPS   float64
	Burst int
	// Ping reports storage health. Nil means always healthy.
	Ping func(ctx context.Context) error
}

// Server provides the read-only HTTP API.
type Server struct {
	svc     *service.Service
	logger  *logrus.Logger
	mux     *http.ServeMux
	limiter *clientLimiter
	ping    func(ctx context.Context) error
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(svc *service.Service, logger *logrus.Logger, opts Options) *Server {
	s := &Server{
		svc:     svc,
		logger:  logger,
		mux:     http.NewServeMux(),
		limiter: newClientLimiter(opts.RPS, opts.Burst),
		ping:    opts.Ping,
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.throttle(s.mux)
}

// MetricsHandler serves the registry in the Prometheus text format.
func MetricsHandler(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/chats/{chat_id}/staff", s.handleGetStaff)
	s.mux.HandleFunc("GET /api/chats/{chat_id}/stats", s.handleGetStats)
	s.mux.HandleFunc("GET /api/chats/{chat_id}/members/{user_id}", s.handleGetMember)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// pathInt64 extracts a path value and converts it to int64.
func pathInt64(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s in path", name)
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (s *Server) requireChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathInt64(r, "chat_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "chat_id must be an integer")
		return 0, false
	}
	return id, true
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetStaff(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.requireChatID(w, r)
	if !ok {
		return
	}

	staff, err := s.svc.Staff(r.Context(), chatID)
	if err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Error("failed to list staff")
		s.respondError(w, http.StatusInternalServerError, "failed to list staff")
		return
	}
	if staff == nil {
		staff = []*models.StaffMember{}
	}
	s.respondJSON(w, http.StatusOK, staff)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.requireChatID(w, r)
	if !ok {
		return
	}

	active, err := s.svc.TopActive(r.Context(), chatID)
	if err != nil {
		s.logger.WithError(err).WithField("chat_id", chatID).Error("failed to rank members")
		s.respondError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}
	if active == nil {
		active = []*models.ActiveMember{}
	}
	s.respondJSON(w, http.StatusOK, active)
}

type memberResponse struct {
	User         models.User       `json:"user"`
	Rank         models.Rank       `json:"rank"`
	MessageCount int64             `json:"message_count"`
	Today        int64             `json:"messages_today"`
	Warnings     []*models.Warning `json:"warnings"`
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.requireChatID(w, r)
	if !ok {
		return
	}
	userID, err := pathInt64(r, "user_id")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "user_id must be an integer")
		return
	}

	p, err := s.svc.Profile(r.Context(), userID, chatID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Error("failed to load profile")
		s.respondError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if p == nil {
		s.respondError(w, http.StatusNotFound, "member not found")
		return
	}

	warnings, err := s.svc.Warnings.List(r.Context(), userID, chatID)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{"chat_id": chatID, "user_id": userID}).Error("failed to list warnings")
		s.respondError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if warnings == nil {
		warnings = []*models.Warning{}
	}

	s.respondJSON(w, http.StatusOK, memberResponse{
		User:         p.User,
		Rank:         p.Rank,
		MessageCount: p.MessageCount,
		Today:        p.Today,
		Warnings:     warnings,
	})
}
