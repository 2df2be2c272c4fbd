package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wagate/internal/constants"
	"wagate/internal/errors"
	"wagate/internal/middleware"
	"wagate/internal/models"
	"wagate/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg     *models.Config
	router  *mux.Router
	logger  *logrus.Logger
	gateway *service.Gateway
	server  *http.Server
}

func NewServer(cfg *models.Config, gateway *service.Gateway, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		router:  mux.NewRouter(),
		logger:  logger,
		gateway: gateway,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	rateLimiter := NewRateLimiter(s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst)

	api := s.router.PathPrefix("/api/sessions").Subrouter()
	api.Use(rateLimitMiddleware(rateLimiter, s.logger))
	api.Use(apiKeyMiddleware(s.cfg.Server.APIKey))

	api.HandleFunc("/{tenantId}", s.handleInitialize()).Methods(http.MethodPost)
	api.HandleFunc("/{tenantId}/status", s.handleStatus()).Methods(http.MethodGet)
	api.HandleFunc("/{tenantId}/messages", s.handleSendMessage()).Methods(http.MethodPost)
	api.HandleFunc("/{tenantId}/media", s.handleSendMedia()).Methods(http.MethodPost)
	api.HandleFunc("/{tenantId}/status-message", s.handleSetStatusMessage()).Methods(http.MethodPut)
	api.HandleFunc("/{tenantId}/logout", s.handleLogout()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      http.MaxBytesHandler(s.router, constants.MaxRequestBodyBytes),
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"version":  Version,
			"sessions": s.gateway.Registry().Len(),
		})
	}
}

// handleInitialize starts a session and returns the pairing QR code as a
// PNG image.
func (s *Server) handleInitialize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		png, err := s.gateway.InitializeSession(r.Context(), tenantID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(png); err != nil {
			s.logger.WithError(err).Error("Failed to write QR response")
		}
	}
}

func (s *Server) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		status, err := s.gateway.GetStatus(tenantID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, status)
	}
}

type sendMessageRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		var req sendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, errors.NewBadRequestError("body", "invalid JSON payload"))
			return
		}

		result, err := s.gateway.SendMessage(r.Context(), tenantID, req.To, req.Body)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, result)
	}
}

type sendMediaRequest struct {
	To      string `json:"to"`
	Caption string `json:"caption,omitempty"`
	File    struct {
		MimeType string `json:"mimetype"`
		Data     string `json:"data"`
	} `json:"file"`
}

func (s *Server) handleSendMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		var req sendMediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, errors.NewBadRequestError("body", "invalid JSON payload"))
			return
		}

		data, err := base64.StdEncoding.DecodeString(req.File.Data)
		if err != nil {
			s.writeError(w, r, errors.NewBadRequestError("file.data", "media data must be base64-encoded"))
			return
		}

		result, err := s.gateway.SendMedia(r.Context(), tenantID, req.To, data, req.File.MimeType, req.Caption)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, result)
	}
}

type statusMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSetStatusMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		var req statusMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, r, errors.NewBadRequestError("body", "invalid JSON payload"))
			return
		}

		if err := s.gateway.SetStatusMessage(r.Context(), tenantID, req.Text); err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func (s *Server) handleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantId"]

		if err := s.gateway.Logout(r.Context(), tenantID); err != nil {
			s.writeError(w, r, err)
			return
		}

		s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.RequestIDFromContext(r.Context())

	errors.LogWarn(s.logger, err, "Request failed", logrus.Fields{
		"request_id": requestID,
		"path":       r.URL.Path,
	})

	s.writeJSON(w, errors.HTTPStatusCode(err), errors.ToHTTPResponse(err, requestID))
}
