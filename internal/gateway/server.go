package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dkovac/seeker/internal/approval"
	"github.com/dkovac/seeker/internal/config"
	"github.com/dkovac/seeker/internal/input"
	"github.com/dkovac/seeker/internal/notify"
	"github.com/dkovac/seeker/internal/version"
)

type ChatProcessor interface {
	ProcessForChannel(ctx context.Context, channel, chatID, senderID, content string) (string, error)
}

// Decider applies human decisions to queued tool executions. Approvals
// dispatch execution as a side effect.
type Decider interface {
	Approve(id, userResponse, decidedBy string) bool
	Deny(id, reason, decidedBy string) bool
}

// Deps are the coordination stores the gateway exposes.
type Deps struct {
	Inputs    *input.Registry
	Approvals *approval.Queue
	Decider   Decider
	Notifier  *notify.Notifier
}

type Server struct {
	cfg        config.GatewayConfig
	processor  ChatProcessor
	deps       Deps
	hub        *Hub
	httpServer *http.Server
}

func New(cfg config.GatewayConfig, processor ChatProcessor, deps Deps) *Server {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Port
	if port <= 0 {
		port = 18690
	}

	cfg.Host = host
	cfg.Port = port
	return &Server{
		cfg:       cfg,
		processor: processor,
		deps:      deps,
		hub:       NewHub(deps),
	}
}

func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

func (s *Server) Start() error {
	go s.hub.Run()
	mux := NewHandler(s.cfg.Token, s.processor, s.deps, s.hub)
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("gateway listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func NewHandler(token string, processor ChatProcessor, deps Deps, hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "ok",
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"version":    version.Version,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			Message   string `json:"message"`
			SessionID string `json:"session_id"`
			SenderID  string `json:"sender_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		msg := strings.TrimSpace(req.Message)
		if msg == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "message is required")
			return
		}
		sessionID := strings.TrimSpace(req.SessionID)
		if sessionID == "" {
			sessionID = "default"
		}
		senderID := strings.TrimSpace(req.SenderID)
		if senderID == "" {
			senderID = "api"
		}

		if processor == nil {
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "chat processor is not configured")
			return
		}

		resp, err := processor.ProcessForChannel(r.Context(), "gateway", sessionID, senderID, msg)
		if err != nil {
			slog.Error("gateway chat failed", "request_id", requestID, "session_id", sessionID, "error", err)
			writeError(w, requestID, http.StatusInternalServerError, "internal_error", "failed to process chat request")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"response":   resp,
			"session_id": sessionID,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/api/input/pending", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"requests":   deps.Inputs.Pending(),
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/api/input/respond", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			ID     string `json:"id"`
			Answer string `json:"answer"`
			Source string `json:"source"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "id is required")
			return
		}
		source := strings.TrimSpace(req.Source)
		if source == "" {
			source = "web"
		}

		if !deps.Inputs.Answer(req.ID, req.Answer, source) {
			writeError(w, requestID, http.StatusConflict, "already_answered", "request is unknown or already answered")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accepted":   true,
			"id":         req.ID,
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/api/approvals/pending", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodGet {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tools":      deps.Approvals.Pending(),
			"request_id": requestID,
		})
	})
	mux.HandleFunc("/api/approvals/approve", decisionHandler(token, deps, true))
	mux.HandleFunc("/api/approvals/deny", decisionHandler(token, deps, false))
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if !authorizedWS(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		ServeWS(hub, deps, w, r)
	})
	return mux
}

func decisionHandler(token string, deps Deps, approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		if r.Method != http.MethodPost {
			writeError(w, requestID, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		if !authorized(r, token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}

		var req struct {
			ID           string `json:"id"`
			UserResponse string `json:"user_response"`
			Reason       string `json:"reason"`
			DecidedBy    string `json:"decided_by"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "invalid json request")
			return
		}
		if strings.TrimSpace(req.ID) == "" {
			writeError(w, requestID, http.StatusBadRequest, "bad_request", "id is required")
			return
		}
		decidedBy := strings.TrimSpace(req.DecidedBy)
		if decidedBy == "" {
			decidedBy = "web"
		}

		var accepted bool
		if approve {
			accepted = deps.Decider.Approve(req.ID, req.UserResponse, decidedBy)
		} else {
			accepted = deps.Decider.Deny(req.ID, req.Reason, decidedBy)
		}
		if !accepted {
			writeError(w, requestID, http.StatusConflict, "already_decided", "tool is unknown or already decided")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accepted":   true,
			"id":         req.ID,
			"request_id": requestID,
		})
	}
}

// authorized checks the Authorization bearer header. REST endpoints accept
// nothing else; tokens in URLs end up in access logs.
func authorized(r *http.Request, expected string) bool {
	expected = strings.TrimSpace(expected)
	if expected == "" {
		return true
	}
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(got, prefix)) == expected
}

// authorizedWS additionally accepts a ?token= query parameter, only for the
// websocket upgrade: browsers cannot set headers on upgrade requests.
func authorizedWS(r *http.Request, expected string) bool {
	if authorized(r, expected) {
		return true
	}
	return strings.TrimSpace(r.URL.Query().Get("token")) == strings.TrimSpace(expected)
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
