// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/lingolens/platform/internal/config"
	apperrors "github.com/lingolens/platform/internal/errors"
	"github.com/lingolens/platform/internal/history"
	"github.com/lingolens/platform/internal/languages"
	"github.com/lingolens/platform/internal/overlay"
	"github.com/lingolens/platform/internal/pipeline"
	"github.com/lingolens/platform/internal/screen"
	"github.com/lingolens/platform/internal/trace"
)

// ControlMessage starts or stops capture over the WebSocket.
type ControlMessage struct {
	Type    string        `json:"type"`
	TraceID string        `json:"trace_id,omitempty"`
	Session *StartRequest `json:"session,omitempty"`
}

type StatusMessage struct {
	Type   string          `json:"type"`
	Status pipeline.Status `json:"status"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StartRequest is the body of POST /api/session/start. Omitted languages
// and voice fall back to the configured defaults. Journal only switches the
// configured TRANSLATION_LOG_PATH on or off; clients never choose the file.
type StartRequest struct {
	Monitor        int           `json:"monitor"`
	Region         screen.Region `json:"region"`
	SourceLanguage string        `json:"source_language,omitempty"`
	TargetLanguage string        `json:"target_language,omitempty"`
	Voice          *bool         `json:"voice,omitempty"`
	Journal        *bool         `json:"journal,omitempty"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Controller drives the capture pipeline.
type Controller interface {
	Start(ctx context.Context, s pipeline.Session) (pipeline.Session, error)
	Stop(ctx context.Context) error
	Status() pipeline.Status
	LatestFrame() (pipeline.Frame, bool)
}

// MonitorLister enumerates displays.
type MonitorLister interface {
	Monitors() []screen.Monitor
}

// EventSource is the history store as seen by the server.
type EventSource interface {
	Events() <-chan history.Event
	Recent(n int) []history.Entry
}

// Deps are the server's collaborators.
type Deps struct {
	Controller Controller
	Hub        *overlay.Hub
	Events     EventSource
	Languages  *languages.Tables
	Monitors   MonitorLister
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	deps Deps
	cfg  *config.Config
	done chan struct{}
}

// New creates a server and starts broadcasting pipeline events.
func New(deps Deps, cfg *config.Config) *Server {
	s := &Server{deps: deps, cfg: cfg, done: make(chan struct{})}
	go s.broadcastEvents()
	return s
}

// Close stops the event broadcaster.
func (s *Server) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	mux.HandleFunc("POST /api/session/stop", s.handleSessionStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/frame", s.handleFrame)
	mux.HandleFunc("GET /api/monitors", s.handleMonitors)
	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	// Apply middleware: trace -> CORS
	return corsMiddleware(s.cfg.CORSOrigins, trace.Middleware(mux))
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch origin := r.Header.Get("Origin"); {
		case allowed["*"]:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && allowed[origin]:
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.CORSOrigins,
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	_ = wsjson.Write(baseCtx, conn, StatusMessage{Type: history.EventStatus, Status: s.deps.Controller.Status()})
	s.deps.Hub.Register(baseCtx, conn)
	defer s.deps.Hub.Unregister(conn)

	rl := &rateLimiter{}
	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Code:    string(apperrors.RateLimited),
				Message: "rate limit exceeded",
			})
			continue
		}

		var ctrl ControlMessage
		if err := json.Unmarshal(msg, &ctrl); err != nil {
			continue
		}

		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		}

		switch ctrl.Type {
		case "start":
			req := StartRequest{}
			if ctrl.Session != nil {
				req = *ctrl.Session
			}
			if _, err := s.deps.Controller.Start(ctx, s.session(req)); err != nil {
				writeWSError(ctx, conn, err)
			}
		case "stop":
			if err := s.deps.Controller.Stop(ctx); err != nil {
				writeWSError(ctx, conn, err)
			}
		case "status":
			_ = wsjson.Write(ctx, conn, StatusMessage{Type: history.EventStatus, Status: s.deps.Controller.Status()})
		}
	}
}

func writeWSError(ctx context.Context, conn *websocket.Conn, err error) {
	trace.Logger(ctx).Warn("control message failed", "error", err)
	_ = wsjson.Write(ctx, conn, ErrorMessage{
		Type:    "error",
		Code:    string(apperrors.GetCode(err)),
		Message: err.Error(),
	})
}

func (s *Server) broadcastEvents() {
	events := s.deps.Events.Events()
	for {
		select {
		case <-s.done:
			return
		case evt := <-events:
			s.deps.Hub.Broadcast(context.Background(), evt)
		}
	}
}

// session fills a start request with configured defaults.
func (s *Server) session(req StartRequest) pipeline.Session {
	sess := pipeline.Session{
		Monitor:        req.Monitor,
		Region:         req.Region,
		SourceLanguage: req.SourceLanguage,
		TargetLanguage: req.TargetLanguage,
		Voice:          s.cfg.VoiceEnabled,
	}
	if sess.SourceLanguage == "" {
		sess.SourceLanguage = s.cfg.SourceLanguage
	}
	if sess.TargetLanguage == "" {
		sess.TargetLanguage = s.cfg.TargetLanguage
	}
	if req.Voice != nil {
		sess.Voice = *req.Voice
	}
	if req.Journal == nil || *req.Journal {
		sess.LogPath = s.cfg.LogPath
	}
	return sess
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apperrors.Wrap(err, apperrors.InvalidArgument, "invalid session request"))
		return
	}

	sess, err := s.deps.Controller.Start(r.Context(), s.session(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Controller.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pipeline":        s.deps.Controller.Status(),
		"overlay_clients": s.deps.Hub.Count(),
		"overlay_visible": s.deps.Hub.Visible(),
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame, ok := s.deps.Controller.LatestFrame()
	if !ok {
		writeError(w, r, apperrors.New(apperrors.NotFound, "no frame captured yet"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Captured-At", frame.CapturedAt.UTC().Format(time.RFC3339Nano))
	if err := png.Encode(w, frame.Image); err != nil {
		trace.Logger(r.Context()).Warn("failed to encode frame", "error", err)
	}
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Monitors.Monitors())
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Languages)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, apperrors.Newf(apperrors.InvalidArgument, "invalid limit %q", v))
			return
		}
		limit = min(n, MaxHistoryLimit)
	}
	writeJSON(w, http.StatusOK, s.deps.Events.Recent(limit))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	log := trace.Logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{
		"code":  string(apperrors.GetCode(err)),
		"error": err.Error(),
	})
}
