package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ali-AlHumidi/speechbridge/internal/metrics"
	"github.com/Ali-AlHumidi/speechbridge/internal/pipeline"
	"github.com/Ali-AlHumidi/speechbridge/internal/shared"
	"github.com/Ali-AlHumidi/speechbridge/internal/translation"
)

const (
	defaultLogLimit = 100
	eventBuffer     = 64
	pingInterval    = 30 * time.Second
	writeWait       = 5 * time.Second
)

// Controller is the session control the API drives
type Controller interface {
	Start(target string) error
	Stop() bool
	Status() pipeline.Status
	Languages() []translation.Language
	Activity() *pipeline.ActivityLog
}

// HTTPServerConfig contains HTTP server configuration
type HTTPServerConfig struct {
	Address string
	// DefaultTarget is used by POST /start when no target is given
	DefaultTarget string
}

// HTTPServer exposes start/stop control, the activity log and metrics
type HTTPServer struct {
	server     *http.Server
	router     chi.Router
	logger     *slog.Logger
	config     HTTPServerConfig
	controller Controller
	gatherer   prometheus.Gatherer
	metrics    *metrics.Metrics
	upgrader   websocket.Upgrader

	startTime time.Time
	closing   chan struct{}
	closeOnce sync.Once
}

// NewHTTPServer creates the control API server
func NewHTTPServer(cfg HTTPServerConfig, controller Controller, gatherer prometheus.Gatherer,
	m *metrics.Metrics, logger *slog.Logger) *HTTPServer {
	h := &HTTPServer{
		logger:     logger,
		config:     cfg,
		controller: controller,
		gatherer:   gatherer,
		metrics:    m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		startTime: time.Now(),
		closing:   make(chan struct{}),
	}

	h.router = h.setupRoutes()

	h.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           h.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return h
}

// Handler returns the routed HTTP handler
func (h *HTTPServer) Handler() http.Handler {
	return h.router
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.withMetrics("/", h.handleRoot))
	r.Get("/health", h.withMetrics("/health", h.handleHealth))
	r.Get("/status", h.withMetrics("/status", h.handleStatus))
	r.Get("/languages", h.withMetrics("/languages", h.handleLanguages))
	r.Get("/log", h.withMetrics("/log", h.handleLog))

	r.Post("/start", h.withMetrics("/start", h.handleStart))
	r.Post("/stop", h.withMetrics("/stop", h.handleStop))

	// Long-lived and scraped endpoints are not measured
	r.Get("/events", h.handleEvents)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	return r
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server and ends live event feeds
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	h.closeOnce.Do(func() { close(h.closing) })
	return h.server.Shutdown(ctx)
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.controller.Status()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"session":   status.State,
	})
}

// handleStatus implements the /status endpoint
func (h *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Status())
}

// handleLanguages implements the /languages endpoint
func (h *HTTPServer) handleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default":   h.config.DefaultTarget,
		"languages": h.controller.Languages(),
	})
}

// handleLog implements the /log endpoint
func (h *HTTPServer) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	entries := h.controller.Activity().Recent(limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleStart implements POST /start?target=xx
func (h *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("target")
	if target == "" {
		target = h.config.DefaultTarget
	}

	if err := h.controller.Start(target); err != nil {
		code := startErrorStatus(err)
		h.logger.Warn("Start request failed",
			slog.String("target", target),
			slog.Int("status", code),
			slog.String("error", err.Error()))
		writeError(w, code, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, h.controller.Status())
}

// startErrorStatus maps a start failure to an HTTP status code
func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, shared.ErrSessionActive):
		return http.StatusConflict
	case errors.Is(err, shared.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrDeviceUnavailable), errors.Is(err, shared.ErrRecognitionStream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleStop implements POST /stop
func (h *HTTPServer) handleStop(w http.ResponseWriter, r *http.Request) {
	stopped := h.controller.Stop()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stopped": stopped,
		"status":  h.controller.Status(),
	})
}

// handleEvents streams activity entries over a websocket. GET /events?replay=n
// first sends the last n entries.
func (h *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	replay := 0
	if raw := r.URL.Query().Get("replay"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid replay %q", raw))
			return
		}
		replay = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	activity := h.controller.Activity()
	entries, cancel := activity.Subscribe(eventBuffer)
	defer cancel()

	var lastSeq uint64
	if replay > 0 {
		for _, entry := range activity.Recent(replay) {
			if err := h.writeEntry(conn, entry); err != nil {
				return
			}
			lastSeq = entry.Seq
		}
	}

	// The client only sends control frames; reading surfaces its close.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("Event feed read error", slog.String("error", err.Error()))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-clientGone:
			return
		case <-h.closing:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))
			return
		case entry, ok := <-entries:
			if !ok {
				return
			}
			// Entries appended while replaying arrive twice
			if entry.Seq <= lastSeq {
				continue
			}
			if err := h.writeEntry(conn, entry); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *HTTPServer) writeEntry(conn *websocket.Conn, entry pipeline.Entry) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(entry); err != nil {
		h.logger.Debug("Event feed write error", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service": "speechbridge",
		"endpoints": map[string]string{
			"GET /":              "API documentation",
			"GET /health":        "Service health check",
			"GET /status":        "Current or most recent session",
			"GET /languages":     "Selectable target languages",
			"GET /log?limit=n":   "Recent activity entries",
			"GET /events":        "Live activity feed (websocket), ?replay=n",
			"POST /start?target": "Start listening and translating",
			"POST /stop":         "Stop the active session",
			"GET /metrics":       "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
