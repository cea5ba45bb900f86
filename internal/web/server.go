package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/runixer/personad/internal/config"
	"github.com/runixer/personad/internal/storage"
)

const metricsNamespace = "personad"

// maintenanceInterval paces reply log pruning and size metric refresh.
const maintenanceInterval = 1 * time.Hour

// getClientIP extracts the real client IP from the request.
// It checks X-Forwarded-For and X-Real-IP headers (set by reverse proxies),
// falling back to RemoteAddr if no proxy headers are present.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs: "client, proxy1, proxy2"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

// Dispatcher routes an incoming message to the personas it addresses.
// Satisfied by router.Router.
type Dispatcher interface {
	Dispatch(ctx context.Context, message string) int
}

// Maintainer runs periodic storage upkeep. Satisfied by storage.SQLiteStore.
type Maintainer interface {
	PruneReplyLogs(olderThan time.Duration) (int64, error)
	UpdateSizeMetric()
}

type Server struct {
	cfg        *config.Config
	replyRepo  storage.ReplyLogRepository
	dispatcher Dispatcher
	maintainer Maintainer
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewServer(logger *slog.Logger, cfg *config.Config, replyRepo storage.ReplyLogRepository, dispatcher Dispatcher, maintainer Maintainer) *Server {
	return &Server{
		cfg:        cfg,
		replyRepo:  replyRepo,
		dispatcher: dispatcher,
		maintainer: maintainer,
		logger:     logger.With("component", "web_server"),
	}
}

func (s *Server) Start(ctx context.Context) error {
	// Check and generate password if needed
	if s.cfg.Server.Auth.Enabled && s.cfg.Server.Auth.Password == "" {
		bytes := make([]byte, 6) // 12 hex chars
		if _, err := rand.Read(bytes); err != nil {
			return fmt.Errorf("failed to generate random password: %w", err)
		}
		s.cfg.Server.Auth.Password = hex.EncodeToString(bytes)
		fmt.Printf("\n⚠️  Web UI password not set, generated: %s\n\n", s.cfg.Server.Auth.Password)
		s.logger.Info("Web UI password auto-generated (see console output)")
	}

	mux := s.routes()

	// Chain: Logging -> Auth -> Mux
	handler := s.basicAuthMiddleware(mux)
	handler = s.loggingMiddleware(handler)

	server := &http.Server{
		Addr:              ":" + s.cfg.Server.ListenPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("web server shutdown failed", "error", err)
		}
	}()

	if s.maintainer != nil {
		s.runMaintenance()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			ticker := time.NewTicker(maintenanceInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.runMaintenance()
				}
			}
		}()
	}

	s.logger.Info("Starting web server", "port", s.cfg.Server.ListenPort)
	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		return err
	}
	s.wg.Wait() // Wait for background goroutines to finish
	return nil
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", instrumentHandler("healthz", s.healthzHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/send", instrumentHandler("send", s.sendHandler))

	if s.cfg.Server.DebugMode {
		mux.HandleFunc("/ui/replies", instrumentHandler("replies", s.repliesHandler))
		s.logger.Info("Debug endpoints enabled at /ui/")
	}

	return mux
}

func (s *Server) runMaintenance() {
	if deleted, err := s.maintainer.PruneReplyLogs(s.cfg.ReplyLog.GetRetention()); err != nil {
		s.logger.Error("reply log pruning failed", "error", err)
	} else if deleted > 0 {
		s.logger.Debug("reply log pruning completed", "deleted", deleted)
	}
	s.maintainer.UpdateSizeMetric()
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type sendRequest struct {
	Message string `json:"message"`
}

type sendResponse struct {
	Dispatched int `json:"dispatched"`
}

// sendHandler accepts a conversation message and fans it out to the personas
// it addresses. Replies are delivered through the router's sink, not this
// response; the response only reports how many tasks started.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.dispatcher == nil {
		http.Error(w, "dispatching is not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64*1024))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	var req sendRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}

	dispatched := s.dispatcher.Dispatch(r.Context(), req.Message)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(sendResponse{Dispatched: dispatched}); err != nil {
		s.logger.Error("failed to encode send response", "error", err)
	}
}

// repliesHandler serves recent reply log entries as JSON.
// Query params: persona, success (true/false), search, limit, offset.
func (s *Server) repliesHandler(w http.ResponseWriter, r *http.Request) {
	if s.replyRepo == nil {
		http.Error(w, "reply log is not configured", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	filter := storage.ReplyLogFilter{
		Persona: q.Get("persona"),
		Search:  q.Get("search"),
	}
	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "invalid success parameter", http.StatusBadRequest)
			return
		}
		filter.Success = &success
	}

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	result, err := s.replyRepo.GetReplyLogsExtended(filter, limit, offset)
	if err != nil {
		s.logger.Error("failed to load reply logs", "error", err)
		http.Error(w, "failed to load reply logs", http.StatusInternalServerError)
		return
	}

	type replyJSON struct {
		ID           string    `json:"id"`
		Persona      string    `json:"persona"`
		Conversation string    `json:"conversation"`
		Response     string    `json:"response"`
		Attempts     int       `json:"attempts"`
		DurationMs   int       `json:"duration_ms"`
		Success      bool      `json:"success"`
		ErrorMessage string    `json:"error_message,omitempty"`
		CreatedAt    time.Time `json:"created_at"`
	}

	out := struct {
		Total   int         `json:"total"`
		Replies []replyJSON `json:"replies"`
	}{Total: result.TotalCount, Replies: make([]replyJSON, 0, len(result.Data))}

	for _, l := range result.Data {
		out.Replies = append(out.Replies, replyJSON{
			ID:           l.ID,
			Persona:      l.Persona,
			Conversation: l.Conversation,
			Response:     l.Response,
			Attempts:     l.Attempts,
			DurationMs:   l.DurationMs,
			Success:      l.Success,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.logger.Error("failed to encode replies response", "error", err)
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		// Log healthz and metrics at debug level, other requests at info level
		if path == "/healthz" || path == "/metrics" {
			s.logger.Debug("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
			)
		} else {
			s.logger.Info("Received HTTP request",
				"method", r.Method,
				"path", path,
				"client_ip", getClientIP(r),
				"user_agent", r.UserAgent(),
			)
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only protect /ui/ routes
		if strings.HasPrefix(r.URL.Path, "/ui/") {
			if !s.cfg.Server.Auth.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			user, pass, ok := r.BasicAuth()
			if !ok || user != s.cfg.Server.Auth.Username || pass != s.cfg.Server.Auth.Password {
				w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
