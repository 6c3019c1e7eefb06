package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joescharf/bugs/internal/bugs"
	"github.com/joescharf/bugs/internal/store"
)

// Response messages.
const (
	MsgBugNotFound    = "Bug not found"
	MsgBugDeleted     = "Bug deleted"
	MsgInvalidJSON    = "Invalid JSON body"
	MsgInternalServer = "Internal server error"
)

var errInvalidJSON = errors.New("invalid JSON body")

// Server provides the REST API handlers.
type Server struct {
	bugs     *bugs.Service
	logger   *slog.Logger
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewServer creates a new API server over the given store.
// A nil logger falls back to slog.Default().
func NewServer(s store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	srv := &Server{
		bugs:     bugs.NewService(s),
		logger:   logger,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bugs",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total API requests by operation and status code",
		}, []string{"op", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bugs",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request latency in seconds by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	srv.registry.MustRegister(srv.requests, srv.latency)
	return srv
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/bugs", s.op("list", s.listBugs))
	mux.HandleFunc("POST /api/bugs", s.op("create", s.createBug))
	mux.HandleFunc("GET /api/bugs/{id}", s.op("get", s.getBug))
	mux.HandleFunc("PUT /api/bugs/{id}", s.op("update", s.updateBug))
	mux.HandleFunc("DELETE /api/bugs/{id}", s.op("delete", s.deleteBug))

	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// handlerFunc is an API handler whose errors are rendered by fail.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// op wraps h with panic recovery, the central error path, one structured log
// record and request metrics.
func (s *Server) op(name string, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				s.fail(rec, r, name, fmt.Errorf("panic: %v", p))
			}

			elapsed := time.Since(start)
			s.requests.WithLabelValues(name, fmt.Sprint(rec.status)).Inc()
			s.latency.WithLabelValues(name).Observe(elapsed.Seconds())

			attrs := []any{"op", name, "status", rec.status, "duration", elapsed}
			if id := r.PathValue("id"); id != "" {
				attrs = append(attrs, "id", id)
			}
			level := slog.LevelInfo
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.Log(r.Context(), level, "bug api", attrs...)
		}()

		if err := h(rec, r); err != nil {
			s.fail(rec, r, name, err)
		}
	}
}

// fail converts an operation error into a response. Validation and not-found
// errors map to 400 and 404; anything else is logged and reported as a
// generic 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *bugs.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": verr.Errors})
	case errors.Is(err, errInvalidJSON):
		writeMessage(w, http.StatusBadRequest, MsgInvalidJSON)
	case errors.Is(err, store.ErrNotFound):
		writeMessage(w, http.StatusNotFound, MsgBugNotFound)
	default:
		s.logger.ErrorContext(r.Context(), "bug api failure", "op", op, "error", err)
		writeMessage(w, http.StatusInternalServerError, MsgInternalServer)
	}
}

// decodeDocument reads the request body as a JSON object. An empty body or a
// JSON value that is not an object decodes to an empty document.
func decodeDocument(r *http.Request) (map[string]any, error) {
	var v any
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}, nil
	}
	return doc, nil
}

// --- Bugs ---

func (s *Server) listBugs(w http.ResponseWriter, r *http.Request) error {
	list, err := s.bugs.List(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (s *Server) getBug(w http.ResponseWriter, r *http.Request) error {
	bug, err := s.bugs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, bug)
	return nil
}

func (s *Server) createBug(w http.ResponseWriter, r *http.Request) error {
	doc, err := decodeDocument(r)
	if err != nil {
		return err
	}
	bug, err := s.bugs.Create(r.Context(), doc)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, bug)
	return nil
}

func (s *Server) updateBug(w http.ResponseWriter, r *http.Request) error {
	doc, err := decodeDocument(r)
	if err != nil {
		return err
	}
	bug, err := s.bugs.Update(r.Context(), r.PathValue("id"), doc)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, bug)
	return nil
}

func (s *Server) deleteBug(w http.ResponseWriter, r *http.Request) error {
	if _, err := s.bugs.Delete(r.Context(), r.PathValue("id")); err != nil {
		return err
	}
	writeMessage(w, http.StatusOK, MsgBugDeleted)
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
