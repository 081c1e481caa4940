package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"setupd/internal/common/fsutil"
	"setupd/internal/installer"
	"setupd/pkg/types"
)

// Service defines the installer operations required by the HTTP API layer.
type Service interface {
	Snapshot() types.InstallationState
	Install(ctx context.Context, req types.InstallRequest) (string, error)
	Stop() error
	Logs(n int) []types.LogEntry
	LogCapacity() int
	Subscribe() *installer.Subscription
	Unsubscribe(s *installer.Subscription)
}

// Catalog summarises what the manifest offers.
type Catalog interface {
	Summary() types.ManifestSummary
}

// Puller updates the setup checkout. A non-nil error means the update could
// not be attempted at all; a failed update is reported in the response.
type Puller interface {
	Pull(ctx context.Context) (types.PullResponse, error)
}

// Option configures optional collaborators of the mux.
type Option func(*server)

// WithCatalog supplies the manifest summary for /status.
func WithCatalog(c Catalog) Option { return func(s *server) { s.catalog = c } }

// WithPuller enables POST /pull.
func WithPuller(p Puller) Option { return func(s *server) { s.puller = p } }

// WithComfyDir reports the runtime directory (and whether it exists) in /status.
func WithComfyDir(dir string) Option { return func(s *server) { s.comfyDir = dir } }

type server struct {
	svc      Service
	catalog  Catalog
	puller   Puller
	comfyDir string
}

func NewMux(svc Service, opts ...Option) http.Handler {
	s := &server{svc: svc}
	for _, o := range opts {
		o(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// text/event-stream is not in the compressible set, so streams stay unbuffered.
	r.Use(middleware.Compress(5))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/", s.handleStatus)
	r.Get("/status", s.handleStatus)
	r.Post("/install", s.handleInstall)
	r.Get("/progress", s.handleProgress)
	r.Get("/logs", s.handleLogs)
	r.Post("/stop", s.handleStop)
	r.Post("/pull", s.handlePull)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// handleStatus godoc
// @Summary Installation status
// @Tags setup
// @Produce json
// @Success 200 {object} types.StatusResponse
// @Router /status [get]
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := types.StatusResponse{
		Status:       "online",
		Installation: s.svc.Snapshot(),
		Available:    types.ManifestSummary{AvailableModels: []string{}},
		ComfyDir:     s.comfyDir,
	}
	if s.catalog != nil {
		resp.Available = s.catalog.Summary()
	}
	if s.comfyDir != "" {
		resp.ComfyExists = fsutil.PathExists(s.comfyDir)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleInstall godoc
// @Summary Start an installation
// @Tags setup
// @Accept json
// @Produce json
// @Param request body types.InstallRequest true "models and optional tokens"
// @Success 200 {object} types.InstallResponse
// @Failure 400 {object} types.ErrorResponse
// @Failure 409 {object} types.ErrorResponse
// @Failure 500 {object} types.ErrorResponse
// @Router /install [post]
func (s *server) handleInstall(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req types.InstallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Oversized bodies also land here; the size limit is not disclosed.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Models) == 0 {
		writeJSONError(w, http.StatusBadRequest, "No models specified")
		return
	}

	// The child outlives the request; only shutdown may interrupt a Start
	// that is waiting for a previous child to exit.
	jobID, err := s.svc.Install(serverBaseCtx, req)
	if err != nil {
		status := statusFor(err)
		if status >= 500 {
			zlog.Error().Err(err).Str("request_id", middleware.GetReqID(r.Context())).Msg("install failed")
		}
		writeJSONError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.InstallResponse{Status: "started", Models: req.Models, JobID: jobID})
}

// handleProgress godoc
// @Summary Live installation events
// @Description Server-sent events. The first frame is a snapshot; the stream ends after a completed, error or cancelled status event.
// @Tags setup
// @Produce text/event-stream
// @Success 200 {object} types.Event
// @Router /progress [get]
func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	sub := s.svc.Subscribe()
	defer s.svc.Unsubscribe(sub)
	progressStreams.Inc()
	defer progressStreams.Dec()

	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := io.Writer(w)
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &frameLogger{})
	}
	if err := writeEvent(out, types.SnapshotEvent(sub.Snapshot)); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			if err := writeEvent(out, ev); err != nil {
				return
			}
			flusher.Flush()
			if ev.Terminal() {
				return
			}
		case <-ticker.C:
			if _, err := io.WriteString(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE frame carrying ev as JSON.
func writeEvent(w io.Writer, ev types.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

// handleLogs godoc
// @Summary Recent log entries
// @Tags setup
// @Produce json
// @Param limit query int false "number of entries (default 100)"
// @Success 200 {object} types.LogsResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /logs [get]
func (s *server) handleLogs(w http.ResponseWriter, r *http.Request) {
	n := logTail
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		n = parsed
	}
	if c := s.svc.LogCapacity(); c > 0 && n > c {
		n = c
	}
	logs := s.svc.Logs(n)
	if logs == nil {
		logs = []types.LogEntry{}
	}
	writeJSON(w, http.StatusOK, types.LogsResponse{Logs: logs})
}

// handleStop godoc
// @Summary Cancel the running installation
// @Tags setup
// @Produce json
// @Success 200 {object} types.StopResponse
// @Failure 400 {object} types.ErrorResponse
// @Router /stop [post]
func (s *server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Stop(); err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.StopResponse{Status: "stopping"})
}

// handlePull godoc
// @Summary Update the setup checkout (git pull)
// @Tags setup
// @Produce json
// @Success 200 {object} types.PullResponse
// @Failure 500 {object} types.ErrorResponse
// @Failure 501 {object} types.ErrorResponse
// @Router /pull [post]
func (s *server) handlePull(w http.ResponseWriter, r *http.Request) {
	if s.puller == nil {
		writeJSONError(w, http.StatusNotImplemented, "pull is not configured")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	resp, err := s.puller.Pull(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
			return
		}
		zlog.Error().Err(err).Msg("pull failed")
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
