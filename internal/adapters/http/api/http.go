// Package api serves boards, refresh requests and live updates over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/okian/ctfboard/internal/adapters/http/swagger"
	service "github.com/okian/ctfboard/internal/app"
	"github.com/okian/ctfboard/internal/domain/model"
	"github.com/okian/ctfboard/pkg/logger"
)

// Dependencies required by HTTP handlers. *service.Service implements it.
type Dependencies interface {
	Present(ctx context.Context, codename string) (service.View, error)
	DefaultCodename(ctx context.Context) (string, error)
	Board(ctx context.Context, codename string) (model.Board, error)
	Entry(ctx context.Context, codename, team string) (model.Entry, error)
	Windows(ctx context.Context) ([]service.WindowInfo, error)
	Winners(ctx context.Context) (service.WinnersView, error)
	RequestRefresh(ctx context.Context, codename string) (service.RefreshStatus, error)
	Subscribe(w http.ResponseWriter, r *http.Request, codename string, initial model.Board) error
	StatsProvider
}

// Server wires HTTP routes for the board API.
type Server struct {
	opsHandler     *OpsHandler
	boardsHandler  *BoardsHandler
	windowsHandler *WindowsHandler
	liveHandler    *LiveHandler

	origins []string
	logger  logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the origins allowed by CORS. Empty or "*" allows any.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{logger: logger.Get().Named("api")}
	for _, opt := range opts {
		opt(s)
	}
	errs := &errorWriter{logger: s.logger}
	s.opsHandler = NewOpsHandler(deps)
	s.boardsHandler = NewBoardsHandler(deps, errs)
	s.windowsHandler = NewWindowsHandler(deps, errs)
	s.liveHandler = NewLiveHandler(deps, errs)
	return s
}

// Routes returns the complete HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
		MetricsMiddleware,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	r.Get("/healthz", s.opsHandler.HandleHealth)
	r.Handle("/metrics", s.opsHandler.Metrics())
	r.Get("/stats", s.opsHandler.HandleStats)
	r.Get("/windows", s.windowsHandler.HandleWindows)
	r.Get("/winners", s.windowsHandler.HandleWinners)
	swagger.Register(r)

	r.Route("/boards", func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Get("/", s.boardsHandler.HandleDefault)
		r.Get("/{codename}", s.boardsHandler.HandleBoard)
		r.Get("/{codename}/teams/{team}", s.boardsHandler.HandleEntry)
		r.Get("/{codename}/export.xlsx", s.boardsHandler.HandleExport)
		r.Post("/{codename}/refresh", s.boardsHandler.HandleRefresh)
	})
	r.Get("/ws/boards/{codename}", s.liveHandler.HandleSubscribe)

	return r
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// errorWriter maps domain errors to responses. Server-side failures are
// logged and their details withheld from the client.
type errorWriter struct {
	logger logger.Logger
}

func (e *errorWriter) write(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, model.ErrInvalid):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", err)
	case errors.Is(err, service.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, "unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", nil)
	default:
		// ErrWindowNotEnded lands here: a contract violation, not a client error.
		e.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("request_id", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ListenAndServe serves handler on addr until ctx is done, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
