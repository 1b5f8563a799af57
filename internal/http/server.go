// Package http exposes the expense tracker JSON API over net/http.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"expenses/internal/core"
	"expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/middleware/trace"
	"expenses/internal/services"
)

// ResetLimitMessage is returned when a client exceeds the password reset
// limit.
const ResetLimitMessage = "Too many password reset attempts, please try again after an hour"

// Options configure the transport layer.
type Options struct {
	Addr            string
	CORSOrigin      string
	Production      bool
	RateLimit       int
	ResetRateLimit  int
	ReceiptMaxBytes int64
}

// Deps are the services the handlers call.
type Deps struct {
	Auth     *services.AuthService
	Expenses *services.ExpenseService
	Tasks    *services.TaskService
	// Ready reports whether the backing store is reachable.
	Ready func(context.Context) error
}

type Server struct {
	http.Server

	auth     *services.AuthService
	expenses *services.ExpenseService
	tasks    *services.TaskService
	ready    func(context.Context) error

	production      bool
	receiptMaxBytes int64

	detector     *security.Detector
	tracer       *trace.Middleware
	limiter      *ratelimit.Limiter
	resetLimiter *ratelimit.Limiter
	logger       *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options, deps Deps) *Server {
	logger := log.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		auth:            deps.Auth,
		expenses:        deps.Expenses,
		tasks:           deps.Tasks,
		ready:           deps.Ready,
		production:      opts.Production,
		receiptMaxBytes: opts.ReceiptMaxBytes,
		detector:        detector,
		tracer:          trace.NewMiddleware(detector.ExtractClientIP),
		limiter:         ratelimit.NewLimiter(ratelimit.Config{Limit: opts.RateLimit, Window: time.Minute}),
		resetLimiter:    ratelimit.NewLimiter(ratelimit.ResetConfig(opts.ResetRateLimit)),
		logger:          logger,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = security.CORS(security.DefaultCORSConfig(opts.CORSOrigin))(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = detector.Middleware()(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onLimit(core.NewError(core.KindRateLimited, "Too many requests, please try again later", nil)))
	resetLimited := s.resetLimiter.Middleware(s.detector.ExtractClientIP, s.onLimit(core.NewError(core.KindRateLimited, ResetLimitMessage, nil)))

	mux.Handle("POST /api/auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.Handle("POST /api/auth/google", limited(http.HandlerFunc(s.handleGoogleLogin)))
	mux.Handle("GET /api/auth/me", s.requireAuth(s.handleMe))
	mux.Handle("POST /api/auth/forgot-password", resetLimited(http.HandlerFunc(s.handleForgotPassword)))
	mux.Handle("POST /api/auth/reset-password/{token}", resetLimited(http.HandlerFunc(s.handleResetPassword)))

	mux.Handle("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("POST /api/expenses", limited(s.requireAuth(s.handleCreateExpense)))
	mux.Handle("GET /api/expenses/analytics", s.requireAuth(s.handleAnalytics))
	mux.Handle("GET /api/expenses/receipts/{filename}", s.requireAuth(s.handleReceipt))
	mux.Handle("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", limited(s.requireAuth(s.handleUpdateExpense)))
	mux.Handle("DELETE /api/expenses/{id}", limited(s.requireAuth(s.handleDeleteExpense)))

	mux.Handle("GET /api/tasks", s.requireAuth(s.handleListTasks))
	mux.Handle("POST /api/tasks", limited(s.requireAuth(s.handleCreateTask)))
	mux.Handle("PUT /api/tasks/{id}", limited(s.requireAuth(s.handleUpdateTask)))
	mux.Handle("DELETE /api/tasks/{id}", limited(s.requireAuth(s.handleDeleteTask)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, core.NotFound("Route not found"))
	})
}

func (s *Server) onLimit(err error) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		s.writeError(w, r, err)
	}
}

// Shutdown stops the limiters and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.resetLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Field("status", "ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			resp := ErrorResponse(core.Internal("Database unavailable", err), !s.production)
			resp.Status(http.StatusServiceUnavailable).Write(w)
			return
		}
	}
	NewJSONResponse().Field("status", "ready").Write(w)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().
		Field("requests", s.tracer.GetMetrics()).
		Field("rateLimit", s.limiter.GetMetrics()).
		Field("resetRateLimit", s.resetLimiter.GetMetrics()).
		Field("security", s.detector.GetMetrics()).
		Write(w)
}
