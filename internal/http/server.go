package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"wallet/internal/log"
	"wallet/internal/middleware/ratelimit"
	"wallet/internal/middleware/security"
	"wallet/internal/middleware/trace"
	"wallet/internal/services"
	"wallet/internal/session"
)

const sessionCookie = "wallet_session"

// DemoAccount is the account the demo sign-in uses.
type DemoAccount struct {
	Email    string
	Password string
}

// Deps are the services the API is built on.
type Deps struct {
	Entries  *services.EntryService
	Reports  *services.ReportService
	Sessions session.Collaborator
	Users    session.UserRegistry
	// Ready reports whether the backing store is reachable; nil means
	// always ready.
	Ready              func(ctx context.Context) error
	Demo               DemoAccount
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	entries  *services.EntryService
	reports  *services.ReportService
	sessions session.Collaborator
	users    session.UserRegistry
	ready    func(ctx context.Context) error
	demo     DemoAccount

	validator *Validator
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	logger    *log.StructuredLogger

	shutdownOnce sync.Once
}

func NewServer(addr string, d Deps) *Server {
	s := &Server{
		entries:   d.Entries,
		reports:   d.Reports,
		sessions:  d.Sessions,
		users:     d.Users,
		ready:     d.Ready,
		demo:      d.Demo,
		validator: NewValidator(),
		detector:  security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: d.RateLimitPerMinute,
		}),
		logger: log.NewStructuredLogger(log.NewComponentLogger(log.ComponentHTTP)),
	}
	s.tracer = trace.NewMiddleware(s.detector.ClientIP)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.DefaultHeadersConfig()))
	r.Use(s.limiter.Middleware(s.detector.ClientIP, s.onRateLimit, http.MethodPost))
	r.Use(s.withSession)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-in", s.handleSignIn)
			r.Post("/sign-up", s.handleSignUp)
			r.Post("/demo", s.handleDemoSignIn)
			r.Post("/sign-out", s.handleSignOut)
			r.Get("/session", s.handleSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)

			r.Get("/analytics", s.handleAnalytics)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/calendar", s.handleCalendar)
			r.Get("/export.xlsx", s.handleExport)

			r.Route("/{variant}", func(r chi.Router) {
				r.Use(withVariant)
				r.Get("/", s.handleListEntries)
				r.Post("/", s.handleCreateEntry)
				r.Get("/categories", s.handleCategories)
				r.Get("/totals", s.handleTotals)
			})
		})
	})

	return r
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	TooManyRequestsError("rate limit exceeded, please try again later").
		NotifyError("Too many requests. Please wait a minute.").
		Write(w)
}

// Shutdown stops the background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]any{"status": "ready"}).Write(w)
}
