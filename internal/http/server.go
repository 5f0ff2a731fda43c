package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	applog "traffic/internal/log"
	"traffic/internal/metrics"
	"traffic/internal/middleware/ratelimit"
	"traffic/internal/middleware/security"
	"traffic/internal/middleware/trace"
	"traffic/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the operations exposed over HTTP.
type Services struct {
	Entries *services.EntryService
	Rollups *services.RollupService
	Clients *services.ClientService
	Store   Pinger
}

type Options struct {
	Logger  *applog.Logger
	Metrics *metrics.Collector
	// RateLimitPerMinute applies per client IP to writes only.
	RateLimitPerMinute int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
}

// Server wraps http.Server with the API routes and its middleware.
type Server struct {
	http.Server

	entries *services.EntryService
	rollups *services.RollupService
	clients *services.ClientService
	store   Pinger

	limiter      *ratelimit.Limiter
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	s := &Server{
		entries: svc.Entries,
		rollups: svc.Rollups,
		clients: svc.Clients,
		store:   svc.Store,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		now:     time.Now,
	}

	ips := security.NewIPExtractor()
	tracer := trace.NewMiddleware(ips.ExtractClientIP, opts.Metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(applog.Middleware(opts.Logger))
	r.Use(tracer.Middleware)
	r.Use(headers.Middleware)
	r.Use(writesOnly(s.limiter.Middleware(ips.ExtractClientIP, rateLimited)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "route not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Route("/clients", func(r chi.Router) {
		r.Post("/", s.handleCreateClient)
		r.Get("/", s.handleListClients)
		r.Route("/{clientID}", func(r chi.Router) {
			r.Get("/", s.handleGetClient)
			r.Put("/", s.handleUpdateClient)
			r.Delete("/", s.handleDeactivateClient)

			r.Post("/products", s.handleCreateProduct)
			r.Get("/products", s.handleListProducts)

			r.Get("/entries", s.handleListEntries)
			r.Put("/entries/{date}", s.handleSaveEntry)
			r.Get("/entries/{date}", s.handleGetEntry)

			r.Get("/summary", s.handleMonthlySummary)
			r.Get("/summary/products", s.handleSummaryByProduct)
			r.Get("/summary/daily", s.handleDailyProductMetrics)
			r.Get("/dashboard", s.handleDashboard)
		})
	})
	r.Delete("/products/{productID}", s.handleDeactivateProduct)
	r.Delete("/entries/{entryID}", s.handleDeleteEntry)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// writesOnly applies limit to mutating requests; reads pass straight through.
func writesOnly(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := limit(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err.Error())
			NewResponse().Status(http.StatusServiceUnavailable).
				JSON(map[string]string{"status": "unavailable"}).Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}
