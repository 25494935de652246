// Package routing assembles the gateway's chi router: the global middleware
// stack, the completion and notification routes, and the operational
// endpoints.
package routing

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rentfleet/aigw/config"
	"github.com/rentfleet/aigw/errors"
	"github.com/rentfleet/aigw/server/handlers"
	"github.com/rentfleet/aigw/server/metrics"
	"github.com/rentfleet/aigw/server/middleware"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerState reports the state of the completion circuit breaker.
// completion.Guard implements it.
type BreakerState interface {
	State() gobreaker.State
}

// Deps are the components the router wires together. Metrics and Breaker
// are optional.
type Deps struct {
	Config  *config.Config
	Gateway *handlers.Gateway
	Auth    middleware.Authorizer
	Metrics *metrics.Metrics
	Breaker BreakerState
	Logger  *zap.Logger
}

// Router handles HTTP routing for the gateway.
type Router struct {
	router  chi.Router
	limiter *middleware.RateLimiter
	queue   *middleware.Admission
	deps    Deps
}

// NewRouter creates the router. Rate limiting and the admission queue are
// enabled from the configuration.
func NewRouter(d Deps) *Router {
	r := &Router{
		router: chi.NewRouter(),
		deps:   d,
	}
	if d.Config.RateLimit.Enabled {
		r.limiter = middleware.NewRateLimiter(d.Config.RateLimit, d.Metrics)
	}
	if d.Config.Queue.Enabled {
		r.queue = middleware.NewAdmission(d.Config.Queue, d.Metrics)
	}

	r.router.Use(middleware.RequestID)
	r.router.Use(middleware.Recovery(d.Logger))
	r.router.Use(middleware.Logging(d.Logger))
	if d.Metrics != nil {
		r.router.Use(middleware.PrometheusMetrics(d.Metrics))
	}
	r.router.Use(middleware.CORS(d.Config.CORS))

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	gw := r.deps.Gateway

	r.router.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "Not found", errors.ValidationError, http.StatusNotFound)
	})
	r.router.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		errors.ErrorWithType(w, "Method not allowed", errors.ValidationError, http.StatusMethodNotAllowed)
	})

	r.router.Get("/", gw.Status)
	r.router.Get("/health", r.healthCheckHandler())
	if r.deps.Metrics != nil {
		RegisterMetricsRoutes(r.router, r.deps.Metrics)
	}

	r.router.Group(func(api chi.Router) {
		api.Use(middleware.BodyLimit(r.deps.Config.Server.MaxBodyBytes))
		if r.limiter != nil {
			api.Use(r.limiter.Handler)
		}

		api.Group(func(completions chi.Router) {
			if r.queue != nil {
				completions.Use(r.queue.Handler)
			}
			completions.Post("/recognize-documents", gw.RecognizeDocuments)
			completions.Post("/parse-deal", gw.ParseDeal)
			completions.Post("/generate-buyout-plans", gw.GenerateBuyoutPlans)
			completions.Post("/get-buyout-plans", gw.GenerateBuyoutPlans)
		})

		api.With(middleware.SharedSecret(r.deps.Auth, r.deps.Logger)).Post("/notify", gw.Notify)
	})
}

// healthCheckHandler reports 503 while the completion breaker is open.
func (r *Router) healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		status := map[string]string{"status": "healthy", "completion": "closed"}
		code := http.StatusOK
		if r.deps.Breaker != nil {
			state := r.deps.Breaker.State()
			status["completion"] = state.String()
			if state == gobreaker.StateOpen {
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}
}

// Admission returns the admission queue, or nil when it is disabled.
func (r *Router) Admission() *middleware.Admission {
	return r.queue
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
