// Package api provides HTTP API server components.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/goclaw/taskflow/config"
	"github.com/goclaw/taskflow/pkg/api/handlers"
	"github.com/goclaw/taskflow/pkg/api/middleware"
	"github.com/goclaw/taskflow/pkg/api/response"
	"github.com/goclaw/taskflow/pkg/logger"

	_ "github.com/goclaw/taskflow/docs/swagger" // Register generated docs
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Workflow handles workflow definition and transition endpoints
	Workflow *handlers.WorkflowHandler

	// Rules handles validation rule administration
	Rules *handlers.RuleHandler

	// Validation runs entities through the validation engine
	Validation *handlers.ValidationHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// Events streams lifecycle events over websocket
	Events *handlers.WebSocketHandler

	// Metrics is the optional metrics recorder
	Metrics middleware.MetricsRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, handlers *Handlers) chi.Router {
	r := chi.NewRouter()

	// Register global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Tracing(middleware.DefaultTracingOptions()))
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	// Add metrics middleware if provided
	if handlers.Metrics != nil {
		r.Use(middleware.Metrics(handlers.Metrics))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	if cfg.Server.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RequestsPerSecond, cfg.Server.RateLimit.Burst)
		r.Use(middleware.RateLimit(limiter))
	}

	// Register routes
	RegisterRoutes(r, handlers, cfg.Server.HTTP.RequestTimeout)

	return r
}

// RegisterRoutes registers all API routes. The timeout only applies to
// request/response routes; the websocket stream is long-lived.
func RegisterRoutes(r chi.Router, handlers *Handlers, requestTimeout time.Duration) {
	r.Route("/api/v1", func(r chi.Router) {
		if handlers.Events != nil {
			r.Get("/events/ws", handlers.Events.ServeHTTP)
		}

		r.Group(func(r chi.Router) {
			if requestTimeout > 0 {
				r.Use(middleware.Timeout(requestTimeout))
			}

			// Workflow routes
			if handlers.Workflow != nil {
				wh := handlers.Workflow
				r.Route("/workflows", func(r chi.Router) {
					r.Get("/", wh.ListWorkflows)
					r.Post("/", wh.CreateWorkflow)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", wh.GetWorkflow)
						r.Patch("/", wh.UpdateWorkflow)
						r.Delete("/", wh.DeleteWorkflow)
						r.Post("/default", wh.SetDefault)

						r.Post("/statuses", wh.AddStatus)
						r.Put("/statuses/order", wh.ReorderStatuses)
						r.Patch("/statuses/{sid}", wh.UpdateStatus)
						r.Delete("/statuses/{sid}", wh.DeleteStatus)
						r.Get("/statuses/{sid}/transitions", wh.AvailableTransitions)

						r.Post("/transitions", wh.AddTransition)
						r.Delete("/transitions/{tid}", wh.DeleteTransition)
						r.Post("/transitions/{tid}/attempt", wh.AttemptTransition)
						r.Post("/automations", wh.AutoTransitions)
					})
				})
			}

			// Rule routes
			if handlers.Rules != nil {
				rh := handlers.Rules
				r.Route("/rules", func(r chi.Router) {
					r.Get("/", rh.ListRules)
					r.Post("/", rh.CreateRule)
					r.Get("/{id}", rh.GetRule)
					r.Put("/{id}", rh.UpdateRule)
					r.Delete("/{id}", rh.DeleteRule)
					r.Post("/{id}/toggle", rh.ToggleRule)
				})
			}

			if handlers.Validation != nil {
				r.Post("/validate", handlers.Validation.Validate)
				r.Post("/validate/autofix", handlers.Validation.AutoFix)
			}
		})
	})

	// Health check routes (not versioned)
	if handlers.Health != nil {
		r.Get("/health", handlers.Health.Health)
		r.Get("/ready", handlers.Health.Ready)
		r.Get("/status", handlers.Health.Status)
	}

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound, "route not found", middleware.GetRequestID(r.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.ErrCodeMethodNotAllowed, "method not allowed", middleware.GetRequestID(r.Context()))
	})
}
