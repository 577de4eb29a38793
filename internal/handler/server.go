// Package handler implements the HTTP handlers for the bar crawl API.
// All handlers are methods on Server. Methods are split into domain-specific
// files (health.go, stop.go, group.go, export.go) but all share the same Server struct so
// they can access its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/pkordes/barcrawl/backend/internal/domain"
	"github.com/pkordes/barcrawl/backend/internal/middleware"
)

// StopQueueServicer defines the stop operations the handlers depend on.
// Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type StopQueueServicer interface {
	Create(ctx context.Context, eventID, barID uuid.UUID) (domain.Stop, error)
	GetByID(ctx context.Context, stopID uuid.UUID) (domain.StopDetail, error)
	Delete(ctx context.Context, stopID uuid.UUID) error
	Enqueue(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error)
	Serve(ctx context.Context, stopID uuid.UUID) (domain.Stop, bool, error)
	Vacate(ctx context.Context, stopID, groupID uuid.UUID) (domain.Stop, error)
}

// GroupServicer defines the group operations the handlers depend on.
type GroupServicer interface {
	CurrentStop(ctx context.Context, groupID uuid.UUID) (domain.Stop, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID, p domain.PaginationParams) ([]domain.Group, int64, error)
	Reroute(ctx context.Context, groupID uuid.UUID) (domain.Group, error)
}

// ExportServicer defines the export operation the handlers depend on.
type ExportServicer interface {
	Export(ctx context.Context, eventID uuid.UUID) ([]domain.ExportRow, error)
}

// Server holds the dependencies shared by every handler.
type Server struct {
	stops  StopQueueServicer
	groups GroupServicer
	export ExportServicer
	log    *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
// A nil logger means slog.Default().
func NewServer(stops StopQueueServicer, groups GroupServicer, export ExportServicer, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{stops: stops, groups: groups, export: export, log: log}
}

// RouterConfig carries the settings of the middleware chain.
type RouterConfig struct {
	JWTSecret    string
	CORSOrigins  []string
	MaxBodyBytes int64
	// Metrics, when set, is served unauthenticated at /metrics.
	Metrics http.Handler
}

// NewRouter builds the chi router for the whole API.
//
// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer →
// CORS → MaxBodySize. RequestID generates a unique trace ID per request,
// SlogLogger writes one structured line per request, and Recoverer turns
// panics into 500s. Health, the API document, and metrics are public; every
// other route needs a bearer token, and state changes need the coordinator role.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(s.log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	}

	r.Get("/healthz", s.GetHealth)
	r.Get("/openapi.yaml", s.GetOpenAPI)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthenticator(cfg.JWTSecret))

		r.Get("/stops/{stopId}", s.GetStop)
		r.Get("/groups/{groupId}/stop", s.GetGroupStop)
		r.Get("/events/{eventId}/groups", s.ListEventGroups)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(middleware.RoleCoordinator))

			r.Post("/stops", s.CreateStop)
			r.Delete("/stops/{stopId}", s.DeleteStop)
			r.Post("/stops/{stopId}/groups/{groupId}/enqueue", s.EnqueueGroup)
			r.Post("/stops/{stopId}/serve", s.ServeGroup)
			r.Post("/stops/{stopId}/groups/{groupId}/vacate", s.VacateGroup)
			r.Post("/groups/{groupId}/route", s.RerouteGroup)
			r.Get("/events/{eventId}/export", s.GetEventExport)
		})
	})

	return r
}
