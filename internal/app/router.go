package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/chorale-hq/chorale/internal/absences"
	"github.com/chorale-hq/chorale/internal/attendance"
	"github.com/chorale-hq/chorale/internal/auth"
	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/gigs"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/observability"
	"github.com/chorale-hq/chorale/internal/shared"
	"github.com/chorale-hq/chorale/internal/todos"
	"github.com/chorale-hq/chorale/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	MembersHandler    *members.Handler
	EventsHandler     *events.Handler
	AttendanceHandler *attendance.Handler
	AbsencesHandler   *absences.Handler
	GigsHandler       *gigs.Handler
	TodosHandler      *todos.Handler
	CatalogHandler    *authz.Handler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with chorale defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/members", params.MembersHandler.MountRoutes)

	// The attendance routes hang off individual events, so both handlers
	// share the /events subrouter.
	r.Route("/events", func(r chi.Router) {
		params.EventsHandler.MountRoutes(r)
		params.AttendanceHandler.MountRoutes(r)
	})

	r.Route("/absence_requests", params.AbsencesHandler.MountRoutes)
	r.Route("/gig_requests", params.GigsHandler.MountRoutes)
	r.Route("/todos", params.TodosHandler.MountRoutes)

	// Catalog routes register at the top level: /roles, /permissions,
	// /role_permissions, /member_roles.
	r.Group(params.CatalogHandler.MountRoutes)

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
