package absences

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/platform/httpx"
)

// Handler exposes absence request endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	eventsSvc *events.Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, eventsSvc *events.Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, eventsSvc: eventsSvc, authz: mw, validator: validator.New()}
}

// MountRoutes registers absence request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireMember)
	r.Get("/", h.list)
	r.Get("/mine", h.listOwn)
	r.Post("/{event}", h.submit)
	r.Get("/{event}/{member}", h.get)
	r.Post("/{event}/{member}/approve", h.approve)
	r.Post("/{event}/{member}/deny", h.deny)
}

type submitForm struct {
	Reason string `json:"reason" validate:"required"`
}

type requestView struct {
	Member     string     `json:"member"`
	Event      int64      `json:"event"`
	Time       time.Time  `json:"time"`
	Reason     string     `json:"reason"`
	Status     string     `json:"status"`
	ReviewedBy string     `json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

func viewOf(request AbsenceRequest) requestView {
	return requestView{
		Member:     request.Member,
		Event:      request.Event,
		Time:       request.Time,
		Reason:     request.Reason,
		Status:     string(request.Status),
		ReviewedBy: request.ReviewedBy,
		ReviewedAt: request.ReviewedAt,
	}
}

func eventParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "event"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	semester, err := h.eventsSvc.ResolveSemester(r.Context(), r.URL.Query().Get("semester"))
	if err != nil {
		h.fail(w, "resolve semester", err)
		return
	}
	requests, err := h.service.ListForSemester(r.Context(), principal, semester)
	if err != nil {
		h.fail(w, "list absence requests", err)
		return
	}
	out := make([]requestView, 0, len(requests))
	for _, request := range requests {
		out = append(out, viewOf(request))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listOwn(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	semester, err := h.eventsSvc.ResolveSemester(r.Context(), r.URL.Query().Get("semester"))
	if err != nil {
		h.fail(w, "resolve semester", err)
		return
	}
	requests, err := h.service.ListOwn(r.Context(), principal.Email, semester)
	if err != nil {
		h.fail(w, "list own absence requests", err)
		return
	}
	out := make([]requestView, 0, len(requests))
	for _, request := range requests {
		out = append(out, viewOf(request))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	event, ok := eventParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	var form submitForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.Submit(r.Context(), principal.Email, event, form.Reason); err != nil {
		h.fail(w, "submit absence request", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	event, ok := eventParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	request, err := h.service.Get(r.Context(), principal, chi.URLParam(r, "member"), event)
	if err != nil {
		h.fail(w, "get absence request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(request))
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	event, ok := eventParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	if err := h.service.Approve(r.Context(), principal, chi.URLParam(r, "member"), event); err != nil {
		h.fail(w, "approve absence request", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) deny(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	event, ok := eventParam(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	if err := h.service.Deny(r.Context(), principal, chi.URLParam(r, "member"), event); err != nil {
		h.fail(w, "deny absence request", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if h.logger != nil {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
