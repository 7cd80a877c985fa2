package gigs

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/platform/httpx"
)

// Handler exposes gig request endpoints. Submission is public; everything
// else is officer-only.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	authz     authz.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: mw, validator: validator.New()}
}

// MountRoutes registers gig request routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.submit)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireMember)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Post("/{id}/dismiss", h.dismiss)
		r.Post("/{id}/reopen", h.reopen)
		r.Post("/{id}/create_event", h.createEvent)
	})
}

type submitForm struct {
	Name         string    `json:"name" validate:"required"`
	Organization string    `json:"organization"`
	ContactName  string    `json:"contact_name" validate:"required"`
	ContactEmail string    `json:"contact_email" validate:"required,email"`
	ContactPhone string    `json:"contact_phone"`
	StartTime    time.Time `json:"start_time" validate:"required"`
	Location     string    `json:"location"`
	Comments     string    `json:"comments"`
}

type convertForm struct {
	Name        string     `json:"name"`
	Semester    string     `json:"semester" validate:"required"`
	CallTime    *time.Time `json:"call_time"`
	ReleaseTime *time.Time `json:"release_time"`
	Points      int        `json:"points" validate:"gte=0"`
	Comments    string     `json:"comments"`
	Location    string     `json:"location"`
}

type requestView struct {
	ID           int64     `json:"id"`
	Time         time.Time `json:"time"`
	Name         string    `json:"name"`
	Organization string    `json:"organization,omitempty"`
	ContactName  string    `json:"contact_name"`
	ContactEmail string    `json:"contact_email"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	StartTime    time.Time `json:"start_time"`
	Location     string    `json:"location,omitempty"`
	Comments     string    `json:"comments,omitempty"`
	Status       string    `json:"status"`
	Event        *int64    `json:"event,omitempty"`
}

func viewOf(request GigRequest) requestView {
	return requestView{
		ID:           request.ID,
		Time:         request.Time,
		Name:         request.Name,
		Organization: request.Organization,
		ContactName:  request.ContactName,
		ContactEmail: request.ContactEmail,
		ContactPhone: request.ContactPhone,
		StartTime:    request.StartTime,
		Location:     request.Location,
		Comments:     request.Comments,
		Status:       string(request.Status),
		Event:        request.Event,
	}
}

func requestID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var form submitForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	id, err := h.service.Submit(r.Context(), SubmitInput{
		Name:         form.Name,
		Organization: form.Organization,
		ContactName:  form.ContactName,
		ContactEmail: form.ContactEmail,
		ContactPhone: form.ContactPhone,
		StartTime:    form.StartTime,
		Location:     form.Location,
		Comments:     form.Comments,
	})
	if err != nil {
		h.fail(w, "submit gig request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	var statuses []Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		statuses = append(statuses, Status(raw))
	}
	requests, err := h.service.List(r.Context(), principal, statuses)
	if err != nil {
		h.fail(w, "list gig requests", err)
		return
	}
	out := make([]requestView, 0, len(requests))
	for _, request := range requests {
		out = append(out, viewOf(request))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := requestID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	request, err := h.service.Get(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "get gig request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(request))
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := requestID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	if err := h.service.Dismiss(r.Context(), principal, id); err != nil {
		h.fail(w, "dismiss gig request", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := requestID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	if err := h.service.Reopen(r.Context(), principal, id); err != nil {
		h.fail(w, "reopen gig request", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := requestID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return
	}
	var form convertForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := ConvertInput{
		Name:        form.Name,
		Semester:    form.Semester,
		ReleaseTime: form.ReleaseTime,
		Points:      form.Points,
		Comments:    form.Comments,
		Location:    form.Location,
	}
	if form.CallTime != nil {
		input.CallTime = *form.CallTime
	}
	eventID, err := h.service.CreateEvent(r.Context(), principal, id, input)
	if err != nil {
		h.fail(w, "convert gig request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"event": eventID})
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if h.logger != nil {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
