package events

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

// Handler exposes event scheduling endpoints.
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

// MountRoutes registers event routes. Permission checks that depend on the
// event's type run inside the service, not here. Routes are registered in a
// group so the attendance handler can share the same subrouter.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireMember)
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/week", h.week)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
		r.Get("/{id}/setlist", h.setlist)
		r.Put("/{id}/setlist", h.replaceSetlist)
	})
}

type eventForm struct {
	Name          string     `json:"name" validate:"required"`
	Semester      string     `json:"semester"`
	Type          string     `json:"type" validate:"required"`
	CallTime      time.Time  `json:"call_time" validate:"required"`
	ReleaseTime   *time.Time `json:"release_time"`
	Points        int        `json:"points" validate:"gte=0"`
	Comments      string     `json:"comments"`
	Location      string     `json:"location"`
	GigCount      bool       `json:"gig_count"`
	DefaultAttend bool       `json:"default_attend"`
	Repeat        string     `json:"repeat"`
	RepeatUntil   *time.Time `json:"repeat_until"`
}

type setlistForm struct {
	Titles []string `json:"titles" validate:"required"`
}

type eventView struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Semester      string     `json:"semester"`
	Type          string     `json:"type"`
	CallTime      time.Time  `json:"call_time"`
	ReleaseTime   *time.Time `json:"release_time,omitempty"`
	Points        int        `json:"points"`
	Comments      string     `json:"comments,omitempty"`
	Location      string     `json:"location,omitempty"`
	GigCount      bool       `json:"gig_count"`
	DefaultAttend bool       `json:"default_attend"`
}

func viewOf(e Event) eventView {
	return eventView{
		ID:            e.ID,
		Name:          e.Name,
		Semester:      e.Semester,
		Type:          string(e.Type),
		CallTime:      e.CallTime,
		ReleaseTime:   e.ReleaseTime,
		Points:        e.Points,
		Comments:      e.Comments,
		Location:      e.Location,
		GigCount:      e.GigCount,
		DefaultAttend: e.DefaultAttend,
	}
}

func viewsOf(list []Event) []eventView {
	out := make([]eventView, 0, len(list))
	for _, e := range list {
		out = append(out, viewOf(e))
	}
	return out
}

// EventID parses the {id} route parameter.
func EventID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	semester, err := h.service.ResolveSemester(r.Context(), r.URL.Query().Get("semester"))
	if err != nil {
		h.fail(w, "resolve semester", err)
		return
	}
	list, err := h.service.ListForSemester(r.Context(), semester)
	if err != nil {
		h.fail(w, "list events", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewsOf(list))
}

func (h *Handler) week(w http.ResponseWriter, r *http.Request) {
	semester, err := h.service.ResolveSemester(r.Context(), r.URL.Query().Get("semester"))
	if err != nil {
		h.fail(w, "resolve semester", err)
		return
	}
	at := time.Now()
	if raw := r.URL.Query().Get("at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "at must be an RFC 3339 timestamp")
			return
		}
		at = parsed
	}
	week, err := h.service.WeekOf(r.Context(), semester, at)
	if err != nil {
		h.fail(w, "list week", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewsOf(week))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	event, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get event", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(event))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	form, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	semester, err := h.service.ResolveSemester(r.Context(), form.Semester)
	if err != nil {
		h.fail(w, "resolve semester", err)
		return
	}
	input := CreateInput{
		Name:          form.Name,
		Semester:      semester,
		Type:          authz.EventType(form.Type),
		CallTime:      form.CallTime,
		ReleaseTime:   form.ReleaseTime,
		Points:        form.Points,
		Comments:      form.Comments,
		Location:      form.Location,
		GigCount:      form.GigCount,
		DefaultAttend: form.DefaultAttend,
		Repeat:        RepeatPeriod(form.Repeat),
	}
	if form.RepeatUntil != nil {
		input.RepeatUntil = *form.RepeatUntil
	}
	id, err := h.service.Create(r.Context(), principal, input)
	if err != nil {
		h.fail(w, "create event", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	form, ok := h.decodeEvent(w, r)
	if !ok {
		return
	}
	err := h.service.Update(r.Context(), principal, id, UpdateInput{
		Name:          form.Name,
		Type:          authz.EventType(form.Type),
		CallTime:      form.CallTime,
		ReleaseTime:   form.ReleaseTime,
		Points:        form.Points,
		Comments:      form.Comments,
		Location:      form.Location,
		GigCount:      form.GigCount,
		DefaultAttend: form.DefaultAttend,
	})
	if err != nil {
		h.fail(w, "update event", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	if err := h.service.Delete(r.Context(), principal, id); err != nil {
		h.fail(w, "delete event", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) setlist(w http.ResponseWriter, r *http.Request) {
	id, ok := EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	entries, err := h.service.Setlist(r.Context(), id)
	if err != nil {
		h.fail(w, "get setlist", err)
		return
	}
	out := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		out = append(out, map[string]any{"order": entry.Order, "title": entry.Title})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) replaceSetlist(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	var form setlistForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.service.ReplaceSetlist(r.Context(), principal, id, form.Titles); err != nil {
		h.fail(w, "replace setlist", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) decodeEvent(w http.ResponseWriter, r *http.Request) (eventForm, bool) {
	var form eventForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return eventForm{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return eventForm{}, false
	}
	return form, true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if h.logger != nil {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
