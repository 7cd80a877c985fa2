package attendance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/platform/httpx"
)

// Handler exposes attendance endpoints, mounted on the events subrouter.
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

// MountRoutes registers attendance routes under /events.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireMember)
		r.Post("/{id}/rsvp", h.rsvp)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/excuse_unconfirmed", h.excuseUnconfirmed)
		r.Get("/{id}/attendance", h.roster)
		r.Get("/{id}/attendance/{member}", h.forMember)
		r.Put("/{id}/attendance/{member}", h.update)
	})
}

type rsvpForm struct {
	Attending *bool `json:"attending" validate:"required"`
}

type updateForm struct {
	Confirmed bool `json:"confirmed"`
	Excused   bool `json:"excused"`
	DidAttend bool `json:"did_attend"`
}

type recordView struct {
	Member    string `json:"member"`
	Name      string `json:"name,omitempty"`
	Section   string `json:"section,omitempty"`
	RSVP      *bool  `json:"rsvp"`
	Confirmed bool   `json:"confirmed"`
	Excused   bool   `json:"excused"`
	DidAttend bool   `json:"did_attend"`
	State     string `json:"state"`
}

func viewOf(record RosterRecord) recordView {
	return recordView{
		Member:    record.Member,
		Name:      record.Name,
		Section:   record.Section,
		RSVP:      record.Attendance.RSVP,
		Confirmed: record.Attendance.Confirmed,
		Excused:   record.Attendance.Excused,
		DidAttend: record.Attendance.DidAttend,
		State:     string(record.State),
	}
}

func (h *Handler) rsvp(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := events.EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	var form rsvpForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.RSVP(r.Context(), principal, id, *form.Attending); err != nil {
		h.fail(w, "rsvp", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := events.EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	if err := h.service.Confirm(r.Context(), principal, id); err != nil {
		h.fail(w, "confirm", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) excuseUnconfirmed(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := events.EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	if err := h.service.ExcuseUnconfirmed(r.Context(), principal, id); err != nil {
		h.fail(w, "excuse unconfirmed", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) roster(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := events.EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	roster, err := h.service.Roster(r.Context(), principal, id)
	if err != nil {
		h.fail(w, "roster", err)
		return
	}
	out := make([]recordView, 0, len(roster))
	for _, record := range roster {
		out = append(out, viewOf(record))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) forMember(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := events.EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	record, err := h.service.ForMember(r.Context(), principal, id, chi.URLParam(r, "member"))
	if err != nil {
		h.fail(w, "member attendance", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(record))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, ok := events.EventID(r)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid event id")
		return
	}
	var form updateForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	err := h.service.Update(r.Context(), principal, id, chi.URLParam(r, "member"), UpdateInput{
		Confirmed: form.Confirmed,
		Excused:   form.Excused,
		DidAttend: form.DidAttend,
	})
	if err != nil {
		h.fail(w, "update attendance", err)
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
