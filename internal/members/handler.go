package members

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/platform/httpx"
	"github.com/chorale-hq/chorale/internal/shared"
)

// Handler exposes member and semester endpoints.
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

// MountRoutes registers member routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireMember)
	r.Get("/", h.list)
	r.Get("/profile", h.profile)
	r.Put("/profile", h.updateProfile)
	r.Post("/confirm", h.confirm)
	r.Get("/sections", h.sections)
	r.Get("/semesters/current", h.currentSemester)
	r.Get("/{email}", h.get)
}

type memberView struct {
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	PreferredName string `json:"preferred_name,omitempty"`
	LastName      string `json:"last_name"`
	FullName      string `json:"full_name"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	Location      string `json:"location,omitempty"`
	Passengers    int    `json:"passengers"`
	AboutMe       string `json:"about_me,omitempty"`
}

func viewOf(m Member) memberView {
	return memberView{
		Email:         m.Email,
		FirstName:     m.FirstName,
		PreferredName: m.PreferredName,
		LastName:      m.LastName,
		FullName:      m.FullName(),
		PhoneNumber:   m.PhoneNumber,
		Location:      m.Location,
		Passengers:    m.Passengers,
		AboutMe:       m.AboutMe,
	}
}

type profileForm struct {
	FirstName     string `json:"first_name" validate:"required"`
	PreferredName string `json:"preferred_name"`
	LastName      string `json:"last_name" validate:"required"`
	PhoneNumber   string `json:"phone_number"`
	Location      string `json:"location"`
	Passengers    int    `json:"passengers" validate:"gte=0"`
	AboutMe       string `json:"about_me"`
}

type confirmForm struct {
	Enrollment string `json:"enrollment" validate:"required"`
	Section    string `json:"section"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list members", err)
		return
	}
	page := shared.NewPagination(
		queryInt(r, "page", 1),
		queryInt(r, "per_page", len(members)),
		len(members),
	)
	offset, limit := page.Window()
	if offset > len(members) {
		offset = len(members)
	}
	if offset+limit > len(members) {
		limit = len(members) - offset
	}
	out := make([]memberView, 0, limit)
	for _, m := range members[offset : offset+limit] {
		out = append(out, viewOf(m))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"members": out, "pagination": page})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	member, err := h.service.GetMember(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewOf(member))
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	member, err := h.service.GetMember(r.Context(), principal.Email)
	if err != nil {
		h.fail(w, "get profile", err)
		return
	}
	current, err := h.service.CurrentSemester(r.Context())
	if err != nil {
		h.fail(w, "get current semester", err)
		return
	}
	active, enrolled, err := h.service.Enrollment(r.Context(), principal.Email, current.Name)
	if err != nil {
		h.fail(w, "get enrollment", err)
		return
	}
	out := map[string]any{"member": viewOf(member), "semester": current.Name}
	if enrolled {
		out["enrollment"] = active.Enrollment
		out["section"] = active.Section
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	var form profileForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	err := h.service.UpdateProfile(r.Context(), principal.Email, ProfileInput{
		FirstName:     form.FirstName,
		PreferredName: form.PreferredName,
		LastName:      form.LastName,
		PhoneNumber:   form.PhoneNumber,
		Location:      form.Location,
		Passengers:    form.Passengers,
		AboutMe:       form.AboutMe,
	})
	if err != nil {
		h.fail(w, "update profile", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	var form confirmForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	err := h.service.ConfirmForSemester(r.Context(), principal.Email, ConfirmInput{
		Enrollment: Enrollment(form.Enrollment),
		Section:    form.Section,
	})
	if err != nil {
		h.fail(w, "confirm semester", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) sections(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.ListSections(r.Context())
	if err != nil {
		h.fail(w, "list sections", err)
		return
	}
	httpx.JSON(w, http.StatusOK, names)
}

func (h *Handler) currentSemester(w http.ResponseWriter, r *http.Request) {
	sem, err := h.service.CurrentSemester(r.Context())
	if err != nil {
		h.fail(w, "get current semester", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"name":       sem.Name,
		"start_date": sem.StartDate,
		"end_date":   sem.EndDate,
		"current":    sem.Current,
	})
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if h.logger != nil {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
