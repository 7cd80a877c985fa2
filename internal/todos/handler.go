package todos

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/platform/httpx"
)

// Handler exposes todo endpoints.
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

// MountRoutes registers todo routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireMember)
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}/complete", h.complete)
}

type createForm struct {
	Text    string   `json:"text" validate:"required"`
	Members []string `json:"members" validate:"required,min=1,dive,email"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	list, err := h.service.ListIncomplete(r.Context(), principal)
	if err != nil {
		h.fail(w, "list todos", err)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, todo := range list {
		out = append(out, map[string]any{"id": todo.ID, "text": todo.Text, "completed": todo.Completed})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.service.Create(r.Context(), principal, form.Text, form.Members); err != nil {
		h.fail(w, "create todo", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	principal, _ := authz.PrincipalFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid todo id")
		return
	}
	if err := h.service.MarkComplete(r.Context(), principal, id); err != nil {
		h.fail(w, "complete todo", err)
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
