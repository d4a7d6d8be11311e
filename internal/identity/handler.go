package identity

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/openshelf/openshelf/internal/platform/httpx"
	"github.com/openshelf/openshelf/internal/shared"
)

// Handler wires the profile and role administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers identity routes. Authorization is enforced by the
// surrounding gate middleware; handlers only consume the resolved identity.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/getProfile", h.getProfile)
	r.Put("/editProfile", h.editProfile)
	r.Post("/changeUserRole", h.changeUserRole)
}

type profileView struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toProfileView(u User) profileView {
	return profileView{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role.String()}
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	user, err := h.service.GetProfile(r.Context(), id.UserID)
	if err != nil {
		h.logger.Error("get profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "", toProfileView(user))
}

type editProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (h *Handler) editProfile(w http.ResponseWriter, r *http.Request) {
	id := shared.IdentityFromContext(r.Context())
	if id == nil {
		httpx.RespondError(w, shared.ErrDenied)
		return
	}
	var req editProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid email address")
		return
	}
	user, err := h.service.EditProfile(r.Context(), id.UserID, ProfilePatch{Name: req.Name, Email: req.Email})
	if err != nil {
		h.logger.Error("edit profile", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "profile updated", toProfileView(user))
}

type changeRoleRequest struct {
	UserID string `json:"userId" validate:"required"`
	Role   string `json:"role" validate:"required"`
}

func (h *Handler) changeUserRole(w http.ResponseWriter, r *http.Request) {
	var req changeRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "userId and role are required")
		return
	}
	user, err := h.service.ChangeRole(r.Context(), req.UserID, req.Role)
	if err != nil {
		h.logger.Error("change user role", slog.String("target", req.UserID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, "updated user role", toProfileView(user))
}
