package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
)

type UserHandler struct {
	userService service.UserService
	validate    *validator.Validate
}

func NewUserHandler(userService service.UserService, v *validator.Validate) *UserHandler {
	return &UserHandler{userService: userService, validate: v}
}

// RegisterRoutes mounts v1 user routes
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/users/me", authMw(http.HandlerFunc(h.handleUsers)))
}

func (h *UserHandler) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/users/me":
		h.createUser(w, r)
	case r.Method == http.MethodGet && r.URL.Path == "/users/me":
		h.getUser(w, r)
	default:
		http.NotFound(w, r)
	}
}

// createUser provisions the profile row on first sign-in. Identity is the
// auth provider's; we only keep product-side attributes.
func (h *UserHandler) createUser(w http.ResponseWriter, r *http.Request) {
	userId := middleware.PrincipalFromContext(r.Context())
	if userId == "" {
		http.Error(w, "Unauthorized: User ID not found in context", http.StatusUnauthorized)
		return
	}

	var req dto.UserCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	userModel := &model.User{
		UserID:    userId,
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.AvatarURL,
	}
	createdUser, err := h.userService.Create(r.Context(), userModel)
	if err != nil {
		http.Error(w, "Failed to create user: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := dto.UserResponseDTO{
		UserID:    createdUser.UserID,
		Name:      createdUser.Name,
		Email:     createdUser.Email,
		AvatarURL: createdUser.AvatarURL,
		CreatedAt: createdUser.CreatedAt,
		UpdatedAt: createdUser.UpdatedAt,
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	userId := middleware.PrincipalFromContext(r.Context())
	if userId == "" {
		http.Error(w, "User ID not found in context", http.StatusUnauthorized)
		return
	}

	user, err := h.userService.Get(r.Context(), userId)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := dto.UserResponseDTO{
		UserID:    user.UserID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}
