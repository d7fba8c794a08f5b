package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/middleware"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AvatarHandler serves the guarded generation endpoint and the account
// history view.
type AvatarHandler struct {
	avatarSvc    service.AvatarService
	validate     *validator.Validate
	maxBodyBytes int64
	logger       zerolog.Logger
}

// NewAvatarHandler creates a new AvatarHandler.
func NewAvatarHandler(avatarSvc service.AvatarService, v *validator.Validate, maxBodyBytes int64, logger zerolog.Logger) *AvatarHandler {
	return &AvatarHandler{avatarSvc: avatarSvc, validate: v, maxBodyBytes: maxBodyBytes, logger: logger}
}

// RegisterRoutes mounts the avatar endpoints behind required auth.
func (h *AvatarHandler) RegisterRoutes(mux *http.ServeMux, authMw func(http.Handler) http.Handler) {
	mux.Handle("/avatars/generate", authMw(http.HandlerFunc(h.Generate)))
	mux.Handle("/avatars/history", authMw(http.HandlerFunc(h.History)))
}

// Generate godoc
// @Summary Generate an avatar from a photo or a text description
// @Tags avatars
// @Accept json
// @Produce json
// @Param request body dto.GenerateRequest true "Generation request"
// @Success 200 {object} dto.GenerateResponse
// @Failure 400 {object} dto.GenerateResponse "malformed request"
// @Failure 401 {string} string "unauthorized"
// @Failure 402 {object} dto.GenerateResponse "no entitlement left"
// @Failure 500 {object} dto.GenerateResponse
// @Router /avatars/generate [post]
func (h *AvatarHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Base64 photo payloads are large; cap rather than trust the client.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	var req dto.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.GenerateResponse{Success: false, Error: "invalid request payload"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.GenerateResponse{Success: false, Error: "invalid request: " + err.Error()})
		return
	}
	if req.Mode == model.ModePhotoToAvatar && req.Image == "" {
		writeJSON(w, http.StatusBadRequest, dto.GenerateResponse{Success: false, Error: "image is required for photo2avatar"})
		return
	}
	if req.Mode == model.ModeTextToAvatar && req.Description == "" {
		writeJSON(w, http.StatusBadRequest, dto.GenerateResponse{Success: false, Error: "description is required for text2avatar"})
		return
	}

	image, err := h.avatarSvc.Generate(r.Context(), userID, req.Mode, req.Image, req.Description)
	if err != nil {
		if errors.Is(err, service.ErrEntitlementExhausted) {
			writeJSON(w, http.StatusPaymentRequired, dto.GenerateResponse{Success: false, Error: "no generations remaining; upgrade or buy credits"})
			return
		}
		h.logger.Error().Err(err).Str("user_id", userID).Msg("avatar generation failed")
		writeJSON(w, http.StatusInternalServerError, dto.GenerateResponse{Success: false, Error: "generation failed"})
		return
	}

	writeJSON(w, http.StatusOK, dto.GenerateResponse{Success: true, Image: image})
}

// History godoc
// @Summary List the caller's past generations
// @Tags avatars
// @Produce json
// @Success 200 {array} dto.GenerationHistoryItemDTO
// @Failure 401 {string} string "unauthorized"
// @Router /avatars/history [get]
func (h *AvatarHandler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	userID := middleware.PrincipalFromContext(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	offset := 0
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		offset = o
	}

	items, err := h.avatarSvc.History(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list generation history")
		http.Error(w, "failed to list history", http.StatusInternalServerError)
		return
	}

	dtos := make([]dto.GenerationHistoryItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, dto.GenerationHistoryItemDTO{
			ID:        item.Generation.ID,
			Mode:      item.Generation.Mode,
			InputKind: item.Generation.InputKind,
			ImageURL:  item.ImageURL,
			CreatedAt: item.Generation.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}
