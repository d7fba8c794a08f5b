package dto

// GenerateRequest asks for one avatar generation. photo2avatar requires a
// base64 image, text2avatar a description.
type GenerateRequest struct {
	Mode        string `json:"mode" validate:"required,oneof=photo2avatar text2avatar"`
	Image       string `json:"image,omitempty"`
	Description string `json:"description,omitempty"`
}

// GenerateResponse returns the generated avatar as a data URI.
type GenerateResponse struct {
	Success bool   `json:"success"`
	Image   string `json:"image,omitempty"`
	Error   string `json:"error,omitempty"`
}

// GenerationHistoryItemDTO is one past generation in the account view.
type GenerationHistoryItemDTO struct {
	ID        string `json:"id"`
	Mode      string `json:"mode"`
	InputKind string `json:"input_kind"`
	ImageURL  string `json:"image_url,omitempty"`
	CreatedAt string `json:"created_at"`
}
