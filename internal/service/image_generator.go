package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const imageGenerationsEndpoint = "/images/generations"

// AvatarGenerator produces avatar image bytes from a text description or an
// input photo via an OpenAI-compatible images API.
type AvatarGenerator interface {
	// GenerateFromText renders an avatar from a description. Returns PNG bytes.
	GenerateFromText(ctx context.Context, description string) ([]byte, error)
	// GenerateFromPhoto renders a stylized avatar from a base64-encoded photo.
	GenerateFromPhoto(ctx context.Context, imageB64 string) ([]byte, error)
}

type openAIImageGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	size    string
}

// NewOpenAIImageGenerator creates an AvatarGenerator backed by an
// OpenAI-compatible images endpoint. Generation can take several seconds, so
// the client timeout is generous; callers bound individual requests through
// the context.
func NewOpenAIImageGenerator(baseURL, apiKey, model, size string) AvatarGenerator {
	return &openAIImageGenerator{
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		size:    size,
	}
}

const avatarStylePrompt = "Render as a friendly flat-style cartoon avatar portrait, head and shoulders, plain background."

func (g *openAIImageGenerator) GenerateFromText(ctx context.Context, description string) ([]byte, error) {
	body := map[string]interface{}{
		"model":           g.model,
		"prompt":          description + " " + avatarStylePrompt,
		"size":            g.size,
		"n":               1,
		"response_format": "b64_json",
	}
	return g.generate(ctx, body)
}

func (g *openAIImageGenerator) GenerateFromPhoto(ctx context.Context, imageB64 string) ([]byte, error) {
	body := map[string]interface{}{
		"model":           g.model,
		"prompt":          avatarStylePrompt,
		"image":           imageB64,
		"size":            g.size,
		"n":               1,
		"response_format": "b64_json",
	}
	return g.generate(ctx, body)
}

func (g *openAIImageGenerator) generate(ctx context.Context, body map[string]interface{}) ([]byte, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+imageGenerationsEndpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error.Message != "" {
			return nil, fmt.Errorf("image API error (status %d): %s", resp.StatusCode, errorResp.Error.Message)
		}
		return nil, fmt.Errorf("image API returned status %d", resp.StatusCode)
	}

	var result struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse generation response: %w", err)
	}
	if len(result.Data) == 0 || result.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image API returned no image data")
	}

	img, err := base64.StdEncoding.DecodeString(result.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode generated image: %w", err)
	}
	return img, nil
}
