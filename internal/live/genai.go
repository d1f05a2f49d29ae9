package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// SystemPrompt shapes answers for text-to-speech.
const SystemPrompt = "Answer concisely using up-to-date information in full sentences suitable for text-to-speech. " +
	"Avoid compact 'key: value' lists and heavy colon formatting. " +
	"Spell out units and symbols: use 'degrees Fahrenheit' or 'degrees Celsius' instead of '°F'/'°C', " +
	"and 'percent' instead of '%'. Do not use emojis or special symbols; prefer plain words. " +
	"If unsure, say so clearly."

// ErrRateLimited marks a model call refused for quota reasons.
var ErrRateLimited = errors.New("rate limited")

type generateModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIGenerator answers questions with a Gemini model.
type GenAIGenerator struct {
	models generateModels
}

func NewGenAIGenerator(ctx context.Context, apiKey string) (*GenAIGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIGenerator{models: client.Models}, nil
}

func (g *GenAIGenerator) Generate(ctx context.Context, model, question string) (string, error) {
	resp, err := g.models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(question, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		},
	)
	if err != nil {
		if rateLimited(err) {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("empty response from %s", model)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func rateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			strings.Contains(strings.ToUpper(apiErr.Status), "RESOURCE_EXHAUSTED") ||
			strings.Contains(strings.ToLower(apiErr.Message), "rate")
	}
	return false
}
