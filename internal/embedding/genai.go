package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GenAIProducer embeds text with the Gemini API.
type GenAIProducer struct {
	models   embedModels
	model    string
	taskType string
	timeout  time.Duration
}

// embedModels is the slice of genai.Models the producer calls.
type embedModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

func NewGenAIProducer(ctx context.Context, apiKey, model, taskType string, timeout time.Duration) (*GenAIProducer, error) {
	name := genAIName(model)
	if strings.TrimSpace(apiKey) == "" {
		return nil, &ProducerError{Kind: KindAuth, Producer: name, Err: fmt.Errorf("GEMINI_API_KEY is not set")}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &ProducerError{Kind: KindAuth, Producer: name, Err: fmt.Errorf("failed to create GenAI client: %w", err)}
	}
	return newGenAIProducer(client.Models, model, taskType, timeout), nil
}

func newGenAIProducer(models embedModels, model, taskType string, timeout time.Duration) *GenAIProducer {
	if strings.TrimSpace(model) == "" {
		model = "text-embedding-004"
	}
	taskType = strings.ToUpper(strings.TrimSpace(taskType))
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}
	return &GenAIProducer{models: models, model: model, taskType: taskType, timeout: timeout}
}

func (p *GenAIProducer) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}
	result, err := p.models.EmbedContent(ctx, p.model, contents, &genai.EmbedContentConfig{
		TaskType: p.taskType,
	})
	if err != nil {
		return nil, &ProducerError{Kind: classifyGenAIError(err), Producer: p.Name(), Err: err}
	}
	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil || len(result.Embeddings[0].Values) == 0 {
		return nil, &ProducerError{Kind: KindResponse, Producer: p.Name(), Err: fmt.Errorf("no embeddings returned")}
	}
	return result.Embeddings[0].Values, nil
}

func (p *GenAIProducer) Name() string {
	return genAIName(p.model)
}

func genAIName(model string) string {
	return fmt.Sprintf("genai:%s", model)
}

func classifyGenAIError(err error) ErrorKind {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.Code, apiErr.Status+" "+apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return kindForStatus(apiErrPtr.Code, apiErrPtr.Status+" "+apiErrPtr.Message)
	}
	return KindNetwork
}

// kindForStatus maps an HTTP status (and the provider's status text) to an error kind.
func kindForStatus(code int, detail string) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case strings.Contains(strings.ToUpper(detail), "RESOURCE_EXHAUSTED"), strings.Contains(strings.ToLower(detail), "rate"):
		return KindRateLimit
	case strings.Contains(strings.ToLower(detail), "api key"):
		return KindAuth
	default:
		return KindResponse
	}
}
