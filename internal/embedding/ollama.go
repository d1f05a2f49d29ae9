package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProducer embeds text with a local Ollama server.
type OllamaProducer struct {
	endpoint string
	model    string
	timeout  time.Duration
	client   *http.Client
}

func NewOllamaProducer(endpoint, model string, timeout time.Duration) *OllamaProducer {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = "http://localhost:11434"
	}
	if strings.TrimSpace(model) == "" {
		model = "embeddinggemma"
	}
	return &OllamaProducer{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		timeout:  timeout,
		client:   &http.Client{},
	}
}

func (p *OllamaProducer) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, p.fail(KindResponse, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, p.fail(KindNetwork, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, p.fail(KindNetwork, fmt.Errorf("ollama request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, p.fail(kindForStatus(resp.StatusCode, string(detail)), fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, p.fail(KindResponse, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(result.Embedding) == 0 {
		return nil, p.fail(KindResponse, fmt.Errorf("no embedding returned"))
	}
	return result.Embedding, nil
}

func (p *OllamaProducer) Name() string {
	return fmt.Sprintf("ollama:%s", p.model)
}

func (p *OllamaProducer) fail(kind ErrorKind, err error) error {
	return &ProducerError{Kind: kind, Producer: p.Name(), Err: err}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}
