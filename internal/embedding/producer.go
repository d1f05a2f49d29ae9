// Package embedding turns text into vectors through an external embedding
// service and compares vectors by cosine similarity.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/ashwch/bumblebee/internal/config"
)

// Producer computes one embedding per call.
type Producer interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

type ErrorKind string

const (
	KindAuth      ErrorKind = "auth"
	KindNetwork   ErrorKind = "network"
	KindResponse  ErrorKind = "response"
	KindRateLimit ErrorKind = "rate_limit"
)

// ProducerError is the only error type a Producer returns.
type ProducerError struct {
	Kind     ErrorKind
	Producer string
	Err      error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("embedding %s error (%s): %v", e.Kind, e.Producer, e.Err)
}

func (e *ProducerError) Unwrap() error {
	return e.Err
}

// NewProducer builds the producer named by cfg.Provider.
func NewProducer(ctx context.Context, cfg config.EmbeddingConfig) (Producer, error) {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	switch cfg.Provider {
	case "genai", "":
		return NewGenAIProducer(ctx, cfg.APIKey, cfg.Model, cfg.TaskType, timeout)
	case "ollama":
		return NewOllamaProducer(cfg.OllamaEndpoint, cfg.OllamaModel, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'genai' or 'ollama')", cfg.Provider)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
