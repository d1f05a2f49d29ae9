package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides mirrors the environment knobs the assistant scripts have always honored.
type envOverrides struct {
	Threshold        *float64 `env:"CMD_MATCH_THRESHOLD"`
	ClarifyThreshold *float64 `env:"CMD_CLARIFY_THRESHOLD"`
	AmbiguityDelta   *float64 `env:"CMD_AMBIGUITY_DELTA"`
	Registry         string   `env:"BUMBLEBEE_REGISTRY"`
	Cache            string   `env:"BUMBLEBEE_CACHE"`
	UIBackend        string   `env:"BUMBLEBEE_UI"`
	GeminiAPIKey     string   `env:"GEMINI_API_KEY"`
	GoogleAPIKey     string   `env:"GOOGLE_API_KEY"`
}

// ApplyEnv layers environment overrides on top of the file config.
func (c *Config) ApplyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return c.applyOverrides(overrides)
}

func (c *Config) applyOverrides(o envOverrides) error {
	if o.Threshold != nil {
		if *o.Threshold <= 0 || *o.Threshold > 1 {
			return fmt.Errorf("CMD_MATCH_THRESHOLD must be between 0 and 1")
		}
		c.Match.Threshold = *o.Threshold
	}
	if o.ClarifyThreshold != nil {
		if *o.ClarifyThreshold <= 0 || *o.ClarifyThreshold > 1 {
			return fmt.Errorf("CMD_CLARIFY_THRESHOLD must be between 0 and 1")
		}
		c.Match.ClarifyThreshold = *o.ClarifyThreshold
	}
	if o.AmbiguityDelta != nil {
		if *o.AmbiguityDelta < 0 || *o.AmbiguityDelta >= 1 {
			return fmt.Errorf("CMD_AMBIGUITY_DELTA must be >= 0 and < 1")
		}
		c.Match.AmbiguityDelta = *o.AmbiguityDelta
	}
	if v := strings.TrimSpace(o.Registry); v != "" {
		c.Paths.Registry = v
	}
	if v := strings.TrimSpace(o.Cache); v != "" {
		c.Paths.Cache = v
	}
	if v := strings.TrimSpace(o.UIBackend); v != "" {
		backend := normalizeUIBackend(v, "")
		if backend == "" {
			return fmt.Errorf("BUMBLEBEE_UI must be one of auto|yad|bubbletea|huh|tview|plain")
		}
		c.UI.Backend = backend
	}

	c.Embedding.APIKey = strings.TrimSpace(o.GeminiAPIKey)
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = strings.TrimSpace(o.GoogleAPIKey)
	}

	c.normalize()
	return nil
}
