package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ashwch/bumblebee/internal/appdirs"
	"github.com/ashwch/bumblebee/internal/i18n"
	"github.com/pelletier/go-toml/v2"
)

type MatchConfig struct {
	Threshold        float64 `toml:"threshold" json:"threshold"`
	ClarifyThreshold float64 `toml:"clarify_threshold" json:"clarify_threshold"`
	AmbiguityDelta   float64 `toml:"ambiguity_delta" json:"ambiguity_delta"`
}

type EmbeddingConfig struct {
	Provider       string `toml:"provider" json:"provider"`
	Model          string `toml:"model" json:"model"`
	TaskType       string `toml:"task_type" json:"task_type"`
	OllamaEndpoint string `toml:"ollama_endpoint" json:"ollama_endpoint"`
	OllamaModel    string `toml:"ollama_model" json:"ollama_model"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
	// APIKey is only ever read from the environment.
	APIKey string `toml:"-" json:"-"`
}

type PathsConfig struct {
	Registry string `toml:"registry,omitempty" json:"registry,omitempty"`
	Cache    string `toml:"cache,omitempty" json:"cache,omitempty"`
}

type UIConfig struct {
	Backend     string `toml:"backend" json:"backend"`
	DialogTitle string `toml:"dialog_title" json:"dialog_title"`
}

type LiveConfig struct {
	PrimaryModel   string `toml:"primary_model" json:"primary_model"`
	OverflowModel  string `toml:"overflow_model" json:"overflow_model"`
	MaxDaily       int    `toml:"max_daily" json:"max_daily"`
	TimeoutSeconds int    `toml:"timeout_seconds" json:"timeout_seconds"`
}

type LogConfig struct {
	Level string `toml:"level" json:"level"`
}

type Config struct {
	Version   int             `toml:"version" json:"version"`
	Locale    string          `toml:"locale" json:"locale"`
	Match     MatchConfig     `toml:"match" json:"match"`
	Embedding EmbeddingConfig `toml:"embedding" json:"embedding"`
	Paths     PathsConfig     `toml:"paths" json:"paths"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Live      LiveConfig      `toml:"live" json:"live"`
	Log       LogConfig       `toml:"log" json:"log"`
}

func Default() Config {
	return Config{
		Version: 1,
		Locale:  "auto",
		Match: MatchConfig{
			Threshold:        0.75,
			ClarifyThreshold: 0.60,
			AmbiguityDelta:   0.05,
		},
		Embedding: EmbeddingConfig{
			Provider:       "genai",
			Model:          "text-embedding-004",
			TaskType:       "SEMANTIC_SIMILARITY",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			TimeoutSeconds: 20,
		},
		UI: UIConfig{
			Backend:     "auto",
			DialogTitle: "Bumblebee",
		},
		Live: LiveConfig{
			PrimaryModel:   "gemini-2.5-flash",
			OverflowModel:  "gemini-3.0-flash",
			MaxDaily:       40,
			TimeoutSeconds: 15,
		},
		Log: LogConfig{Level: "info"},
	}
}

// LoadOrCreate reads config.toml from the app config dir, writing defaults on first run.
func LoadOrCreate() (Config, string, error) {
	path, err := appdirs.ConfigFilePath()
	if err != nil {
		return Config{}, "", err
	}
	cfg, err := load(path, true)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, path, nil
}

// LoadFrom reads an explicit config path. A missing file yields defaults and is not created.
func LoadFrom(path string) (Config, error) {
	return load(path, false)
}

func load(path string, create bool) (Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if !create {
			return cfg, nil
		}
		if _, err := appdirs.EnsureConfigDir(); err != nil {
			return Config{}, err
		}
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	} else if err != nil {
		return Config{}, fmt.Errorf("could not stat config path: %w", err)
	}

	bytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("could not read config file: %w", err)
	}
	if err := toml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, fmt.Errorf("could not parse config file: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func Save(path string, cfg Config) error {
	cfg.normalize()
	payload, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("could not serialize config: %w", err)
	}
	if err := appdirs.EnsureParentDir(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, ".bumblebee-config-*.toml")
	if err != nil {
		return fmt.Errorf("could not create temp config file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() {
		_ = os.Remove(tempPath)
	}

	if _, err := tempFile.Write(payload); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("could not write temp config file: %w", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("could not secure temp config file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("could not close temp config file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("could not atomically replace config file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("could not secure config file permissions: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	defaults := Default()
	if c.Version == 0 {
		c.Version = defaults.Version
	}
	c.Locale = normalizeLocaleSetting(c.Locale, defaults.Locale)

	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		c.Match.Threshold = defaults.Match.Threshold
	}
	if c.Match.ClarifyThreshold <= 0 || c.Match.ClarifyThreshold > 1 {
		c.Match.ClarifyThreshold = defaults.Match.ClarifyThreshold
	}
	// clarify_threshold is stored as written; the resolver caps it at
	// threshold when the two are combined.
	if c.Match.AmbiguityDelta < 0 || c.Match.AmbiguityDelta >= 1 {
		c.Match.AmbiguityDelta = defaults.Match.AmbiguityDelta
	}

	c.Embedding.Provider = normalizeProvider(c.Embedding.Provider, defaults.Embedding.Provider)
	if strings.TrimSpace(c.Embedding.Model) == "" {
		c.Embedding.Model = defaults.Embedding.Model
	}
	if strings.TrimSpace(c.Embedding.TaskType) == "" {
		c.Embedding.TaskType = defaults.Embedding.TaskType
	}
	if strings.TrimSpace(c.Embedding.OllamaEndpoint) == "" {
		c.Embedding.OllamaEndpoint = defaults.Embedding.OllamaEndpoint
	}
	if strings.TrimSpace(c.Embedding.OllamaModel) == "" {
		c.Embedding.OllamaModel = defaults.Embedding.OllamaModel
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaults.Embedding.TimeoutSeconds
	}

	c.Paths.Registry = strings.TrimSpace(c.Paths.Registry)
	c.Paths.Cache = strings.TrimSpace(c.Paths.Cache)

	c.UI.Backend = normalizeUIBackend(c.UI.Backend, defaults.UI.Backend)
	if strings.TrimSpace(c.UI.DialogTitle) == "" {
		c.UI.DialogTitle = defaults.UI.DialogTitle
	}

	if strings.TrimSpace(c.Live.PrimaryModel) == "" {
		c.Live.PrimaryModel = defaults.Live.PrimaryModel
	}
	if strings.TrimSpace(c.Live.OverflowModel) == "" {
		c.Live.OverflowModel = defaults.Live.OverflowModel
	}
	if c.Live.MaxDaily <= 0 {
		c.Live.MaxDaily = defaults.Live.MaxDaily
	}
	if c.Live.TimeoutSeconds <= 0 {
		c.Live.TimeoutSeconds = defaults.Live.TimeoutSeconds
	}

	c.Log.Level = normalizeLogLevel(c.Log.Level, defaults.Log.Level)
}

// RegistryPath returns the configured registry path or the app default.
func (c Config) RegistryPath() (string, error) {
	if c.Paths.Registry != "" {
		return expandHome(c.Paths.Registry)
	}
	return appdirs.RegistryFilePath()
}

// CachePath returns the configured embedding cache path or the app default.
func (c Config) CachePath() (string, error) {
	if c.Paths.Cache != "" {
		return expandHome(c.Paths.Cache)
	}
	return appdirs.CacheFilePath()
}

func (c *Config) Set(key, value string) error {
	key = strings.TrimSpace(strings.ToLower(key))
	value = strings.TrimSpace(value)

	switch key {
	case "locale":
		c.Locale = normalizeLocaleSetting(value, "")
		if c.Locale == "" {
			return fmt.Errorf("locale must be 'auto' or a locale like en, en-US, hi, hi-IN")
		}
	case "match.threshold":
		n, err := parseThreshold(value)
		if err != nil {
			return fmt.Errorf("match.threshold must be between 0 and 1")
		}
		c.Match.Threshold = n
	case "match.clarify_threshold":
		n, err := parseThreshold(value)
		if err != nil {
			return fmt.Errorf("match.clarify_threshold must be between 0 and 1")
		}
		c.Match.ClarifyThreshold = n
	case "match.ambiguity_delta":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil || n < 0 || n >= 1 {
			return fmt.Errorf("match.ambiguity_delta must be >= 0 and < 1")
		}
		c.Match.AmbiguityDelta = n
	case "embedding.provider":
		c.Embedding.Provider = normalizeProvider(value, "")
		if c.Embedding.Provider == "" {
			return fmt.Errorf("embedding.provider must be one of genai|ollama")
		}
	case "embedding.model":
		c.Embedding.Model = value
	case "embedding.task_type":
		c.Embedding.TaskType = strings.ToUpper(value)
	case "embedding.ollama_endpoint":
		c.Embedding.OllamaEndpoint = value
	case "embedding.ollama_model":
		c.Embedding.OllamaModel = value
	case "embedding.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("embedding.timeout_seconds must be a positive number")
		}
		c.Embedding.TimeoutSeconds = n
	case "paths.registry":
		c.Paths.Registry = value
	case "paths.cache":
		c.Paths.Cache = value
	case "ui.backend":
		c.UI.Backend = normalizeUIBackend(value, "")
		if c.UI.Backend == "" {
			return fmt.Errorf("ui.backend must be one of auto|yad|bubbletea|huh|tview|plain")
		}
	case "ui.dialog_title":
		c.UI.DialogTitle = value
	case "live.primary_model":
		c.Live.PrimaryModel = value
	case "live.overflow_model":
		c.Live.OverflowModel = value
	case "live.max_daily":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("live.max_daily must be a positive number")
		}
		c.Live.MaxDaily = n
	case "live.timeout_seconds":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("live.timeout_seconds must be a positive number")
		}
		c.Live.TimeoutSeconds = n
	case "log.level":
		c.Log.Level = normalizeLogLevel(value, "")
		if c.Log.Level == "" {
			return fmt.Errorf("log.level must be one of debug|info|warn|error")
		}
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	c.normalize()
	return nil
}

func (c Config) Get(key string) (string, error) {
	key = strings.TrimSpace(strings.ToLower(key))

	switch key {
	case "locale":
		return c.Locale, nil
	case "match.threshold":
		return fmt.Sprintf("%g", c.Match.Threshold), nil
	case "match.clarify_threshold":
		return fmt.Sprintf("%g", c.Match.ClarifyThreshold), nil
	case "match.ambiguity_delta":
		return fmt.Sprintf("%g", c.Match.AmbiguityDelta), nil
	case "embedding.provider":
		return c.Embedding.Provider, nil
	case "embedding.model":
		return c.Embedding.Model, nil
	case "embedding.task_type":
		return c.Embedding.TaskType, nil
	case "embedding.ollama_endpoint":
		return c.Embedding.OllamaEndpoint, nil
	case "embedding.ollama_model":
		return c.Embedding.OllamaModel, nil
	case "embedding.timeout_seconds":
		return strconv.Itoa(c.Embedding.TimeoutSeconds), nil
	case "paths.registry":
		return c.Paths.Registry, nil
	case "paths.cache":
		return c.Paths.Cache, nil
	case "ui.backend":
		return c.UI.Backend, nil
	case "ui.dialog_title":
		return c.UI.DialogTitle, nil
	case "live.primary_model":
		return c.Live.PrimaryModel, nil
	case "live.overflow_model":
		return c.Live.OverflowModel, nil
	case "live.max_daily":
		return strconv.Itoa(c.Live.MaxDaily), nil
	case "live.timeout_seconds":
		return strconv.Itoa(c.Live.TimeoutSeconds), nil
	case "log.level":
		return c.Log.Level, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

func parseThreshold(value string) (float64, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, err
	}
	if n <= 0 || n > 1 {
		return 0, fmt.Errorf("threshold must be between 0 and 1")
	}
	return n, nil
}

func normalizeProvider(value string, fallback string) string {
	switch normalized := strings.ToLower(strings.TrimSpace(value)); normalized {
	case "genai", "ollama":
		return normalized
	case "gemini", "google":
		return "genai"
	default:
		return strings.ToLower(strings.TrimSpace(fallback))
	}
}

func normalizeUIBackend(value string, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "auto", "yad", "bubbletea", "huh", "tview", "plain":
		return normalized
	default:
		return strings.ToLower(strings.TrimSpace(fallback))
	}
}

func normalizeLogLevel(value string, fallback string) string {
	switch normalized := strings.ToLower(strings.TrimSpace(value)); normalized {
	case "debug", "info", "warn", "error":
		return normalized
	case "warning":
		return "warn"
	default:
		return strings.ToLower(strings.TrimSpace(fallback))
	}
}

func normalizeLocaleSetting(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		trimmed = strings.TrimSpace(fallback)
	}
	if strings.EqualFold(trimmed, "auto") {
		return "auto"
	}
	return i18n.NormalizeLocale(trimmed)
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
