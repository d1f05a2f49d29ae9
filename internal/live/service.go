// Package live answers free-form questions the command registry cannot, with
// a daily call budget and a fallback model for rate limiting.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ashwch/bumblebee/internal/appdirs"
	"github.com/ashwch/bumblebee/internal/i18n"
	"github.com/ashwch/bumblebee/internal/safety"
	"go.uber.org/zap"
)

const usageFileName = "live_usage.json"

// Generator produces one answer from one model.
type Generator interface {
	Generate(ctx context.Context, model, question string) (string, error)
}

type Options struct {
	PrimaryModel  string
	OverflowModel string
	MaxDaily      int
	Timeout       time.Duration
	UsagePath     string
	Catalog       i18n.Catalog
	Logger        *zap.Logger
	Now           func() time.Time
}

// Answer is what gets spoken. Fallback marks a canned sentence.
type Answer struct {
	Text     string `json:"text"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
}

type Usage struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type Service struct {
	generator Generator
	opts      Options
}

// NewService accepts a nil generator; every answer is then the unavailable line.
func NewService(generator Generator, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxDaily <= 0 {
		opts.MaxDaily = 40
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Catalog.Live.Unavailable == "" {
		opts.Catalog = i18n.LoadCatalog("en")
	}
	return &Service{generator: generator, opts: opts}
}

// Answer asks the primary model, then the overflow model when the primary is
// rate limited. Every model call spends one unit of the daily budget. Only a
// blank question is an error.
func (s *Service) Answer(ctx context.Context, question string, forceOverflow bool) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("question cannot be empty")
	}
	if s.generator == nil {
		return s.unavailable(), nil
	}

	order := []string{s.opts.PrimaryModel, s.opts.OverflowModel}
	if forceOverflow {
		order = []string{s.opts.OverflowModel}
	}

	for _, model := range order {
		if strings.TrimSpace(model) == "" {
			continue
		}
		spent, err := s.spend()
		if err != nil {
			s.opts.Logger.Warn("live usage update failed", zap.String("error", safety.RedactError(err)))
			return s.unavailable(), nil
		}
		if !spent {
			return Answer{Text: s.opts.Catalog.Live.LimitReached, Fallback: true}, nil
		}

		callCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		text, err := s.generator.Generate(callCtx, model, question)
		cancel()
		if err == nil && strings.TrimSpace(text) != "" {
			return Answer{Text: strings.TrimSpace(text), Model: model}, nil
		}
		if err != nil {
			s.opts.Logger.Warn("live answer failed", zap.String("model", model), zap.String("error", safety.RedactError(err)))
		}
		if !errors.Is(err, ErrRateLimited) {
			break
		}
	}
	return s.unavailable(), nil
}

func (s *Service) unavailable() Answer {
	return Answer{Text: s.opts.Catalog.Live.Unavailable, Fallback: true}
}

// spend counts one call against today's budget, or reports false when the
// budget is used up.
func (s *Service) spend() (bool, error) {
	path, err := s.usagePath()
	if err != nil {
		return false, err
	}
	usage := LoadUsage(path, s.opts.Now())
	if usage.Count >= s.opts.MaxDaily {
		return false, nil
	}
	usage.Count++
	if err := saveUsage(path, usage); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) usagePath() (string, error) {
	if strings.TrimSpace(s.opts.UsagePath) != "" {
		return s.opts.UsagePath, nil
	}
	return appdirs.StateFilePath(usageFileName)
}

// LoadUsage reads the usage file, starting a fresh count on a new day or
// when the file is missing or unreadable.
func LoadUsage(path string, now time.Time) Usage {
	today := now.Format(time.DateOnly)
	data, err := os.ReadFile(path)
	if err != nil {
		return Usage{Date: today}
	}
	var usage Usage
	if err := json.Unmarshal(data, &usage); err != nil || usage.Date != today || usage.Count < 0 {
		return Usage{Date: today}
	}
	return usage
}

func saveUsage(path string, usage Usage) error {
	if err := appdirs.EnsureParentDir(path); err != nil {
		return err
	}
	payload, err := json.Marshal(usage)
	if err != nil {
		return fmt.Errorf("could not serialize live usage: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bumblebee-live-*.json")
	if err != nil {
		return fmt.Errorf("could not create temp usage file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not secure usage file permissions: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("could not write usage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not close usage file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("could not replace usage file: %w", err)
	}
	return nil
}
