// Package cache memoizes reference embeddings per command, keyed by exact text.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/ashwch/bumblebee/internal/appdirs"
	"github.com/ashwch/bumblebee/internal/embedding"
	"github.com/ashwch/bumblebee/internal/registry"
)

type Example struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

type Entry struct {
	Description string    `json:"description"`
	Examples    []Example `json:"examples"`
}

// Cache maps command id to its cached reference vectors.
type Cache map[string]Entry

type Stats struct {
	Computed int `json:"computed"`
	Reused   int `json:"reused"`
	Pruned   int `json:"pruned"`
}

// StaleText is a registry text with no matching cached vector.
type StaleText struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Load reads the cache file. The cache is derived state, so a missing or
// unreadable file is an empty cache.
func Load(path string) Cache {
	data, err := os.ReadFile(path)
	if err != nil {
		return Cache{}
	}
	var c Cache
	if err := json.Unmarshal(data, &c); err != nil || c == nil {
		return Cache{}
	}
	return c
}

// Save rewrites the whole cache file atomically.
func Save(path string, c Cache) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("could not serialize cache: %w", err)
	}
	if err := appdirs.EnsureParentDir(path); err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), ".bumblebee-cache-*.json")
	if err != nil {
		return fmt.Errorf("could not create temp cache file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() {
		_ = os.Remove(tempPath)
	}

	if _, err := tempFile.Write(payload); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("could not write temp cache file: %w", err)
	}
	if err := tempFile.Chmod(0o600); err != nil {
		_ = tempFile.Close()
		cleanup()
		return fmt.Errorf("could not secure temp cache file permissions: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		cleanup()
		return fmt.Errorf("could not close temp cache file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		cleanup()
		return fmt.Errorf("could not atomically replace cache file: %w", err)
	}
	return nil
}

// Ensure brings the cache at path in line with reg, calling producer only for
// texts without a byte-identical cached vector. The file is written only when
// the content changed. When the producer fails, vectors computed so far are
// saved before the producer error is returned.
func Ensure(ctx context.Context, reg registry.Registry, producer embedding.Producer, path string) (Cache, Stats, error) {
	previous := Load(path)
	next := make(Cache, len(reg.Commands))
	var stats Stats

	for id := range previous {
		if _, ok := reg.Lookup(id); !ok {
			stats.Pruned++
		}
	}

	for i, cmd := range reg.Commands {
		old := previous[cmd.ID]
		known := vectorsByText(old)
		texts := registry.Texts(cmd)
		stats.Pruned += droppedTexts(old, texts)

		entry := Entry{Description: cmd.Description, Examples: make([]Example, 0, len(texts))}
		for _, text := range texts {
			if vec, ok := known[text]; ok {
				entry.Examples = append(entry.Examples, Example{Text: text, Embedding: vec})
				stats.Reused++
				continue
			}
			vec, err := producer.Embed(ctx, text)
			if err != nil {
				partial := failForward(previous, next, reg.Commands[i+1:], cmd.ID, entry, old)
				if saveErr := saveIfChanged(path, previous, partial); saveErr != nil {
					return previous, stats, errors.Join(err, saveErr)
				}
				return partial, stats, err
			}
			known[text] = vec
			entry.Examples = append(entry.Examples, Example{Text: text, Embedding: vec})
			stats.Computed++
		}
		next[cmd.ID] = entry
	}

	if err := saveIfChanged(path, previous, next); err != nil {
		return next, stats, err
	}
	return next, stats, nil
}

// Stale lists the texts Ensure would have to compute, without calling out.
func Stale(reg registry.Registry, c Cache) []StaleText {
	var stale []StaleText
	for _, cmd := range reg.Commands {
		known := vectorsByText(c[cmd.ID])
		for _, text := range registry.Texts(cmd) {
			if _, ok := known[text]; !ok {
				stale = append(stale, StaleText{ID: cmd.ID, Text: text})
			}
		}
	}
	return stale
}

// Vectors returns the cached examples for a command.
func (c Cache) Vectors(id string) []Example {
	return c[id].Examples
}

func vectorsByText(entry Entry) map[string][]float32 {
	known := make(map[string][]float32, len(entry.Examples))
	for _, ex := range entry.Examples {
		if len(ex.Embedding) == 0 {
			continue
		}
		known[ex.Text] = ex.Embedding
	}
	return known
}

func droppedTexts(old Entry, texts []string) int {
	current := make(map[string]struct{}, len(texts))
	for _, text := range texts {
		current[text] = struct{}{}
	}
	dropped := 0
	for _, ex := range old.Examples {
		if _, ok := current[ex.Text]; !ok {
			dropped++
		}
	}
	return dropped
}

// failForward assembles the cache to persist after a producer failure: every
// finished command, the partial entry for the failing one with its still-valid
// old vectors, and the untouched old entries for the rest.
func failForward(previous, done Cache, remaining []registry.Command, failingID string, partial Entry, old Entry) Cache {
	out := make(Cache, len(done)+1+len(remaining))
	for id, entry := range done {
		out[id] = entry
	}

	have := make(map[string]struct{}, len(partial.Examples))
	for _, ex := range partial.Examples {
		have[ex.Text] = struct{}{}
	}
	for _, ex := range old.Examples {
		if _, ok := have[ex.Text]; !ok {
			partial.Examples = append(partial.Examples, ex)
		}
	}
	if len(partial.Examples) > 0 {
		out[failingID] = partial
	}

	for _, cmd := range remaining {
		if entry, ok := previous[cmd.ID]; ok {
			out[cmd.ID] = entry
		}
	}
	return out
}

func saveIfChanged(path string, previous, next Cache) error {
	if reflect.DeepEqual(previous, next) {
		return nil
	}
	return Save(path, next)
}
