// Package doctor runs readiness diagnostics for config, registry, cache,
// embedding access and the desktop tools prompts rely on.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/ashwch/bumblebee/internal/cache"
	"github.com/ashwch/bumblebee/internal/config"
	"github.com/ashwch/bumblebee/internal/registry"
	"github.com/ashwch/bumblebee/internal/runtime"
	"github.com/ashwch/bumblebee/internal/ui"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string `json:"name"`
	Pass    bool   `json:"pass"`
	Message string `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

var lookPath = exec.LookPath

// Run checks a loaded config. Nothing here calls the embedding service.
func Run(ctx context.Context, cfg config.Config, configPath string) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", configPath),
	}}

	reg, regCheck := checkRegistry(cfg)
	checks = append(checks, regCheck)
	if regCheck.Pass {
		checks = append(checks, checkDangerFlags(reg))
		checks = append(checks, checkCache(cfg, reg))
	}

	checks = append(checks, checkEmbedding(ctx, cfg.Embedding))
	checks = append(checks, checkDialogs(cfg.UI.Backend))
	checks = append(checks, checkBinary("busctl", "desktop notifications available"))
	checks = append(checks, checkShell())

	return Report{Checks: checks}
}

func checkRegistry(cfg config.Config) (registry.Registry, Check) {
	path, err := cfg.RegistryPath()
	if err != nil {
		return registry.Registry{}, Check{Name: "registry", Pass: false, Message: err.Error()}
	}
	reg, err := registry.Load(path)
	if err != nil {
		return registry.Registry{}, Check{Name: "registry", Pass: false, Message: err.Error() + " (run `bumblebee registry init`)"}
	}
	return reg, Check{Name: "registry", Pass: true, Message: fmt.Sprintf("%d commands in %q", reg.Len(), path)}
}

// checkDangerFlags flags destructive templates that run without the allow prompt.
func checkDangerFlags(reg registry.Registry) Check {
	var unflagged []string
	for _, cmd := range reg.Commands {
		if !cmd.Dangerous && runtime.HighRisk(cmd.Template) {
			unflagged = append(unflagged, cmd.ID)
		}
	}
	if len(unflagged) > 0 {
		return Check{Name: "registry.dangerous", Pass: false, Message: "high-risk commands not marked dangerous: " + strings.Join(unflagged, ", ")}
	}
	return Check{Name: "registry.dangerous", Pass: true, Message: "high-risk commands require confirmation"}
}

func checkCache(cfg config.Config, reg registry.Registry) Check {
	path, err := cfg.CachePath()
	if err != nil {
		return Check{Name: "cache", Pass: false, Message: err.Error()}
	}
	stale := cache.Stale(reg, cache.Load(path))
	if len(stale) > 0 {
		return Check{Name: "cache", Pass: false, Message: fmt.Sprintf("%d texts need embeddings (run `bumblebee cache warm`)", len(stale))}
	}
	return Check{Name: "cache", Pass: true, Message: fmt.Sprintf("up to date at %q", path)}
}

func checkEmbedding(ctx context.Context, cfg config.EmbeddingConfig) Check {
	switch cfg.Provider {
	case "ollama":
		return checkOllama(ctx, cfg.OllamaEndpoint)
	default:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return Check{Name: "embedding", Pass: false, Message: "GEMINI_API_KEY or GOOGLE_API_KEY is not set"}
		}
		return Check{Name: "embedding", Pass: true, Message: fmt.Sprintf("API key present for %s", cfg.Model)}
	}
}

// checkOllama probes the local Ollama server's model listing.
func checkOllama(ctx context.Context, endpoint string) Check {
	base := strings.TrimSpace(endpoint)
	if base == "" {
		return Check{Name: "embedding", Pass: false, Message: "embedding.ollama_endpoint is empty"}
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	url := strings.TrimRight(base, "/") + "/api/tags"

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "embedding", Pass: false, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "embedding", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "embedding", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "embedding", Pass: true, Message: fmt.Sprintf("ollama reachable at %s", base)}
}

func checkDialogs(backend string) Check {
	switch ui.NormalizeBackend(backend) {
	case ui.BackendAuto, ui.BackendYad:
		if ui.YadAvailable() {
			return Check{Name: "dialogs", Pass: true, Message: "yad available"}
		}
		return Check{Name: "dialogs", Pass: false, Message: "yad or a display is missing; prompts fall back to the terminal or are declined"}
	default:
		return Check{Name: "dialogs", Pass: true, Message: fmt.Sprintf("using %s backend", ui.NormalizeBackend(backend))}
	}
}

func checkShell() Check {
	shell := runtime.ShellPath()
	resolved, err := lookPath(shell)
	if err != nil {
		return Check{Name: "shell", Pass: false, Message: fmt.Sprintf("shell not found: %s", shell)}
	}
	return Check{Name: "shell", Pass: true, Message: fmt.Sprintf("commands run through %s", resolved)}
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := lookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}
