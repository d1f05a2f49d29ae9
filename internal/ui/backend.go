package ui

import (
	"os"
	"os/exec"
	"strings"
)

const (
	BackendAuto      = "auto"
	BackendYad       = "yad"
	BackendBubbleTea = "bubbletea"
	BackendHuh       = "huh"
	BackendTView     = "tview"
	BackendPlain     = "plain"
)

var (
	stdinIsInteractive = isStdinInteractive
	lookPath           = exec.LookPath
	displayAvailable   = hasDisplay
)

func NormalizeBackend(backend string) string {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendAuto, "":
		return BackendAuto
	case BackendYad:
		return BackendYad
	case BackendBubbleTea:
		return BackendBubbleTea
	case BackendHuh:
		return BackendHuh
	case BackendTView:
		return BackendTView
	case BackendPlain:
		return BackendPlain
	default:
		return BackendAuto
	}
}

func backendCandidates(backend string) []string {
	switch NormalizeBackend(backend) {
	case BackendYad:
		return []string{BackendYad}
	case BackendBubbleTea:
		return []string{BackendBubbleTea, BackendHuh, BackendTView}
	case BackendHuh:
		return []string{BackendHuh, BackendBubbleTea, BackendTView}
	case BackendTView:
		return []string{BackendTView, BackendBubbleTea, BackendHuh}
	case BackendPlain:
		return []string{BackendPlain}
	default:
		return []string{BackendYad, BackendBubbleTea, BackendHuh, BackendTView}
	}
}

// available reports whether a backend can be tried right now. Terminal
// backends need an interactive stdin; yad needs the binary and a display.
func available(backend string) bool {
	switch backend {
	case BackendYad:
		return YadAvailable()
	case BackendBubbleTea, BackendHuh, BackendTView:
		return stdinIsInteractive()
	case BackendPlain:
		return true
	default:
		return false
	}
}

// YadAvailable reports whether the desktop dialog tool can be used.
func YadAvailable() bool {
	if _, err := lookPath("yad"); err != nil {
		return false
	}
	return displayAvailable()
}

func hasDisplay() bool {
	return strings.TrimSpace(os.Getenv("DISPLAY")) != "" || strings.TrimSpace(os.Getenv("WAYLAND_DISPLAY")) != ""
}

func isStdinInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
