package ui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// runDialog runs a dialog tool to completion. A tool that ran and exited
// non-zero is an answer, not an error; err is only set when it could not run.
var runDialog = func(ctx context.Context, name string, args ...string) (int, string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err == nil {
		return 0, string(out), nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), string(out), nil
	}
	return -1, "", err
}

// startDialog launches a tool without waiting for it.
var startDialog = func(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()
	return nil
}

func confirmWithYad(ctx context.Context, title, text string) (bool, error) {
	code, _, err := runDialog(ctx, "yad",
		"--title", title,
		"--button", "gtk-cancel:1",
		"--button", "gtk-ok:0",
		"--text", text,
	)
	if err != nil {
		return false, err
	}
	return code == 0, nil
}

func chooseWithYad(ctx context.Context, title, prompt string, options []string) (int, bool, error) {
	args := []string{
		"--list",
		"--title", title,
		"--text", prompt,
		"--column", "#:NUM",
		"--column", "Option",
		"--hide-column", "1",
		"--print-column", "1",
		"--separator", "",
		"--height", strconv.Itoa(max(min(120+len(options)*28, 480), 160)),
	}
	for i, option := range options {
		args = append(args, strconv.Itoa(i+1), option)
	}
	code, out, err := runDialog(ctx, "yad", args...)
	if err != nil {
		return -1, false, err
	}
	if code != 0 {
		return -1, false, nil
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil || n < 1 || n > len(options) {
		return -1, false, nil
	}
	return n - 1, true, nil
}

func notifyWithYad(title, text string) error {
	return startDialog("yad",
		"--title", title,
		"--text", text,
		"--no-buttons",
		"--timeout", "1",
	)
}

// desktopNotify sends a freedesktop notification over DBus via busctl.
func desktopNotify(ctx context.Context, appName string, summary string) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	code, out, err := runDialog(ctx, "busctl",
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		"0",
		"",
		summary,
		"",
		"0", // actions array length
		"0", // hints map length
		"1500",
	)
	if err != nil {
		return fmt.Errorf("desktop notify failed: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("desktop notify failed: exit status %d", code)
	}
	if fields := strings.Fields(strings.TrimSpace(out)); len(fields) < 2 || fields[0] != "u" {
		return fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(out))
	}
	return nil
}
