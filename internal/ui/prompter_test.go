package ui

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type dialogCall struct {
	name string
	args []string
}

// stubEnvironment fixes tool discovery, display and tty detection for a test.
func stubEnvironment(t *testing.T, yadInstalled, display, interactive bool) {
	t.Helper()
	prevLook, prevDisplay, prevInteractive := lookPath, displayAvailable, stdinIsInteractive
	lookPath = func(name string) (string, error) {
		if name == "yad" && yadInstalled {
			return "/usr/bin/yad", nil
		}
		return "", exec.ErrNotFound
	}
	displayAvailable = func() bool { return display }
	stdinIsInteractive = func() bool { return interactive }
	t.Cleanup(func() {
		lookPath, displayAvailable, stdinIsInteractive = prevLook, prevDisplay, prevInteractive
	})
}

func stubDialogs(t *testing.T, run func(name string, args []string) (int, string, error)) *[]dialogCall {
	t.Helper()
	var calls []dialogCall
	prevRun, prevStart := runDialog, startDialog
	runDialog = func(_ context.Context, name string, args ...string) (int, string, error) {
		calls = append(calls, dialogCall{name: name, args: args})
		return run(name, args)
	}
	startDialog = func(name string, args ...string) error {
		calls = append(calls, dialogCall{name: name, args: args})
		_, _, err := run(name, args)
		return err
	}
	t.Cleanup(func() {
		runDialog, startDialog = prevRun, prevStart
	})
	return &calls
}

func newTestDialogs(backend, input string) (*Dialogs, *bytes.Buffer) {
	d := New(backend, "Bumblebee", zap.NewNop())
	out := &bytes.Buffer{}
	d.in = bufio.NewReader(strings.NewReader(input))
	d.out = out
	return d, out
}

func TestConfirmFailsClosedWithoutAnyBackend(t *testing.T) {
	stubEnvironment(t, false, false, false)
	d, _ := newTestDialogs("auto", "y\n")
	if d.Confirm(context.Background(), "Did you mean: Reboot?") {
		t.Fatalf("expected confirm to decline when no backend is available")
	}
	if idx, ok := d.Choose(context.Background(), "pick", []string{"a", "b"}); ok || idx != -1 {
		t.Fatalf("expected choose to select nothing, got %d %v", idx, ok)
	}
}

func TestConfirmWithYad(t *testing.T) {
	stubEnvironment(t, true, true, false)
	calls := stubDialogs(t, func(string, []string) (int, string, error) { return 0, "", nil })
	d, _ := newTestDialogs("auto", "")

	if !d.Confirm(context.Background(), "Allow action?") {
		t.Fatalf("expected yad OK to approve")
	}
	if len(*calls) != 1 || (*calls)[0].name != "yad" {
		t.Fatalf("expected a single yad call, got %+v", *calls)
	}
	args := strings.Join((*calls)[0].args, " ")
	if !strings.Contains(args, "--text Allow action?") || !strings.Contains(args, "gtk-ok:0") {
		t.Fatalf("unexpected yad args: %s", args)
	}
}

func TestConfirmWithYadCancelDeclines(t *testing.T) {
	stubEnvironment(t, true, true, false)
	stubDialogs(t, func(string, []string) (int, string, error) { return 1, "", nil })
	d, _ := newTestDialogs("yad", "")
	if d.Confirm(context.Background(), "Allow action?") {
		t.Fatalf("expected yad cancel to decline")
	}
}

func TestConfirmYadLaunchFailureFallsThroughAndFailsClosed(t *testing.T) {
	stubEnvironment(t, true, true, false)
	stubDialogs(t, func(string, []string) (int, string, error) { return -1, "", errors.New("exec format error") })
	d, _ := newTestDialogs("yad", "")
	if d.Confirm(context.Background(), "Allow action?") {
		t.Fatalf("expected broken yad to decline")
	}
}

func TestChooseWithYadReturnsIndex(t *testing.T) {
	stubEnvironment(t, true, true, false)
	calls := stubDialogs(t, func(string, []string) (int, string, error) { return 0, "2\n", nil })
	d, _ := newTestDialogs("yad", "")

	idx, ok := d.Choose(context.Background(), "Which one did you mean?", []string{"Volume up", "Brightness up"})
	if !ok || idx != 1 {
		t.Fatalf("expected second option, got %d %v", idx, ok)
	}
	args := (*calls)[0].args
	if args[len(args)-2] != "2" || args[len(args)-1] != "Brightness up" {
		t.Fatalf("expected numbered option rows, got %v", args)
	}
}

func TestChooseWithYadEmptySelectionIsNone(t *testing.T) {
	stubEnvironment(t, true, true, false)
	stubDialogs(t, func(string, []string) (int, string, error) { return 0, "\n", nil })
	d, _ := newTestDialogs("yad", "")
	if _, ok := d.Choose(context.Background(), "pick", []string{"a", "b"}); ok {
		t.Fatalf("expected empty selection to be none")
	}
}

func TestPlainConfirmAndChoose(t *testing.T) {
	stubEnvironment(t, false, false, false)

	d, out := newTestDialogs("plain", "yes\n")
	if !d.Confirm(context.Background(), "Did you mean: Mute?") {
		t.Fatalf("expected plain yes to approve")
	}
	if !strings.Contains(out.String(), "Did you mean: Mute? [y/N]") {
		t.Fatalf("expected prompt on output, got %q", out.String())
	}

	d, _ = newTestDialogs("plain", "\n")
	if d.Confirm(context.Background(), "Did you mean: Mute?") {
		t.Fatalf("expected empty answer to decline")
	}

	d, out = newTestDialogs("plain", "2\n")
	idx, ok := d.Choose(context.Background(), "Which one?", []string{"a", "b", "c"})
	if !ok || idx != 1 {
		t.Fatalf("expected index 1, got %d %v", idx, ok)
	}
	if !strings.Contains(out.String(), "  3) c") {
		t.Fatalf("expected numbered options, got %q", out.String())
	}

	d, _ = newTestDialogs("plain", "9\n")
	if _, ok := d.Choose(context.Background(), "Which one?", []string{"a", "b"}); ok {
		t.Fatalf("expected out-of-range choice to be none")
	}
}

func TestPlainConfirmAtEOFDeclines(t *testing.T) {
	stubEnvironment(t, false, false, false)
	d, _ := newTestDialogs("plain", "")
	if d.Confirm(context.Background(), "Allow?") {
		t.Fatalf("expected EOF to decline")
	}
}

func TestPlainPromptsShareInputAcrossCalls(t *testing.T) {
	stubEnvironment(t, false, false, false)

	d, _ := newTestDialogs("plain", "y\ny\n")
	if !d.Confirm(context.Background(), "Did you mean: Reboot?") {
		t.Fatalf("expected first answer to approve")
	}
	if !d.Confirm(context.Background(), "Allow action?") {
		t.Fatalf("expected second answer to approve")
	}

	d, _ = newTestDialogs("plain", "2\ny\n")
	if idx, ok := d.Choose(context.Background(), "Which one?", []string{"a", "b"}); !ok || idx != 1 {
		t.Fatalf("expected index 1, got %d %v", idx, ok)
	}
	if !d.Confirm(context.Background(), "Allow action?") {
		t.Fatalf("expected confirm after choose to read the next line")
	}
}

func TestNotifyFallsBackToBusctlThenOutput(t *testing.T) {
	stubEnvironment(t, false, true, false)
	calls := stubDialogs(t, func(name string, _ []string) (int, string, error) {
		if name == "busctl" {
			return 0, "u 42", nil
		}
		return -1, "", exec.ErrNotFound
	})
	d, out := newTestDialogs("auto", "")
	d.Notify(context.Background(), "Executing: Reboot")
	if len(*calls) != 1 || (*calls)[0].name != "busctl" {
		t.Fatalf("expected busctl notification, got %+v", *calls)
	}
	if out.Len() != 0 {
		t.Fatalf("expected nothing on output when busctl succeeded, got %q", out.String())
	}

	stubDialogs(t, func(string, []string) (int, string, error) { return -1, "", exec.ErrNotFound })
	d, out = newTestDialogs("auto", "")
	d.Notify(context.Background(), "Executing: Reboot")
	if strings.TrimSpace(out.String()) != "Executing: Reboot" {
		t.Fatalf("expected output fallback, got %q", out.String())
	}
}

func TestNotifyPlainWritesOutput(t *testing.T) {
	calls := stubDialogs(t, func(string, []string) (int, string, error) { return 0, "", nil })
	d, out := newTestDialogs("plain", "")
	d.Notify(context.Background(), "Executing: Mute")
	if len(*calls) != 0 {
		t.Fatalf("expected no desktop tools for plain backend, got %+v", *calls)
	}
	if strings.TrimSpace(out.String()) != "Executing: Mute" {
		t.Fatalf("unexpected output %q", out.String())
	}
}
