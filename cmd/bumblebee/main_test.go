package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/ashwch/bumblebee/internal/appdirs"
	"github.com/ashwch/bumblebee/internal/config"
	"github.com/ashwch/bumblebee/internal/embedding"
	"github.com/ashwch/bumblebee/internal/live"
	"github.com/ashwch/bumblebee/internal/ui"
	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
)

type decliningPrompter struct{}

func (decliningPrompter) Confirm(context.Context, string) bool                 { return false }
func (decliningPrompter) Choose(context.Context, string, []string) (int, bool) { return -1, false }
func (decliningPrompter) Notify(context.Context, string)                       {}

type tableProducer map[string][]float32

func (p tableProducer) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := p[text]; ok {
		return vec, nil
	}
	return []float32{0, 0, 1}, nil
}

func (tableProducer) Name() string { return "table" }

const cliRegistry = `[
  {"id": "volume_set", "description": "Set volume", "shell_command_template": "printf 'volume %s' {value}"},
  {"id": "system_reboot", "description": "Reboot the system", "shell_command_template": "echo reboot", "dangerous": true}
]`

// isolate points every app dir at a temp tree and clears inherited overrides.
func isolate(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skip("xdg layout is linux-specific")
	}
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(root, "state"))
	for _, key := range []string{
		"CMD_MATCH_THRESHOLD", "CMD_CLARIFY_THRESHOLD", "CMD_AMBIGUITY_DELTA",
		"BUMBLEBEE_REGISTRY", "BUMBLEBEE_CACHE", "BUMBLEBEE_UI", "BUMBLEBEE_LOCALE",
		"GEMINI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("LANG", "en_US.UTF-8")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
}

func writeCLIRegistry(t *testing.T) string {
	t.Helper()
	path, err := appdirs.RegistryFilePath()
	if err != nil {
		t.Fatalf("registry path failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(path, []byte(cliRegistry), 0o600); err != nil {
		t.Fatalf("write registry failed: %v", err)
	}
	return path
}

func testApp(producer embedding.Producer) (*app, *bytes.Buffer, *bytes.Buffer) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	a := newApp(stdout, stderr)
	a.newProducer = func(context.Context, config.EmbeddingConfig) (embedding.Producer, error) {
		if producer == nil {
			return nil, errors.New("no producer in this test")
		}
		return producer, nil
	}
	a.newPrompter = func(config.Config, *zap.Logger) ui.Prompter { return decliningPrompter{} }
	return a, stdout, stderr
}

func decodeRecord(t *testing.T, stdout *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected exactly one record on stdout, got %d:\n%s", len(lines), stdout.String())
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("expected JSON record, got %q: %v", lines[0], err)
	}
	return record
}

func TestMissingPlanAndExecIsError(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), nil); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	record := decodeRecord(t, stdout)
	if record["type"] != "error" || record["message"] != "Missing --plan text or --exec-id" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestExecByIDRunsWithParams(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)
	a, stdout, _ := testApp(nil)

	code := a.execute(context.Background(), []string{"--exec-id", "volume_set", "--param", "value=200"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	record := decodeRecord(t, stdout)
	want := map[string]any{
		"type":        "executed",
		"id":          "volume_set",
		"description": "Set volume",
		"command":     "printf 'volume %s' 153",
		"params":      map[string]any{"value": float64(153)},
		"exit_code":   float64(0),
		"stdout":      "volume 153",
		"stderr":      "",
		"spoken":      "Setting the volume to 153 percent.",
	}
	if diff := cmp.Diff(want, record); diff != "" {
		t.Fatalf("unexpected record (-want +got):\n%s", diff)
	}

	auditPath, err := appdirs.StateFilePath("audit.jsonl")
	if err != nil {
		t.Fatalf("audit path failed: %v", err)
	}
	if _, err := os.Stat(auditPath); err != nil {
		t.Fatalf("expected audit record to be written: %v", err)
	}
}

func TestExecUnknownIDExitsOne(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"--exec-id", "coffee"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if record := decodeRecord(t, stdout); record["message"] != "Unknown command id: coffee" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestExecRejectsMalformedParam(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"--exec-id", "volume_set", "--param", "loud"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if record := decodeRecord(t, stdout); record["type"] != "error" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestPlanConfirmsAndDeclinesDangerous(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)
	producer := tableProducer{
		"Set volume":           {1, 0, 0},
		"Reboot the system":    {0, 1, 0},
		"set volume to 30":     {1, 0, 0},
		"restart the computer": {0, 1, 0},
	}

	a, stdout, _ := testApp(producer)
	if code := a.execute(context.Background(), []string{"--plan", "set volume to 30"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	record := decodeRecord(t, stdout)
	if record["type"] != "confirmed" || record["command"] != "printf 'volume %s' 30" {
		t.Fatalf("unexpected record: %v", record)
	}

	a, stdout, _ = testApp(producer)
	if code := a.execute(context.Background(), []string{"--plan", "restart the computer"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	record = decodeRecord(t, stdout)
	want := map[string]any{"type": "cancelled", "id": "system_reboot", "description": "Reboot the system", "score": float64(1)}
	if diff := cmp.Diff(want, record); diff != "" {
		t.Fatalf("unexpected record (-want +got):\n%s", diff)
	}
}

func TestPlanThresholdFlagRaisesAcceptance(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)
	producer := tableProducer{
		"Set volume":        {1, 0, 0},
		"Reboot the system": {0, 1, 0},
		"volume please":     {0.8, 0.6, 0},
	}

	a, stdout, _ := testApp(producer)
	a.execute(context.Background(), []string{"--plan", "volume please"})
	if record := decodeRecord(t, stdout); record["type"] != "confirmed" {
		t.Fatalf("expected confirmed at the default threshold, got %v", record)
	}

	// 0.8 now falls in the soft-confirm band and the prompter declines.
	a, stdout, _ = testApp(producer)
	code := a.execute(context.Background(), []string{"--plan", "volume please", "--threshold", "0.9"})
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	record := decodeRecord(t, stdout)
	if record["type"] != "cancelled" || record["id"] != "volume_set" {
		t.Fatalf("expected cancelled soft confirm, got %v", record)
	}
}

func TestPlanWithoutProducerIsError(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"--plan", "mute"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	record := decodeRecord(t, stdout)
	if record["type"] != "error" || record["kind"] != "embedding_auth" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestPlanMissingRegistryIsError(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(tableProducer{})
	if code := a.execute(context.Background(), []string{"--plan", "mute"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if record := decodeRecord(t, stdout); !strings.Contains(record["message"].(string), "registry not found") {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestRegistryInitWritesOnce(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"registry", "init"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(stdout.String(), "wrote starter registry") {
		t.Fatalf("unexpected output: %q", stdout.String())
	}

	a, stdout, _ = testApp(nil)
	a.execute(context.Background(), []string{"registry", "init"})
	if !strings.Contains(stdout.String(), "already exists") {
		t.Fatalf("expected existing registry to be kept, got %q", stdout.String())
	}

	a, stdout, _ = testApp(nil)
	a.execute(context.Background(), []string{"registry", "list"})
	if !strings.Contains(stdout.String(), "system_reboot") || !strings.Contains(stdout.String(), "yes") {
		t.Fatalf("expected listing with dangerous marker, got:\n%s", stdout.String())
	}
}

func TestConfigSetThenShow(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"config", "set", "match.threshold", "0.8"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout.String()) != "match.threshold=0.8" {
		t.Fatalf("unexpected set output: %q", stdout.String())
	}

	a, stdout, _ = testApp(nil)
	a.execute(context.Background(), []string{"config", "show", "match.threshold"})
	if strings.TrimSpace(stdout.String()) != "0.8" {
		t.Fatalf("expected persisted threshold, got %q", stdout.String())
	}

	a, _, stderr := testApp(nil)
	if code := a.execute(context.Background(), []string{"config", "set", "match.threshold", "2"}); code != 1 {
		t.Fatalf("expected invalid value to exit 1, got %d", code)
	}
	if !strings.Contains(stderr.String(), "bumblebee:") {
		t.Fatalf("expected error on stderr, got %q", stderr.String())
	}
}

func TestCacheWarmAndStatus(t *testing.T) {
	isolate(t)
	writeCLIRegistry(t)

	a, stdout, _ := testApp(nil)
	a.execute(context.Background(), []string{"cache", "status"})
	var status struct {
		Stale []map[string]string `json:"stale"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &status); err != nil {
		t.Fatalf("decode status failed: %v", err)
	}
	if len(status.Stale) != 2 {
		t.Fatalf("expected two stale texts, got %v", status.Stale)
	}

	a, stdout, _ = testApp(tableProducer{})
	if code := a.execute(context.Background(), []string{"cache", "warm"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	var stats struct {
		Computed int `json:"computed"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats failed: %v", err)
	}
	if stats.Computed != 2 {
		t.Fatalf("expected two computed vectors, got %d", stats.Computed)
	}
}

type cannedGenerator string

func (g cannedGenerator) Generate(context.Context, string, string) (string, error) {
	return string(g), nil
}

func TestAskPrintsAnswer(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(nil)
	a.newGenerator = func(context.Context, string) (live.Generator, error) {
		return cannedGenerator("It is twenty degrees Celsius."), nil
	}
	if code := a.execute(context.Background(), []string{"ask", "--text", "weather?"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout.String()) != "It is twenty degrees Celsius." {
		t.Fatalf("unexpected answer: %q", stdout.String())
	}
}

func TestAskWithoutKeyApologizes(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"ask", "what", "time", "is", "it"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout.String()) != "Sorry, I couldn't fetch live information right now." {
		t.Fatalf("unexpected answer: %q", stdout.String())
	}
}

func TestAskWithoutTextExitsOne(t *testing.T) {
	isolate(t)
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"ask"}); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected no output, got %q", stdout.String())
	}
}

func TestVersion(t *testing.T) {
	a, stdout, _ := testApp(nil)
	if code := a.execute(context.Background(), []string{"version"}); code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if strings.TrimSpace(stdout.String()) != version {
		t.Fatalf("unexpected version output %q", stdout.String())
	}
}

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"value=20", " delta = 5 ", "note=a=b"})
	if err != nil {
		t.Fatalf("parseParams failed: %v", err)
	}
	want := map[string]string{"value": "20", "delta": "5", "note": "a=b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected params (-want +got):\n%s", diff)
	}
	if _, err := parseParams([]string{"=5"}); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}
