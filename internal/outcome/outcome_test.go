package outcome

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func decode(t *testing.T, r Result) map[string]any {
	t.Helper()
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal %T failed: %v", r, err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s failed: %v", data, err)
	}
	return out
}

func TestVariantsCarryOnlyTheirFields(t *testing.T) {
	cases := []struct {
		result Result
		want   map[string]any
	}{
		{result: NoMatch{}, want: map[string]any{"type": "no_match", "score": 0.0}},
		{result: NoMatch{Score: 0.5}, want: map[string]any{"type": "no_match", "score": 0.5}},
		{result: Cancelled{}, want: map[string]any{"type": "cancelled"}},
		{
			result: Cancelled{ID: "system_reboot", Description: "Reboot", Score: 0.9},
			want:   map[string]any{"type": "cancelled", "id": "system_reboot", "description": "Reboot", "score": 0.9},
		},
		{
			result: Confirmed{ID: "volume_up", Description: "Up", Command: "vol +5", Score: 0.8, Params: map[string]int{"delta": 5}, Spoken: "Turning the volume up."},
			want: map[string]any{
				"type": "confirmed", "id": "volume_up", "description": "Up", "command": "vol +5",
				"score": 0.8, "params": map[string]any{"delta": 5.0}, "spoken": "Turning the volume up.",
			},
		},
		{
			result: Executed{ID: "wifi_on", Description: "Wifi", Command: "nmcli radio wifi on", ExitCode: 2, Stderr: "boom", Spoken: "Failed to Wifi."},
			want: map[string]any{
				"type": "executed", "id": "wifi_on", "description": "Wifi", "command": "nmcli radio wifi on",
				"params": map[string]any{}, "exit_code": 2.0, "stdout": "", "stderr": "boom", "spoken": "Failed to Wifi.",
			},
		},
		{result: Error{Message: "registry not found"}, want: map[string]any{"type": "error", "message": "registry not found"}},
	}
	for _, tc := range cases {
		if diff := cmp.Diff(tc.want, decode(t, tc.result)); diff != "" {
			t.Fatalf("%T mismatch (-want +got):\n%s", tc.result, diff)
		}
	}
}

func TestExitCodeOnlyFailsForError(t *testing.T) {
	for _, r := range []Result{NoMatch{}, Cancelled{}, Confirmed{}, Executed{ExitCode: 3}} {
		if ExitCode(r) != 0 {
			t.Fatalf("expected exit 0 for %T", r)
		}
	}
	if ExitCode(Error{Message: "x"}) != 1 {
		t.Fatalf("expected exit 1 for Error")
	}
}
