package safety

import (
	"errors"
	"strings"
	"testing"
)

func TestRedactTextRedactsAssignments(t *testing.T) {
	input := "GEMINI_API_KEY=abc123 token: xyz password='hunter2'"
	got := RedactText(input)

	if strings.Contains(got, "abc123") || strings.Contains(got, "xyz") || strings.Contains(got, "hunter2") {
		t.Fatalf("expected secrets to be redacted, got %q", got)
	}
	if !strings.Contains(got, "GEMINI_API_KEY=<redacted>") {
		t.Fatalf("expected api key assignment to be redacted, got %q", got)
	}
}

func TestRedactTextRedactsGoogleKeysInURLs(t *testing.T) {
	key := "AIza" + strings.Repeat("x", 35)
	input := `Post "https://generativelanguage.googleapis.com/v1beta/models/x:embedContent?key=` + key + `&alt=json": dial tcp: timeout`
	got := RedactText(input)

	if strings.Contains(got, key) {
		t.Fatalf("expected api key to be redacted, got %q", got)
	}
	if !strings.Contains(got, "?key=<redacted>&alt=json") {
		t.Fatalf("expected query parameter redaction, got %q", got)
	}
	if !strings.Contains(got, "dial tcp: timeout") {
		t.Fatalf("expected the rest of the message to survive, got %q", got)
	}
}

func TestRedactTextRedactsBareGoogleKey(t *testing.T) {
	key := "AIzaSy" + strings.Repeat("A1_-", 8) + "Q"
	got := RedactText("using " + key + " for embeddings")
	if got != "using <redacted> for embeddings" {
		t.Fatalf("unexpected redaction: %q", got)
	}
}

func TestRedactTextRedactsHeaders(t *testing.T) {
	got := RedactText("Authorization: Bearer verysecrettoken x-goog-api-key: abc")
	if strings.Contains(got, "verysecrettoken") || strings.Contains(got, "abc") {
		t.Fatalf("expected header values to be redacted, got %q", got)
	}
	if !strings.Contains(strings.ToLower(got), "authorization: bearer <redacted>") {
		t.Fatalf("expected normalized bearer redaction, got %q", got)
	}
}

func TestRedactTextLeavesRegularUtterancesAndCommands(t *testing.T) {
	for _, input := range []string{
		"set brightness to 20 percent",
		"turn the volume up a bit",
		"brightnessctl set 20%",
		"pactl set-sink-volume @DEFAULT_SINK@ +5%",
		"nmcli radio wifi on",
	} {
		if got := RedactText(input); got != input {
			t.Fatalf("expected %q unchanged, got %q", input, got)
		}
	}
}

func TestRedactTextRedactsFlagStyleSecrets(t *testing.T) {
	input := "mycli --password hunter2 --token=abc123 --api-key \"xyz\" --user bob"
	got := RedactText(input)

	if strings.Contains(got, "hunter2") || strings.Contains(got, "abc123") || strings.Contains(got, "xyz") {
		t.Fatalf("expected flag-style secrets to be redacted, got %q", got)
	}
	if !strings.Contains(got, "--token=<redacted>") {
		t.Fatalf("expected --token= redaction, got %q", got)
	}
	if !strings.Contains(got, "--user bob") {
		t.Fatalf("expected non-secret flags to remain unchanged, got %q", got)
	}
}

func TestRedactTextRedactsSpokenSecrets(t *testing.T) {
	got := RedactText("my password is hunter2 please")
	if strings.Contains(got, "hunter2") {
		t.Fatalf("expected spoken password to be redacted, got %q", got)
	}
	if !strings.Contains(got, "please") {
		t.Fatalf("expected trailing words to remain, got %q", got)
	}
}

func TestRedactError(t *testing.T) {
	if got := RedactError(nil); got != "" {
		t.Fatalf("expected empty string for nil, got %q", got)
	}
	got := RedactError(errors.New("request failed: api_key=abc123"))
	if got != "request failed: api_key=<redacted>" {
		t.Fatalf("unexpected redacted error: %q", got)
	}
}
