// Package audit keeps an append-only JSONL record of resolution outcomes.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashwch/bumblebee/internal/appdirs"
	"github.com/ashwch/bumblebee/internal/outcome"
	"github.com/ashwch/bumblebee/internal/safety"
	"github.com/google/uuid"
)

const eventsFileName = "audit.jsonl"
const maxUtteranceLength = 2048

const (
	KindPlan = "plan"
	KindExec = "exec"
)

type Event struct {
	ID        string          `json:"id"`
	Timestamp string          `json:"timestamp"`
	Kind      string          `json:"kind"`
	Utterance string          `json:"utterance,omitempty"`
	CommandID string          `json:"command_id,omitempty"`
	Type      string          `json:"type"`
	Outcome   json.RawMessage `json:"outcome"`
}

// Log is an audit file. The zero value is unusable; use Default or At.
type Log struct {
	path string
}

// Default returns the audit log in the app state dir.
func Default() (Log, error) {
	path, err := appdirs.StateFilePath(eventsFileName)
	if err != nil {
		return Log{}, err
	}
	return Log{path: path}, nil
}

func At(path string) Log {
	return Log{path: path}
}

func (l Log) Path() string {
	return l.path
}

// Record appends one event for result. The utterance and every free-text
// field of the outcome are redacted before they are written.
func (l Log) Record(kind, utterance, commandID string, result outcome.Result) error {
	if strings.TrimSpace(l.path) == "" {
		return fmt.Errorf("audit log path is empty")
	}
	encoded, err := json.Marshal(redactResult(result))
	if err != nil {
		return fmt.Errorf("could not serialize outcome: %w", err)
	}
	ev := Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Kind:      kind,
		Utterance: truncate(strings.TrimSpace(safety.RedactText(utterance)), maxUtteranceLength),
		CommandID: commandID,
		Type:      result.Type(),
		Outcome:   json.RawMessage(encoded),
	}

	if err := appdirs.EnsureParentDir(l.path); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("could not open audit file: %w", err)
	}
	defer f.Close()
	if err := os.Chmod(l.path, 0o600); err != nil {
		return fmt.Errorf("could not secure audit file permissions: %w", err)
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("could not serialize audit event: %w", err)
	}
	if _, err := f.WriteString(string(line) + "\n"); err != nil {
		return fmt.Errorf("could not write audit event: %w", err)
	}
	return nil
}

// List returns up to limit of the most recent events, oldest first. A limit
// of zero or less returns everything. Malformed lines are skipped.
func (l Log) List(limit int) ([]Event, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not read audit file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var events []Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not scan audit file: %w", err)
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

// redactResult scrubs the text fields a secret can reach: rendered commands,
// captured output and error messages.
func redactResult(result outcome.Result) outcome.Result {
	switch r := result.(type) {
	case outcome.Confirmed:
		r.Command = safety.RedactText(r.Command)
		r.MatchedText = safety.RedactText(r.MatchedText)
		return r
	case outcome.Executed:
		r.Command = safety.RedactText(r.Command)
		r.Stdout = safety.RedactText(r.Stdout)
		r.Stderr = safety.RedactText(r.Stderr)
		return r
	case outcome.Error:
		r.Message = safety.RedactText(r.Message)
		r.Command = safety.RedactText(r.Command)
		return r
	default:
		return result
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
