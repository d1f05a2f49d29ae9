// Package outcome defines the closed set of results a resolution attempt ends in.
package outcome

import "encoding/json"

const (
	TypeNoMatch   = "no_match"
	TypeCancelled = "cancelled"
	TypeConfirmed = "confirmed"
	TypeExecuted  = "executed"
	TypeError     = "error"
)

// Result is implemented only by the variants in this package.
type Result interface {
	Type() string
	sealed()
}

// NoMatch means nothing scored high enough. Score is the top score, or 0
// when nothing could be ranked.
type NoMatch struct {
	Score float64 `json:"score"`
}

// Cancelled means the user declined or chose nothing. A dismissed
// disambiguation prompt carries no fields.
type Cancelled struct {
	ID          string  `json:"id,omitempty"`
	Description string  `json:"description,omitempty"`
	Score       float64 `json:"score,omitempty"`
}

// Confirmed is a resolved, rendered command that has not been run.
type Confirmed struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Command     string         `json:"command"`
	Score       float64        `json:"score"`
	Params      map[string]int `json:"params"`
	Spoken      string         `json:"spoken"`
	MatchedText string         `json:"matched_text,omitempty"`
}

type Executed struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Command     string         `json:"command"`
	Params      map[string]int `json:"params"`
	ExitCode    int            `json:"exit_code"`
	Stdout      string         `json:"stdout"`
	Stderr      string         `json:"stderr"`
	Spoken      string         `json:"spoken"`
}

// Error carries whatever command context was known when the attempt failed.
type Error struct {
	Message     string `json:"message"`
	Kind        string `json:"kind,omitempty"`
	ID          string `json:"id,omitempty"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command,omitempty"`
}

func (NoMatch) Type() string   { return TypeNoMatch }
func (Cancelled) Type() string { return TypeCancelled }
func (Confirmed) Type() string { return TypeConfirmed }
func (Executed) Type() string  { return TypeExecuted }
func (Error) Type() string     { return TypeError }

func (NoMatch) sealed()   {}
func (Cancelled) sealed() {}
func (Confirmed) sealed() {}
func (Executed) sealed()  {}
func (Error) sealed()     {}

func (r NoMatch) MarshalJSON() ([]byte, error) {
	type plain NoMatch
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: r.Type(), plain: plain(r)})
}

func (r Cancelled) MarshalJSON() ([]byte, error) {
	type plain Cancelled
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: r.Type(), plain: plain(r)})
}

func (r Confirmed) MarshalJSON() ([]byte, error) {
	type plain Confirmed
	if r.Params == nil {
		r.Params = map[string]int{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: r.Type(), plain: plain(r)})
}

func (r Executed) MarshalJSON() ([]byte, error) {
	type plain Executed
	if r.Params == nil {
		r.Params = map[string]int{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: r.Type(), plain: plain(r)})
}

func (r Error) MarshalJSON() ([]byte, error) {
	type plain Error
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{Type: r.Type(), plain: plain(r)})
}

// ExitCode is 1 for Error and 0 for every other outcome.
func ExitCode(r Result) int {
	if _, ok := r.(Error); ok {
		return 1
	}
	return 0
}
