// Package params derives numeric command parameters from the literal utterance.
package params

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	Value = "value"
	Delta = "delta"
)

// Params holds at most a value and a delta.
type Params map[string]int

type family struct {
	prefix   string
	min, max int
}

var families = []family{
	{prefix: "brightness_", min: 0, max: 100},
	// Volume allows amplification past 100%.
	{prefix: "volume_", min: 0, max: 153},
}

const (
	defaultValue = 50
	defaultDelta = 10
	smallDelta   = 5
	minDelta     = 1
	maxDelta     = 100
)

var (
	firstNumberPattern = regexp.MustCompile(`(\d{1,3})\s*%?`)
	byNumberPattern    = regexp.MustCompile(`by\s*(\d{1,3})\s*%?`)
	smallChangeWords   = []string{"a bit", "slightly", "little", "bit"}
)

type mode int

const (
	modeNone mode = iota
	modeSet
	modeRelative
)

func classify(id string) (family, mode) {
	for _, f := range families {
		if !strings.HasPrefix(id, f.prefix) {
			continue
		}
		switch {
		case strings.HasSuffix(id, "_set"):
			return f, modeSet
		case strings.HasSuffix(id, "_up"), strings.HasSuffix(id, "_down"):
			return f, modeRelative
		}
		return f, modeNone
	}
	return family{}, modeNone
}

// Extract reads parameters for command id from utterance only. Ids outside
// the brightness and volume families yield empty Params.
func Extract(id, utterance string) Params {
	f, m := classify(id)
	text := strings.ToLower(utterance)
	switch m {
	case modeSet:
		if match := firstNumberPattern.FindStringSubmatch(text); match != nil {
			n, _ := strconv.Atoi(match[1])
			return Params{Value: clamp(n, f.min, f.max)}
		}
		return Params{Value: defaultValue}
	case modeRelative:
		if match := byNumberPattern.FindStringSubmatch(text); match != nil {
			n, _ := strconv.Atoi(match[1])
			return Params{Delta: clamp(n, minDelta, maxDelta)}
		}
		return Params{Delta: clamp(impliedDelta(text), minDelta, maxDelta)}
	default:
		return Params{}
	}
}

func impliedDelta(text string) int {
	for _, word := range smallChangeWords {
		if strings.Contains(text, word) {
			return smallDelta
		}
	}
	return defaultDelta
}

// Coerce keeps the value and delta entries of raw that parse as integers.
// Anything else is dropped rather than passed through.
func Coerce(raw map[string]string) Params {
	out := Params{}
	for _, key := range []string{Value, Delta} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		out[key] = n
	}
	return out
}

// Clamp bounds externally supplied params to the ranges of id's family and
// fills whatever the family needs but p lacks with the defaults Extract uses.
func Clamp(id string, p Params) Params {
	f, m := classify(id)
	out := Params{}
	for k, v := range p {
		out[k] = v
	}
	if m == modeNone {
		return out
	}
	for k, v := range Extract(id, "") {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	if v, ok := out[Value]; ok {
		out[Value] = clamp(v, f.min, f.max)
	}
	if d, ok := out[Delta]; ok {
		out[Delta] = clamp(d, minDelta, maxDelta)
	}
	return out
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
