package runtime

import (
	"fmt"
	"regexp"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// allowedPlaceholders are the only names a template may substitute.
var allowedPlaceholders = map[string]struct{}{
	"value": {},
	"delta": {},
}

// Placeholders lists the {name} placeholders in template, in order. Shell
// expansions written as ${name} are not placeholders.
func Placeholders(template string) []string {
	var names []string
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		if loc[0] > 0 && template[loc[0]-1] == '$' {
			continue
		}
		names = append(names, template[loc[2]:loc[3]])
	}
	return names
}

// AllowedPlaceholder reports whether name may appear in a template.
func AllowedPlaceholder(name string) bool {
	_, ok := allowedPlaceholders[name]
	return ok
}

// Render substitutes {value} and {delta} with integers. When any placeholder
// cannot be filled the template is returned unmodified along with the reason.
func Render(template string, values map[string]int) (string, error) {
	for _, name := range Placeholders(template) {
		if !AllowedPlaceholder(name) {
			return template, fmt.Errorf("placeholder {%s} is not allowed", name)
		}
		if _, ok := values[name]; !ok {
			return template, fmt.Errorf("no value for placeholder {%s}", name)
		}
	}

	var out []byte
	last := 0
	for _, loc := range placeholderPattern.FindAllStringSubmatchIndex(template, -1) {
		if loc[0] > 0 && template[loc[0]-1] == '$' {
			continue
		}
		out = append(out, template[last:loc[0]]...)
		out = strconv.AppendInt(out, int64(values[template[loc[2]:loc[3]]]), 10)
		last = loc[1]
	}
	out = append(out, template[last:]...)
	return string(out), nil
}
