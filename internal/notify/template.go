package notify

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// OptionalVars are dropped together with the whole line they appear on when
// their value is empty.
var OptionalVars = map[string]struct{}{
	"meeting_link":    {},
	"dress_code":      {},
	"attendance_link": {},
}

// Render substitutes {name} placeholders from vars. Unknown placeholders are
// kept verbatim. A line referencing an empty optional variable is removed.
func Render(tpl string, vars map[string]string) string {
	lines := strings.Split(tpl, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if dropLine(line, vars) {
			continue
		}
		out = append(out, placeholderRe.ReplaceAllStringFunc(line, func(m string) string {
			if v, ok := vars[m[1:len(m)-1]]; ok {
				return v
			}
			return m
		}))
	}
	return strings.Join(out, "\n")
}

func dropLine(line string, vars map[string]string) bool {
	for _, m := range placeholderRe.FindAllStringSubmatch(line, -1) {
		if _, ok := OptionalVars[m[1]]; ok && strings.TrimSpace(vars[m[1]]) == "" {
			return true
		}
	}
	return false
}
