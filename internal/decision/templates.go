package decision

import "strings"

// RenderTemplate substitutes {placeholder} tokens. Unknown placeholders are
// left intact so typos surface in the sent message instead of vanishing.
func RenderTemplate(template string, vars map[string]string) string {
	out := template
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return strings.TrimSpace(out)
}
