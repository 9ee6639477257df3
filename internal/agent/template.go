package agent

import (
	"fmt"
	"regexp"
)

var placeholderRegex = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate performs naive moustache-style replacement for {{key}}
// placeholders. Unknown keys are left as they are.
func RenderTemplate(template string, variables map[string]interface{}) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}
