// Package template provides placeholder substitution for message bodies.
package template

import (
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Render substitutes {{identifier}} tokens in input from data. Tokens with
// no matching key are left verbatim and returned in the unresolved list, in
// order of first appearance. Rendering is deterministic and idempotent:
// rendered output contains no tokens for keys present in data, so rendering
// it again is a no-op.
func Render(input string, data map[string]string) (string, []string) {
	var unresolved []string

	seen := make(map[string]bool)

	rendered := placeholderPattern.ReplaceAllStringFunc(input, func(token string) string {
		name := placeholderName(token)

		if value, ok := data[name]; ok {
			return value
		}

		if !seen[name] {
			seen[name] = true

			unresolved = append(unresolved, name)
		}

		return token
	})

	return rendered, unresolved
}

// Placeholders returns the distinct identifiers referenced by input, in
// order of first appearance.
func Placeholders(input string) []string {
	var names []string

	seen := make(map[string]bool)

	for _, match := range placeholderPattern.FindAllStringSubmatch(input, -1) {
		name := match[1]
		if !seen[name] {
			seen[name] = true

			names = append(names, name)
		}
	}

	return names
}

func placeholderName(token string) string {
	inner := strings.TrimSuffix(strings.TrimPrefix(token, "{{"), "}}")

	return strings.TrimSpace(inner)
}
