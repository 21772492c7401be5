package generate

import (
	"regexp"
	"strings"
)

// OWLMarker heads the Turtle section of a drafting response.
const OWLMarker = "## OWL"

var turtleFence = regexp.MustCompile("(?i)```(?:ttl|turtle)\n([\\s\\S]+?)\n```")

// SplitResponse extracts the Turtle body from an LLM response: the first
// ```ttl or ```turtle fenced block after the "## OWL" heading. Responses
// without the heading (repair answers usually have none) are searched
// whole. It returns "" when there is no such block.
func SplitResponse(content string) string {
	section := content
	if _, after, ok := strings.Cut(content, OWLMarker); ok {
		section = after
	}
	m := turtleFence.FindStringSubmatch(strings.TrimSpace(section))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Assemble prepends the prefix block to a generated Turtle body.
func Assemble(base, body string) string {
	return PrefixBlock(base) + "\n\n# Generated code\n\n" + body
}
