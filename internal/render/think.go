// Package render holds small helpers for turning raw model output into
// something a channel can present.
package render

import (
	"regexp"
	"strings"
)

// Reasoning models wrap their chain of thought in <think> tags; channels show
// the reasoning separately (or not at all) and must never send it verbatim.
var thinkBlockRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)

// SplitThink splits a model response into its think-block content and the
// visible reply. found is false when the response has no think block, in
// which case response is the input unchanged.
func SplitThink(content string) (think, response string, found bool) {
	matches := thinkBlockRe.FindStringSubmatch(content)
	if len(matches) <= 1 {
		return "", content, false
	}
	think = strings.TrimSpace(matches[1])
	response = strings.TrimSpace(thinkBlockRe.ReplaceAllString(content, ""))
	return think, response, true
}
