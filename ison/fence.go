package ison

import (
	"fmt"
	"strings"
)

// FenceLanguage is the info string that marks a canonical payload fence.
const FenceLanguage = "ison"

const fenceMarker = "```"

// Fence is the raw payload of one ```ison code block.
type Fence struct {
	Payload string
	// StartLine is the 1-based line of the opening fence.
	StartLine int
}

// NormalizeNewlines converts CRLF and CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ExtractFences returns every ```ison payload in a Markdown body.
// Fences tagged with other languages are ignored.
func ExtractFences(content, context string) ([]Fence, error) {
	lines := strings.Split(NormalizeNewlines(content), "\n")

	var fences []Fence
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(trimmed, fenceMarker) {
			continue
		}
		lang := strings.ToLower(strings.TrimSpace(strings.TrimLeft(trimmed, "`")))
		if lang != FenceLanguage {
			continue
		}

		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.HasPrefix(strings.TrimSpace(lines[j]), fenceMarker) {
				end = j
				break
			}
		}
		if end == -1 {
			return nil, fmt.Errorf("%s: %w", context, ErrUnterminatedFence)
		}

		payload := strings.TrimSpace(strings.Join(lines[i+1:end], "\n"))
		if payload == "" {
			return nil, fmt.Errorf("%s: %w in ```ison code block starting at line %d", context, ErrEmptyPayload, i+1)
		}

		fences = append(fences, Fence{Payload: payload, StartLine: i + 1})
		i = end
	}

	if len(fences) == 0 {
		return nil, fmt.Errorf("%s: %w", context, ErrMissingFence)
	}
	return fences, nil
}

// RejectLegacyJSON fails if any fence carries a JSON object or array.
// Older documents embedded JSON in the same fence; they must be migrated.
func RejectLegacyJSON(fences []Fence, context string) error {
	for _, f := range fences {
		trimmed := strings.TrimSpace(f.Payload)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			return fmt.Errorf("%s: %w at line %d; run `llmanspec migrate` or rewrite the payload as canonical object/table blocks",
				context, ErrLegacyJSON, f.StartLine)
		}
	}
	return nil
}

// RenderFence wraps a payload in an ```ison fence.
func RenderFence(payload string) string {
	return fenceMarker + FenceLanguage + "\n" + strings.TrimRight(payload, " \t\r\n") + "\n" + fenceMarker + "\n"
}
