package stage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// promptSpec defines the sections of a stage prompt. The system prompt
// carries purpose/constraints/rules; the user prompt carries the input JSON.
type promptSpec struct {
	Purpose     string
	Background  string
	Constraints []string
	Rules       []string
}

// System renders the instruction half of the prompt.
func (s promptSpec) System() string {
	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", s.Purpose)
	writeSection(&buf, "BACKGROUND", s.Background)
	writeSection(&buf, "CONSTRAINTS", formatList(s.Constraints))
	writeSection(&buf, "RULES", formatList(s.Rules))
	writeSection(&buf, "OUTPUT_FORMAT", "JSON only. No markdown, no commentary.")
	return strings.TrimSpace(buf.String()) + "\n"
}

// userInput renders the input payload half of the prompt.
func userInput(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return "[INPUT]\n" + string(b)
}

func writeSection(buf *bytes.Buffer, name, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	fmt.Fprintf(buf, "[%s]\n%s\n\n", name, body)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
	return b.String()
}
