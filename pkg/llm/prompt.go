package llm

import (
	"fmt"
	"strings"
)

// maxPromptEntries caps how many retrieved entries the model sees.
const maxPromptEntries = 10

const systemPrompt = `You are a data classification assistant. Given a column name, sample values and a list of candidate semantic data types, pick the single best matching type.

Respond with JSON only, in exactly this shape:
{"datatype_id": "<id from the candidate list or null>", "confidence": <number between 0 and 1>, "reason": "<one short sentence>"}`

// BuildPrompt renders the user message: the column under classification and
// up to ten candidate registry entries.
func BuildPrompt(fieldName string, samples []string, hits []SearchHit) string {
	if len(hits) > maxPromptEntries {
		hits = hits[:maxPromptEntries]
	}
	if len(samples) > maxQuerySamples {
		samples = samples[:maxQuerySamples]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Column name: %s\n", fieldName)
	if len(samples) > 0 {
		fmt.Fprintf(&sb, "Sample values: %s\n", strings.Join(samples, ", "))
	}
	sb.WriteString("\nCandidate data types:\n")
	for i, h := range hits {
		fmt.Fprintf(&sb, "%d. id=%s name=%s", i+1, h.ID, h.Metadata["name"])
		if doc := h.Metadata["doc"]; doc != "" {
			fmt.Fprintf(&sb, ": %s", doc)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nWhich data type fits best? Answer with JSON only.")
	return sb.String()
}
