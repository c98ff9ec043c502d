// Package promptrender loads versioned extraction prompt templates and
// substitutes the per-message placeholders into them.
package promptrender

import (
	"embed"
	"fmt"
	"strings"
	"time"
)

//go:embed extraction_agent_v2.txt
var templatesFS embed.FS

// ExtractionPromptVersion identifies the template this renderer targets.
const ExtractionPromptVersion = "extraction_agent_v2"

// Rendered is a fully-substituted prompt ready to send to the model
// provider, tagged with the template version that produced it.
type Rendered struct {
	PromptVersion string
	PromptText    string
}

var placeholders = []string{"normalized_text", "message_time", "source_channel_name"}

// RenderExtractionPrompt loads the extraction_agent_v2 template and
// substitutes normalized_text, message_time (rendered as RFC 3339), and
// source_channel_name (empty string when absent). It fails if the
// template file is missing or any placeholder survives substitution.
func RenderExtractionPrompt(normalizedText string, messageTime time.Time, sourceChannelName string) (Rendered, error) {
	raw, err := templatesFS.ReadFile(ExtractionPromptVersion + ".txt")
	if err != nil {
		return Rendered{}, fmt.Errorf("missing prompt template %s: %w", ExtractionPromptVersion, err)
	}

	text := string(raw)
	text = strings.ReplaceAll(text, "{{normalized_text}}", normalizedText)
	text = strings.ReplaceAll(text, "{{message_time}}", messageTime.Format(time.RFC3339))
	text = strings.ReplaceAll(text, "{{source_channel_name}}", sourceChannelName)

	var missing []string
	for _, p := range placeholders {
		if strings.Contains(text, "{{"+p+"}}") {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return Rendered{}, fmt.Errorf("template placeholders not replaced: %v", missing)
	}

	return Rendered{PromptVersion: ExtractionPromptVersion, PromptText: text}, nil
}
