package upstream

import "github.com/deepgate/deepgate/internal/canonical"

// FormatOpenAI is the openai-family request formatter (spec.md §4.1): the
// wire format is already canonical, so every non-nil caller parameter
// passes straight through.
func FormatOpenAI(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}

	body := map[string]any{
		"model":    model,
		"messages": messagesToWire(messages),
		"stream":   stream,
	}
	for k, v := range modelArgs {
		if v != nil {
			body[k] = v
		}
	}

	return headers, body
}
