package upstream

import "github.com/deepgate/deepgate/internal/canonical"

const anthropicAPIVersion = "2023-06-01"

// defaultAnthropicMaxTokens is used when the caller doesn't specify
// max_tokens; Anthropic requires the field (spec.md §4.1).
const defaultAnthropicMaxTokens = 8192

var anthropicPassthrough = []string{
	"max_tokens", "container", "mcp_servers", "metadata", "service_tier",
	"stop_sequences", "stream", "system", "temperature", "thinking",
	"tool_choice", "tools", "top_p", "top_k",
}

// FormatAnthropic is the anthropic-family request formatter (spec.md
// §4.1). The first system-role message is lifted out of messages into the
// top-level "system" field; remaining messages pass through unchanged.
func FormatAnthropic(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	headers := map[string]string{
		"x-api-key":         apiKey,
		"anthropic-version": anthropicAPIVersion,
		"content-type":      "application/json",
	}

	var system string
	haveSystem := false
	rest := make([]canonical.Message, 0, len(messages))
	for _, m := range messages {
		if !haveSystem && m.Role == "system" {
			system = m.Content
			haveSystem = true
			continue
		}
		rest = append(rest, m)
	}

	body := map[string]any{
		"model":    model,
		"messages": messagesToWire(rest),
		"stream":   stream,
	}
	if haveSystem {
		body["system"] = system
	}

	args := modelArgs.Clone()
	if _, ok := args["max_tokens"]; !ok {
		if v, ok := args["max_completion_tokens"]; ok {
			args["max_tokens"] = v
		}
	}
	if _, ok := args["stop_sequences"]; !ok {
		if v, ok := args["stop"]; ok {
			args["stop_sequences"] = v
		}
	}

	for _, key := range anthropicPassthrough {
		if v, ok := args[key]; ok && v != nil {
			body[key] = v
		}
	}
	if _, ok := body["max_tokens"]; !ok {
		body["max_tokens"] = defaultAnthropicMaxTokens
	}
	body["stream"] = stream

	return headers, body
}
