package upstream

import "github.com/deepgate/deepgate/internal/canonical"

// reasonerPassthrough is the recognized subset of optional parameters
// spec.md §4.1 lists for the reasoner family.
var reasonerPassthrough = []string{
	"frequency_penalty", "temperature", "top_p", "top_k", "max_tokens",
	"presence_penalty", "stop", "stream_options", "response_format",
	"tools", "tool_choice", "logprobs", "top_logprobs",
}

// FormatReasoner is the reasoner-family request formatter (spec.md §4.1).
// Pure function: never validates, never errors.
func FormatReasoner(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	headers := map[string]string{
		"Authorization": "Bearer " + apiKey,
		"Content-Type":  "application/json",
	}

	body := map[string]any{
		"model":    model,
		"messages": messagesToWire(messages),
		"stream":   stream,
	}

	args := modelArgs.Clone()
	if _, hasMaxTokens := args["max_tokens"]; !hasMaxTokens {
		if v, ok := args["max_completion_tokens"]; ok {
			args["max_tokens"] = v
		}
	}

	for _, key := range reasonerPassthrough {
		if v, ok := args[key]; ok && v != nil {
			body[key] = v
		}
	}

	return headers, body
}

func messagesToWire(messages []canonical.Message) []map[string]string {
	out := make([]map[string]string, len(messages))
	for i, m := range messages {
		out[i] = map[string]string{"role": m.Role, "content": m.Content}
	}
	return out
}
