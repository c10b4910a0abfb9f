package upstream

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/dnaeon/go-vcr.v4/pkg/recorder"

	"github.com/deepgate/deepgate/internal/canonical"
)

// TestOpenAIClient_Chat_ReplaysRecordedInteraction drives the openai-family
// Chat path against a checked-in cassette rather than a live upstream,
// matching the corpus's recorded-HTTP-interaction approach to testing
// outbound clients.
func TestOpenAIClient_Chat_ReplaysRecordedInteraction(t *testing.T) {
	rec, err := recorder.New("testdata/openai_chat", recorder.WithMode(recorder.ModeReplayOnly))
	require.NoError(t, err)
	defer rec.Stop()

	client := NewOpenAIClient(Config{
		APIKey:    "sk-test",
		APIURL:    "https://api.openai.com/v1/chat/completions",
		Transport: rec,
	})

	resp, err := client.Chat(context.Background(), "chatcmpl-vcr", []canonical.Message{
		{Role: "user", Content: "hi"},
	}, "gpt-4o", canonical.ModelArgs{}, Params{})
	require.NoError(t, err)

	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "hello from the cassette", resp.Choices[0].Message.Content)
}
