package composite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepgate/deepgate/internal/canonical"
	"github.com/deepgate/deepgate/internal/upstream"
)

// fakeClient is a minimal upstream.Client driven entirely by a pre-built
// sequence of StreamItems, for exercising the orchestrator's state machine
// without any real HTTP.
type fakeClient struct {
	items []upstream.StreamItem
}

func (f *fakeClient) FormatData(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	return nil, nil
}

func (f *fakeClient) StreamChat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params upstream.Params) (<-chan upstream.StreamItem, error) {
	ch := make(chan upstream.StreamItem)
	go func() {
		defer close(ch)
		for _, item := range f.items {
			select {
			case ch <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeClient) Chat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params upstream.Params) (*canonical.FinalResponse, error) {
	return nil, nil
}

func (f *fakeClient) OriginalStreamChat(ctx context.Context, headers map[string]string, body map[string]any) (<-chan upstream.OriginalItem, error) {
	return nil, nil
}

func (f *fakeClient) OriginalChat(ctx context.Context, headers map[string]string, body map[string]any) (map[string]any, error) {
	return nil, nil
}

func reasoningChunk(reasoning, content string) upstream.StreamItem {
	return upstream.StreamItem{Chunk: canonical.Chunk{
		Choices: []canonical.Choice{{Delta: canonical.Delta{ReasoningContent: reasoning, Content: content}}},
	}}
}

func drain(t *testing.T, ch <-chan upstream.StreamItem) []upstream.StreamItem {
	t.Helper()
	var out []upstream.StreamItem
	timeout := time.After(2 * time.Second)
	for {
		select {
		case item, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, item)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestOrchestrator_HappyPath(t *testing.T) {
	reasoning := &fakeClient{items: []upstream.StreamItem{
		reasoningChunk("why ", ""),
		reasoningChunk("so", ""),
		reasoningChunk("", "ignored-after-boundary"), // boundary chunk itself still forwarded
	}}
	target := &fakeClient{items: []upstream.StreamItem{
		{Chunk: canonical.Chunk{Choices: []canonical.Choice{{Delta: canonical.Delta{Content: "answer"}}}}},
	}}

	o := New(reasoning, target)
	messages := []canonical.Message{{Role: "user", Content: "hello"}}

	stream, err := o.StreamChat(context.Background(), "chatcmpl-1", messages, canonical.ModelArgs{}, Params{})
	require.NoError(t, err)

	items := drain(t, stream)
	require.Len(t, items, 4) // 3 reasoning-stage chunks + 1 target chunk

	assert.Equal(t, "answer", items[3].Chunk.Choices[0].Delta.Content)
}

func TestOrchestrator_EmptyReasoningFails(t *testing.T) {
	reasoning := &fakeClient{items: nil} // stream closes immediately, R stays empty
	target := &fakeClient{}

	o := New(reasoning, target)
	messages := []canonical.Message{{Role: "user", Content: "hello"}}

	stream, err := o.StreamChat(context.Background(), "chatcmpl-2", messages, canonical.ModelArgs{}, Params{})
	require.NoError(t, err)

	items := drain(t, stream)
	require.Len(t, items, 1)
	require.Error(t, items[0].Err)
	assert.Contains(t, items[0].Err.Error(), "no valid reasoning content")
}

func TestOrchestrator_LastMessageNotUserFails(t *testing.T) {
	reasoning := &fakeClient{items: []upstream.StreamItem{reasoningChunk("trace", "")}}
	target := &fakeClient{}

	o := New(reasoning, target)
	messages := []canonical.Message{{Role: "assistant", Content: "hello"}}

	stream, err := o.StreamChat(context.Background(), "chatcmpl-3", messages, canonical.ModelArgs{}, Params{})
	require.NoError(t, err)

	items := drain(t, stream)
	require.NotEmpty(t, items)
	last := items[len(items)-1]
	require.Error(t, last.Err)
	assert.Contains(t, last.Err.Error(), "no valid user message")
}

func TestOrchestrator_CallerCancelEndsStreamWithoutTarget(t *testing.T) {
	reasoning := &fakeClient{items: []upstream.StreamItem{reasoningChunk("trace", "")}}
	target := &fakeClient{items: []upstream.StreamItem{
		{Chunk: canonical.Chunk{Choices: []canonical.Choice{{Delta: canonical.Delta{Content: "should not arrive"}}}}},
	}}

	o := New(reasoning, target)
	messages := []canonical.Message{{Role: "user", Content: "hello"}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel before the stream even starts

	stream, err := o.StreamChat(ctx, "chatcmpl-4", messages, canonical.ModelArgs{}, Params{})
	require.NoError(t, err)

	items := drain(t, stream)
	assert.Empty(t, items)
}

func TestRewriteMessages_FoldsReasoningIntoTemplate(t *testing.T) {
	messages := []canonical.Message{{Role: "user", Content: "what is the answer"}}
	out, err := rewriteMessages(messages, "step one, step two")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Content, "what is the answer")
	assert.Contains(t, out[0].Content, "step one, step two")
	// original slice must not be mutated
	assert.Equal(t, "what is the answer", messages[0].Content)
}
