package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/deepgate/deepgate/internal/apierr"
	"github.com/deepgate/deepgate/internal/canonical"
)

// ReasonerClient is the reasoner-family upstream client (DeepSeek-shaped:
// role+content chat messages, optionally partitioned into
// content/reasoning_content either by the upstream itself or, for
// embedded-reasoning models, inline via <think> markers).
type ReasonerClient struct {
	cfg Config
}

func NewReasonerClient(cfg Config) *ReasonerClient {
	return &ReasonerClient{cfg: cfg}
}

func (c *ReasonerClient) FormatData(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	return FormatReasoner(apiKey, model, messages, modelArgs, stream)
}

type reasonerWireDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type reasonerWireChoice struct {
	Index        int               `json:"index"`
	Delta        reasonerWireDelta `json:"delta"`
	Message      reasonerWireDelta `json:"message"`
	FinishReason *string           `json:"finish_reason,omitempty"`
}

type reasonerWireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type reasonerWireResponse struct {
	ID      string               `json:"id"`
	Model   string               `json:"model"`
	Choices []reasonerWireChoice `json:"choices"`
	Usage   *reasonerWireUsage   `json:"usage,omitempty"`
}

func (u *reasonerWireUsage) toCanonical() *canonical.Usage {
	if u == nil {
		return nil
	}
	return &canonical.Usage{
		PromptTokens:     canonical.IntPtr(u.PromptTokens),
		CompletionTokens: canonical.IntPtr(u.CompletionTokens),
		TotalTokens:      canonical.IntPtr(u.TotalTokens),
	}
}

func (c *ReasonerClient) StreamChat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (<-chan StreamItem, error) {
	headers, body := FormatReasoner(c.cfg.APIKey, model, messages, modelArgs, true)
	resp, err := doPost(ctx, c.cfg, headers, body)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	ch := make(chan StreamItem)
	go c.streamLoop(ctx, resp.Body, chatID, model, params, ch)
	return ch, nil
}

func (c *ReasonerClient) streamLoop(ctx context.Context, body io.ReadCloser, chatID, model string, params Params, ch chan<- StreamItem) {
	defer close(ch)
	framer := NewFramer(body, DefaultWindowSize)
	defer framer.Close()
	reader := newSSEReader(framer)

	var embedded embeddedReasoningState

	for {
		data, done, err := reader.next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if isEOF(err) {
				if emission := embedded.flush(); emission != nil {
					sendStreamItem(ctx, ch, StreamItem{Chunk: embeddedChunk(chatID, model, *emission, nil, nil)})
				}
				return
			}
			sendStreamItem(ctx, ch, StreamItem{Err: apierr.New(502, "reading reasoner stream: "+err.Error())})
			return
		}
		if done {
			if emission := embedded.flush(); emission != nil {
				sendStreamItem(ctx, ch, StreamItem{Chunk: embeddedChunk(chatID, model, *emission, nil, nil)})
			}
			return
		}

		var wireResp reasonerWireResponse
		if err := json.Unmarshal([]byte(data), &wireResp); err != nil {
			sendStreamItem(ctx, ch, StreamItem{Err: apierr.New(502, "decoding reasoner stream event: "+err.Error())})
			return
		}
		if len(wireResp.Choices) == 0 {
			if wireResp.Usage != nil {
				sendStreamItem(ctx, ch, StreamItem{Chunk: canonical.Chunk{
					ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
					Choices: []canonical.Choice{{Index: 0}},
					Usage:   wireResp.Usage.toCanonical(),
				}})
			}
			continue
		}
		wire := wireResp.Choices[0]

		if params.IsOriginReasoning {
			chunk := canonical.Chunk{
				ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
				Choices: []canonical.Choice{{
					Index: wire.Index,
					Delta: canonical.Delta{
						Role:             wire.Delta.Role,
						Content:          wire.Delta.Content,
						ReasoningContent: wire.Delta.ReasoningContent,
					},
					FinishReason: wire.FinishReason,
				}},
				Usage: wireResp.Usage.toCanonical(),
			}
			if !sendStreamItem(ctx, ch, StreamItem{Chunk: chunk}) {
				return
			}
			continue
		}

		if wire.Delta.Content != "" {
			for _, emission := range embedded.process(wire.Delta.Content) {
				if !sendStreamItem(ctx, ch, StreamItem{Chunk: embeddedChunk(chatID, model, emission, nil, nil)}) {
					return
				}
			}
			continue
		}
		if wire.Delta.Role != "" || wire.FinishReason != nil || wireResp.Usage != nil {
			chunk := canonical.Chunk{
				ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
				Choices: []canonical.Choice{{
					Index:        wire.Index,
					Delta:        canonical.Delta{Role: wire.Delta.Role},
					FinishReason: wire.FinishReason,
				}},
				Usage: wireResp.Usage.toCanonical(),
			}
			if !sendStreamItem(ctx, ch, StreamItem{Chunk: chunk}) {
				return
			}
		}
	}
}

func embeddedChunk(chatID, model string, emission embeddedEmission, finishReason *string, usage *canonical.Usage) canonical.Chunk {
	return canonical.Chunk{
		ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
		Choices: []canonical.Choice{{
			Index: 0,
			Delta: canonical.Delta{
				Content:          emission.content,
				ReasoningContent: emission.reasoningContent,
			},
			FinishReason: finishReason,
		}},
		Usage: usage,
	}
}

func (c *ReasonerClient) Chat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (*canonical.FinalResponse, error) {
	headers, body := FormatReasoner(c.cfg.APIKey, model, messages, modelArgs, false)
	resp, err := doPost(ctx, c.cfg, headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	var wire reasonerWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apierr.New(502, "decoding reasoner response: "+err.Error())
	}

	out := &canonical.FinalResponse{
		ID: chatID, Object: canonical.ObjectFinal, Created: time.Now().Unix(), Model: model,
		ProviderChatID: wire.ID,
		Usage:          wire.Usage.toCanonical(),
	}
	if len(wire.Choices) > 0 {
		choice := wire.Choices[0]
		out.Choices = []canonical.FinalChoice{{
			Index: choice.Index,
			Message: canonical.Delta{
				Role:             choice.Message.Role,
				Content:          choice.Message.Content,
				ReasoningContent: choice.Message.ReasoningContent,
			},
			FinishReason: choice.FinishReason,
		}}
	}
	return out, nil
}

func (c *ReasonerClient) OriginalStreamChat(ctx context.Context, headers map[string]string, body map[string]any) (<-chan OriginalItem, error) {
	return originalStreamChat(ctx, c.cfg, headers, body)
}

func (c *ReasonerClient) OriginalChat(ctx context.Context, headers map[string]string, body map[string]any) (map[string]any, error) {
	return originalChat(ctx, c.cfg, headers, body)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
