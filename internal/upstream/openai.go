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

// OpenAIClient is the openai-family upstream client: the wire format is
// already canonical, so normalization is a direct field copy (spec.md
// §4.2).
type OpenAIClient struct {
	cfg Config
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	return &OpenAIClient{cfg: cfg}
}

func (c *OpenAIClient) FormatData(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	return FormatOpenAI(apiKey, model, messages, modelArgs, stream)
}

type openAIWireDelta struct {
	Role             string `json:"role,omitempty"`
	Content          string `json:"content,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type openAIWireChoice struct {
	Index        int             `json:"index"`
	Delta        openAIWireDelta `json:"delta"`
	Message      openAIWireDelta `json:"message"`
	FinishReason *string         `json:"finish_reason,omitempty"`
}

type openAIWireUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIWireResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openAIWireChoice `json:"choices"`
	Usage   *openAIWireUsage   `json:"usage,omitempty"`
}

func (u *openAIWireUsage) toCanonical() *canonical.Usage {
	if u == nil {
		return nil
	}
	return &canonical.Usage{
		PromptTokens:     canonical.IntPtr(u.PromptTokens),
		CompletionTokens: canonical.IntPtr(u.CompletionTokens),
		TotalTokens:      canonical.IntPtr(u.TotalTokens),
	}
}

func (c *OpenAIClient) StreamChat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (<-chan StreamItem, error) {
	headers, body := FormatOpenAI(c.cfg.APIKey, model, messages, modelArgs, true)
	resp, err := doPost(ctx, c.cfg, headers, body)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	ch := make(chan StreamItem)
	go c.streamLoop(ctx, resp.Body, chatID, model, ch)
	return ch, nil
}

func (c *OpenAIClient) streamLoop(ctx context.Context, body io.ReadCloser, chatID, model string, ch chan<- StreamItem) {
	defer close(ch)
	framer := NewFramer(body, DefaultWindowSize)
	defer framer.Close()
	reader := newSSEReader(framer)

	for {
		data, done, err := reader.next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return
			}
			sendStreamItem(ctx, ch, StreamItem{Err: apierr.New(502, "reading openai stream: "+err.Error())})
			return
		}
		if done {
			return
		}

		var wire openAIWireResponse
		if err := json.Unmarshal([]byte(data), &wire); err != nil {
			sendStreamItem(ctx, ch, StreamItem{Err: apierr.New(502, "decoding openai stream event: "+err.Error())})
			return
		}
		if len(wire.Choices) == 0 {
			if wire.Usage != nil {
				sendStreamItem(ctx, ch, StreamItem{Chunk: canonical.Chunk{
					ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
					Choices: []canonical.Choice{{Index: 0}},
					Usage:   wire.Usage.toCanonical(),
				}})
			}
			continue
		}
		choice := wire.Choices[0]

		chunk := canonical.Chunk{
			ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
			Choices: []canonical.Choice{{
				Index: choice.Index,
				Delta: canonical.Delta{
					Role:             choice.Delta.Role,
					Content:          choice.Delta.Content,
					ReasoningContent: choice.Delta.ReasoningContent,
				},
				FinishReason: choice.FinishReason,
			}},
			Usage: wire.Usage.toCanonical(),
		}
		if !sendStreamItem(ctx, ch, StreamItem{Chunk: chunk}) {
			return
		}
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (*canonical.FinalResponse, error) {
	headers, body := FormatOpenAI(c.cfg.APIKey, model, messages, modelArgs, false)
	resp, err := doPost(ctx, c.cfg, headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	var wire openAIWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apierr.New(502, "decoding openai response: "+err.Error())
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

func (c *OpenAIClient) OriginalStreamChat(ctx context.Context, headers map[string]string, body map[string]any) (<-chan OriginalItem, error) {
	return originalStreamChat(ctx, c.cfg, headers, body)
}

func (c *OpenAIClient) OriginalChat(ctx context.Context, headers map[string]string, body map[string]any) (map[string]any, error) {
	return originalChat(ctx, c.cfg, headers, body)
}
