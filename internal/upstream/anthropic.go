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

// AnthropicClient is the anthropic-family upstream client: named SSE events
// rather than a single repeated JSON shape (spec.md §4.2).
type AnthropicClient struct {
	cfg Config
}

func NewAnthropicClient(cfg Config) *AnthropicClient {
	return &AnthropicClient{cfg: cfg}
}

func (c *AnthropicClient) FormatData(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any) {
	return FormatAnthropic(apiKey, model, messages, modelArgs, stream)
}

type anthropicWireDelta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Thinking   string `json:"thinking,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

type anthropicWireUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicWireMessage struct {
	ID    string             `json:"id"`
	Role  string             `json:"role"`
	Model string             `json:"model"`
	Usage anthropicWireUsage `json:"usage"`
}

type anthropicWireEvent struct {
	Type    string                `json:"type"`
	Index   int                   `json:"index"`
	Message *anthropicWireMessage `json:"message,omitempty"`
	Delta   *anthropicWireDelta   `json:"delta,omitempty"`
	Usage   *anthropicWireUsage   `json:"usage,omitempty"`
}

func (u *anthropicWireUsage) toCanonical() *canonical.Usage {
	if u == nil {
		return nil
	}
	return &canonical.Usage{
		PromptTokens:     canonical.IntPtr(u.InputTokens),
		CompletionTokens: canonical.IntPtr(u.OutputTokens),
		TotalTokens:      canonical.IntPtr(u.InputTokens + u.OutputTokens),
	}
}

func (c *AnthropicClient) StreamChat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (<-chan StreamItem, error) {
	headers, body := FormatAnthropic(c.cfg.APIKey, model, messages, modelArgs, true)
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

func (c *AnthropicClient) streamLoop(ctx context.Context, body io.ReadCloser, chatID, model string, ch chan<- StreamItem) {
	defer close(ch)
	framer := NewFramer(body, DefaultWindowSize)
	defer framer.Close()
	reader := newSSEReader(framer)

	var (
		providerChatID string
		role           string
		usage          *canonical.Usage
	)

	for {
		data, done, err := reader.next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
				return
			}
			sendStreamItem(ctx, ch, StreamItem{Err: apierr.New(502, "reading anthropic stream: "+err.Error())})
			return
		}
		if done {
			return
		}

		var event anthropicWireEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			sendStreamItem(ctx, ch, StreamItem{Err: apierr.New(502, "decoding anthropic stream event: "+err.Error())})
			return
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				providerChatID = event.Message.ID
				role = event.Message.Role
				if event.Message.Usage != (anthropicWireUsage{}) {
					usage = event.Message.Usage.toCanonical()
				}
			}
			continue
		case "message_stop":
			return
		}

		if event.Delta == nil {
			continue
		}
		if event.Delta.Type == "input_json_delta" {
			continue
		}
		if event.Usage != nil {
			usage = event.Usage.toCanonical()
		}

		delta := canonical.Delta{
			Content:          event.Delta.Text,
			ReasoningContent: event.Delta.Thinking,
		}
		if delta.Content == "" && delta.ReasoningContent == "" && event.Delta.StopReason == "" && usage == nil {
			continue
		}
		if role != "" {
			delta.Role = role
			role = ""
		}

		var finishReason *string
		if event.Delta.StopReason != "" {
			finishReason = canonical.StringPtr(event.Delta.StopReason)
		}

		chunk := canonical.Chunk{
			ID: chatID, Object: canonical.ObjectChunk, Created: time.Now().Unix(), Model: model,
			ProviderChatID: providerChatID,
			Choices: []canonical.Choice{{
				Index:        event.Index,
				Delta:        delta,
				FinishReason: finishReason,
			}},
		}
		if finishReason != nil || event.Usage != nil {
			chunk.Usage = usage
		}
		if !sendStreamItem(ctx, ch, StreamItem{Chunk: chunk}) {
			return
		}
	}
}

func (c *AnthropicClient) Chat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (*canonical.FinalResponse, error) {
	headers, body := FormatAnthropic(c.cfg.APIKey, model, messages, modelArgs, false)
	resp, err := doPost(ctx, c.cfg, headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	var wire struct {
		ID         string               `json:"id"`
		Role       string               `json:"role"`
		StopReason string               `json:"stop_reason"`
		Content    []anthropicWireDelta `json:"content"`
		Usage      anthropicWireUsage   `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apierr.New(502, "decoding anthropic response: "+err.Error())
	}

	if len(wire.Content) == 0 {
		return nil, apierr.New(502, "anthropic response has no content blocks")
	}

	var content, reasoning string
	for _, block := range wire.Content {
		switch block.Type {
		case "text":
			content += block.Text
		case "thinking":
			reasoning += block.Thinking
		}
	}

	var finishReason *string
	if wire.StopReason != "" {
		finishReason = canonical.StringPtr(wire.StopReason)
	}

	return &canonical.FinalResponse{
		ID: chatID, Object: canonical.ObjectFinal, Created: time.Now().Unix(), Model: model,
		ProviderChatID: wire.ID,
		Choices: []canonical.FinalChoice{{
			Index: 0,
			Message: canonical.Delta{
				Role:             wire.Role,
				Content:          content,
				ReasoningContent: reasoning,
			},
			FinishReason: finishReason,
		}},
		Usage: (&wire.Usage).toCanonical(),
	}, nil
}

func (c *AnthropicClient) OriginalStreamChat(ctx context.Context, headers map[string]string, body map[string]any) (<-chan OriginalItem, error) {
	return originalStreamChat(ctx, c.cfg, headers, body)
}

func (c *AnthropicClient) OriginalChat(ctx context.Context, headers map[string]string, body map[string]any) (map[string]any, error) {
	return originalChat(ctx, c.cfg, headers, body)
}
