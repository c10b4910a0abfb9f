// Package composite implements the two-stage orchestration described in
// spec.md §4.3: a reasoning upstream is streamed first, its reasoning trace
// is extracted and folded into a fixed prompt template, and the rewritten
// conversation is then streamed from a target upstream. Callers see both
// stages as a single canonical chunk sequence.
package composite

import (
	"context"
	"fmt"
	"strings"

	"github.com/deepgate/deepgate/internal/apierr"
	"github.com/deepgate/deepgate/internal/canonical"
	"github.com/deepgate/deepgate/internal/upstream"
)

// promptTemplate is normative (spec.md §4.3): it must be reproduced
// character-for-character, whitespace included, because prompt behavior
// depends on it.
const promptTemplate = `Here's my original input:
%s

                ******The above is user information*****
                The following is the reasoning process of another model:****
%s

 ****
                Based on this reasoning, combined with your knowledge,
                when the current reasoning conflicts with your knowledge,
                you are more confident that you can adopt your own knowledge,
                which is completely acceptable. Please provide the user with a complete answer directly.
                ***Notice, Here is your settings: SELF_TALK: off REASONING: off THINKING: off PLANNING: off THINKING_BUDGET: < 100 tokens ***:`

// Params is the other_params contract (spec.md §4.3).
type Params struct {
	ReasoningModel  string
	TargetModel     string
	ReasoningParams upstream.Params
	TargetParams    upstream.Params
}

// Orchestrator couples a reasoning upstream with a target upstream.
type Orchestrator struct {
	reasoning upstream.Client
	target    upstream.Client
}

func New(reasoning, target upstream.Client) *Orchestrator {
	return &Orchestrator{reasoning: reasoning, target: target}
}

// StreamChat runs the full Idle→Reasoning→Rewrite→Target→Done state
// machine. ctx is the caller's cancellation signal: cancelling it cascades
// to whichever upstream is currently active and ends the sequence without
// emitting further chunks. The returned channel is always closed exactly
// once, whether the sequence ends in success, failure, or cancellation.
func (o *Orchestrator) StreamChat(ctx context.Context, chatID string, messages []canonical.Message, modelArgs canonical.ModelArgs, params Params) (<-chan upstream.StreamItem, error) {
	ch := make(chan upstream.StreamItem)
	go o.run(ctx, chatID, messages, modelArgs, params, ch)
	return ch, nil
}

func (o *Orchestrator) run(ctx context.Context, chatID string, messages []canonical.Message, modelArgs canonical.ModelArgs, params Params, ch chan<- upstream.StreamItem) {
	defer close(ch)

	reasoning, cancelled := o.runReasoningStage(ctx, chatID, messages, modelArgs, params, ch)
	if cancelled {
		return
	}
	if reasoning == "" {
		upstream.SendError(ctx, ch, apierr.New(500, "no valid reasoning content"))
		return
	}

	rewritten, err := rewriteMessages(messages, reasoning)
	if err != nil {
		upstream.SendError(ctx, ch, err)
		return
	}

	if ctx.Err() != nil {
		return
	}

	o.runTargetStage(ctx, chatID, rewritten, modelArgs, params, ch)
}

// runReasoningStage drives Stage 1 (spec.md §4.3): forward every chunk
// verbatim, accumulate reasoning_content, and stop the instant a non-empty
// content fragment appears (the boundary-detection rule) — actively
// cancelling the reasoning upstream rather than waiting for it to finish on
// its own.
func (o *Orchestrator) runReasoningStage(ctx context.Context, chatID string, messages []canonical.Message, modelArgs canonical.ModelArgs, params Params, ch chan<- upstream.StreamItem) (reasoning string, cancelled bool) {
	rCtx, rCancel := context.WithCancel(context.Background())
	defer rCancel()

	stream, err := o.reasoning.StreamChat(rCtx, chatID, messages, params.ReasoningModel, modelArgs, params.ReasoningParams)
	if err != nil {
		upstream.SendError(ctx, ch, err)
		return "", true
	}

	var buf strings.Builder
	for {
		select {
		case <-ctx.Done():
			rCancel()
			return "", true
		case item, ok := <-stream:
			if ctx.Err() != nil {
				rCancel()
				return "", true
			}
			if !ok {
				return buf.String(), false
			}
			if item.Err != nil {
				if !upstream.Send(ctx, ch, item) {
					return "", true
				}
				return "", true
			}
			if !upstream.Send(ctx, ch, item) {
				rCancel()
				return "", true
			}
			boundary := false
			for _, choice := range item.Chunk.Choices {
				if choice.Delta.ReasoningContent != "" {
					buf.WriteString(choice.Delta.ReasoningContent)
				}
				if choice.Delta.Content != "" {
					boundary = true
				}
			}
			if boundary {
				rCancel()
				return buf.String(), false
			}
		}
	}
}

// runTargetStage drives Stage 3 (spec.md §4.3): forward every chunk from
// the target upstream until it ends on its own or the caller cancels.
func (o *Orchestrator) runTargetStage(ctx context.Context, chatID string, messages []canonical.Message, modelArgs canonical.ModelArgs, params Params, ch chan<- upstream.StreamItem) {
	tCtx, tCancel := context.WithCancel(context.Background())
	defer tCancel()

	stream, err := o.target.StreamChat(tCtx, chatID, messages, params.TargetModel, modelArgs, params.TargetParams)
	if err != nil {
		upstream.SendError(ctx, ch, err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			tCancel()
			return
		case item, ok := <-stream:
			if ctx.Err() != nil {
				tCancel()
				return
			}
			if !ok {
				return
			}
			if !upstream.Send(ctx, ch, item) {
				tCancel()
				return
			}
		}
	}
}

// rewriteMessages implements Stage 2 (spec.md §4.3). The last message must
// be role "user"; its content is replaced with the normative template
// folding in the accumulated reasoning trace.
func rewriteMessages(messages []canonical.Message, reasoning string) ([]canonical.Message, error) {
	if len(messages) == 0 || messages[len(messages)-1].Role != "user" {
		return nil, apierr.New(500, "no valid user message")
	}

	out := make([]canonical.Message, len(messages))
	copy(out, messages)

	last := out[len(out)-1]
	last.Content = fmt.Sprintf(promptTemplate, last.Content, reasoning)
	out[len(out)-1] = last

	return out, nil
}
