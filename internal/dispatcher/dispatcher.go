// Package dispatcher implements spec.md §4.4: request validation, model-name
// resolution (direct vs. composite), construction of upstream clients
// against the persisted configuration, and the cancellation registry keyed
// by chat id.
package dispatcher

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/deepgate/deepgate/internal/apierr"
	"github.com/deepgate/deepgate/internal/canonical"
	"github.com/deepgate/deepgate/internal/composite"
	"github.com/deepgate/deepgate/internal/store"
	"github.com/deepgate/deepgate/internal/upstream"
)

// Dispatcher owns the shared TCP pool and the cancellation registry; both
// are safe for concurrent use across in-flight chats (spec.md §5).
type Dispatcher struct {
	repo store.Repository

	mu        sync.Mutex
	transport *http.Transport
	pool      PoolSettings
	cancels   map[string]context.CancelFunc
}

func New(repo store.Repository, pool PoolSettings) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		transport: NewTransport(pool),
		pool:      pool,
		cancels:   make(map[string]context.CancelFunc),
	}
}

// RefreshTransport rebuilds the shared pool if settings differ from the
// current ones (spec.md §4.4: "rebuilt if the pool settings change"). In-
// flight requests keep using the *http.Transport value they already
// captured; only requests dispatched after the refresh see the new pool.
func (d *Dispatcher) RefreshTransport(pool PoolSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if pool == d.pool {
		return
	}
	d.transport = NewTransport(pool)
	d.pool = pool
}

// Request is the parsed, validated body of POST /v1/chat/completions.
type Request struct {
	Messages  []canonical.Message
	Model     string
	Stream    bool
	ModelType string
	ModelArgs canonical.ModelArgs
}

// ParseRequest extracts and validates the fixed fields of the incoming
// body, folding everything else into ModelArgs (spec.md §4.4 step 1).
func ParseRequest(body map[string]any) (Request, error) {
	var req Request

	rawMessages, ok := body["messages"]
	if !ok {
		return req, apierr.New(400, "messages is required")
	}
	items, ok := rawMessages.([]any)
	if !ok || len(items) == 0 {
		return req, apierr.New(400, "messages must be a non-empty array")
	}
	messages := make([]canonical.Message, 0, len(items))
	for _, raw := range items {
		m, ok := raw.(map[string]any)
		if !ok {
			return req, apierr.New(400, "each message must be an object")
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		messages = append(messages, canonical.Message{Role: role, Content: content})
	}
	req.Messages = messages

	model, ok := body["model"].(string)
	if !ok || model == "" {
		return req, apierr.New(400, "model is required")
	}
	req.Model = model

	if v, ok := body["stream"].(bool); ok {
		req.Stream = v
	}
	if v, ok := body["model_type"].(string); ok {
		req.ModelType = v
	}

	args := make(canonical.ModelArgs)
	for k, v := range body {
		switch k {
		case "messages", "model", "stream", "model_type":
			continue
		}
		args[k] = v
	}
	req.ModelArgs = args

	return req, nil
}

// ResultKind discriminates the four shapes ProcessRequest can return.
type ResultKind int

const (
	KindFinal ResultKind = iota
	KindStream
	KindOriginFinal
	KindOriginStream
)

// Result is the outcome of ProcessRequest; exactly one field matching Kind
// is populated.
type Result struct {
	Kind         ResultKind
	ChatID       string
	Path         string // "direct" or "composite", for metrics labeling
	Format       string // provider format of the (first, for composite) upstream
	Final        *canonical.FinalResponse
	Stream       <-chan upstream.StreamItem
	OriginFinal  map[string]any
	OriginStream <-chan upstream.OriginalItem
}

// ProcessRequest resolves the model, builds the necessary upstream
// client(s), and dispatches (spec.md §4.4 steps 2-5).
func (d *Dispatcher) ProcessRequest(ctx context.Context, req Request) (*Result, error) {
	resolved, err := d.resolveModel(ctx, req.Model, req.ModelType)
	if err != nil {
		return nil, err
	}

	chatID, chatCtx := d.registerNewChat()

	if resolved.composite != nil {
		return d.dispatchComposite(ctx, chatCtx, chatID, req, resolved.composite)
	}
	return d.dispatchDirect(ctx, chatCtx, chatID, req, resolved.model)
}

func (d *Dispatcher) dispatchDirect(callerCtx, chatCtx context.Context, chatID string, req Request, model *store.Model) (*Result, error) {
	provider, err := d.repo.GetProvider(callerCtx, model.ProviderID)
	if err != nil {
		d.deregister(chatID)
		return nil, translateStoreErr(err)
	}

	client, err := d.buildClient(callerCtx, *provider)
	if err != nil {
		d.deregister(chatID)
		return nil, err
	}

	params := upstream.Params{IsOriginReasoning: model.OriginReasoning}

	if model.OriginOutput {
		headers, body := client.FormatData(provider.APIKey, model.ModelID, req.Messages, req.ModelArgs, req.Stream)
		if req.Stream {
			stream, err := client.OriginalStreamChat(chatCtx, headers, body)
			if err != nil {
				d.deregister(chatID)
				return nil, err
			}
			return &Result{Kind: KindOriginStream, ChatID: chatID, Path: "direct", Format: string(provider.Format), OriginStream: d.wrapOriginal(chatID, stream)}, nil
		}
		defer d.deregister(chatID)
		final, err := client.OriginalChat(chatCtx, headers, body)
		if err != nil {
			return nil, err
		}
		return &Result{Kind: KindOriginFinal, ChatID: chatID, Path: "direct", Format: string(provider.Format), OriginFinal: final}, nil
	}

	if req.Stream {
		stream, err := client.StreamChat(chatCtx, chatID, req.Messages, model.ModelID, req.ModelArgs, params)
		if err != nil {
			d.deregister(chatID)
			return nil, err
		}
		return &Result{Kind: KindStream, ChatID: chatID, Path: "direct", Format: string(provider.Format), Stream: d.wrapStream(chatID, stream)}, nil
	}
	defer d.deregister(chatID)
	final, err := client.Chat(chatCtx, chatID, req.Messages, model.ModelID, req.ModelArgs, params)
	if err != nil {
		return nil, err
	}
	return &Result{Kind: KindFinal, ChatID: chatID, Path: "direct", Format: string(provider.Format), Final: final}, nil
}

func (d *Dispatcher) dispatchComposite(callerCtx, chatCtx context.Context, chatID string, req Request, comp *store.Composite) (*Result, error) {
	reasonerModel, err := d.repo.GetModel(callerCtx, comp.ReasonerModelID)
	if err != nil || !reasonerModel.Valid {
		d.deregister(chatID)
		return nil, apierr.New(400, fmt.Sprintf("composite %q references an invalid reasoner model", req.Model))
	}
	generalModel, err := d.repo.GetModel(callerCtx, comp.GeneralModelID)
	if err != nil || !generalModel.Valid {
		d.deregister(chatID)
		return nil, apierr.New(400, fmt.Sprintf("composite %q references an invalid target model", req.Model))
	}

	reasonerProvider, err := d.repo.GetProvider(callerCtx, reasonerModel.ProviderID)
	if err != nil {
		d.deregister(chatID)
		return nil, translateStoreErr(err)
	}
	generalProvider, err := d.repo.GetProvider(callerCtx, generalModel.ProviderID)
	if err != nil {
		d.deregister(chatID)
		return nil, translateStoreErr(err)
	}

	reasonerClient, err := d.buildClient(callerCtx, *reasonerProvider)
	if err != nil {
		d.deregister(chatID)
		return nil, err
	}
	generalClient, err := d.buildClient(callerCtx, *generalProvider)
	if err != nil {
		d.deregister(chatID)
		return nil, err
	}

	orchestrator := composite.New(reasonerClient, generalClient)
	stream, err := orchestrator.StreamChat(chatCtx, chatID, req.Messages, req.ModelArgs, composite.Params{
		ReasoningModel:  reasonerModel.ModelID,
		TargetModel:     generalModel.ModelID,
		ReasoningParams: upstream.Params{IsOriginReasoning: reasonerModel.OriginReasoning},
		TargetParams:    upstream.Params{IsOriginReasoning: generalModel.OriginReasoning},
	})
	if err != nil {
		d.deregister(chatID)
		return nil, err
	}

	// Composite responses are always streamed regardless of the caller's
	// requested stream value (spec.md §4.4 step 5).
	return &Result{Kind: KindStream, ChatID: chatID, Path: "composite", Format: string(reasonerProvider.Format), Stream: d.wrapStream(chatID, stream)}, nil
}

// InFlightCount reports the number of chats currently registered for
// cancellation, for the /metrics in-flight-streams gauge.
func (d *Dispatcher) InFlightCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cancels)
}

// CancelRequest implements spec.md §4.4's cancel_request: it fires the
// registered cancellation signal if one exists and reports whether it did.
// Deregistration happens on the stream's own completion path, not here.
func (d *Dispatcher) CancelRequest(chatID string) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[chatID]
	d.mu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

func (d *Dispatcher) registerNewChat() (chatID string, ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		id := fmt.Sprintf("chatcmpl-%x", time.Now().UnixMicro())
		if _, exists := d.cancels[id]; exists {
			continue
		}
		chatCtx, cancel := context.WithCancel(context.Background())
		d.cancels[id] = cancel
		return id, chatCtx
	}
}

func (d *Dispatcher) deregister(chatID string) {
	d.mu.Lock()
	delete(d.cancels, chatID)
	d.mu.Unlock()
}

func (d *Dispatcher) wrapStream(chatID string, in <-chan upstream.StreamItem) <-chan upstream.StreamItem {
	out := make(chan upstream.StreamItem)
	go func() {
		defer close(out)
		defer d.deregister(chatID)
		for item := range in {
			out <- item
		}
	}()
	return out
}

func (d *Dispatcher) wrapOriginal(chatID string, in <-chan upstream.OriginalItem) <-chan upstream.OriginalItem {
	out := make(chan upstream.OriginalItem)
	go func() {
		defer close(out)
		defer d.deregister(chatID)
		for item := range in {
			out <- item
		}
	}()
	return out
}

func translateStoreErr(err error) error {
	if err == store.ErrNotFound {
		return apierr.New(400, "referenced record no longer exists")
	}
	return apierr.Wrap(500, err)
}
