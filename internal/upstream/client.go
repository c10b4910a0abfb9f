// Package upstream implements the per-provider-family request formatters and
// HTTP clients described in spec.md §4.1/§4.2: one pure formatter plus one
// Client per wire format (reasoner, anthropic, openai), all normalizing into
// the canonical shapes in internal/canonical.
//
// Every Client shares one *http.Transport (the gateway's single TCP pool,
// owned by internal/dispatcher) and must never close it — see
// DefaultTimeout and WithProxy below for how an individual request borrows
// that pool without taking ownership of it.
package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/deepgate/deepgate/internal/canonical"
)

// DefaultTimeout matches spec.md §4.2: 600s total, 10s connect, 500s socket
// read. net/http doesn't split "connect" vs "socket read" the way aiohttp's
// ClientTimeout does, so connect and dial timeouts are enforced on the
// shared Transport (see dispatcher.NewTransport) and this value only bounds
// total request time.
const DefaultTimeout = 600 * time.Second

// DefaultWindowSize is the fixed-size read window spec.md §4.2 mandates for
// the chunked-read loop (default 8 KiB).
const DefaultWindowSize = 8192

// Params carries the per-call reasoning-mode flag. spec.md's other_params
// contract is a loosely typed map; we narrow it to the one field a client
// reads (is_origin_reasoning) since that's the only knob the
// formatter/normalizer allowlist in spec.md names. Only ReasonerClient
// consults it; the anthropic and openai clients ignore Params.
type Params struct {
	IsOriginReasoning bool
}

// StreamItem is one element of a Client.StreamChat sequence. Err is set
// exactly once, on the final item of a sequence that ended in error; a
// sequence that ends via cancellation or clean upstream EOF never sends an
// item with Err set (spec.md §5: "the canonical sequence ends without
// emitting a synthetic terminator").
type StreamItem struct {
	Chunk canonical.Chunk
	Err   error
}

// Client is the duck-typed capability set spec.md §9 calls out: every
// provider-family adapter implements all five operations, constructed by
// the dispatcher via tagged construction on Provider.Format.
type Client interface {
	// FormatData is the pure per-family request formatter (spec.md §4.1):
	// canonical inputs in, wire headers+body out. Never validates or errors.
	FormatData(apiKey, model string, messages []canonical.Message, modelArgs canonical.ModelArgs, stream bool) (map[string]string, map[string]any)

	// StreamChat performs one streaming call and normalizes the wire
	// response into canonical chunks. The returned channel is closed when
	// the upstream signals end-of-stream, when ctx is cancelled, or after
	// a fatal error (see StreamItem.Err). Not restartable.
	StreamChat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (<-chan StreamItem, error)

	// Chat performs one non-streaming call.
	Chat(ctx context.Context, chatID string, messages []canonical.Message, model string, modelArgs canonical.ModelArgs, params Params) (*canonical.FinalResponse, error)

	// OriginalStreamChat is the origin_output=true verbatim streaming path:
	// headers/body are already formatted by the caller (via FormatData),
	// and raw SSE text lines are handed back unparsed.
	OriginalStreamChat(ctx context.Context, headers map[string]string, body map[string]any) (<-chan OriginalItem, error)

	// OriginalChat is the origin_output=true verbatim non-streaming path.
	OriginalChat(ctx context.Context, headers map[string]string, body map[string]any) (map[string]any, error)
}

// OriginalItem is one raw text chunk of an origin_output=true stream.
type OriginalItem struct {
	Line string
	Err  error
}

// Config bundles what every Client constructor needs. Transport is the
// dispatcher-owned shared pool; Client implementations build their own
// *http.Client wrapping it but never call CloseIdleConnections or otherwise
// tear it down.
type Config struct {
	APIKey    string
	APIURL    string
	Transport http.RoundTripper
	Proxy     string // normalized "http://host:port", or "" for none
	Timeout   time.Duration
}

func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Transport: c.Transport, Timeout: timeout}
}
