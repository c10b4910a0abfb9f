// Package stream handles SSE writing for both the canonical streaming shape
// and the origin_output=true verbatim pass-through path.
package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/deepgate/deepgate/internal/upstream"
)

// ---------------------------------------------------------------------------
// SSE Writer — canonical path
// ---------------------------------------------------------------------------

// Write reads upstream.StreamItems from the channel and writes them to the
// http.ResponseWriter as OpenAI-compatible Server-Sent Events. Each item's
// Chunk is already the canonical wire shape (internal/canonical), so this is
// a straight marshal-and-flush loop, not a translation.
//
// This is the consumer side of the streaming pipeline:
//
//	upstream/composite goroutine → channel → Write() → http.ResponseWriter → client
func Write(w http.ResponseWriter, items <-chan upstream.StreamItem) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support flushing (http.Flusher)")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for item := range items {
		if item.Err != nil {
			log.Printf("stream error: %v", item.Err)
			// Headers are already sent, so the best we can do in SSE is
			// stop sending events — the client detects this by never
			// seeing the "data: [DONE]" sentinel.
			return item.Err
		}

		jsonBytes, err := json.Marshal(item.Chunk)
		if err != nil {
			return fmt.Errorf("marshaling SSE chunk: %w", err)
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", jsonBytes); err != nil {
			return fmt.Errorf("writing SSE event: %w", err)
		}
		flusher.Flush()
	}

	if _, err := fmt.Fprintf(w, "data: [DONE]\n\n"); err != nil {
		return fmt.Errorf("writing SSE done marker: %w", err)
	}
	flusher.Flush()

	return nil
}

// ---------------------------------------------------------------------------
// SSE Writer — origin_output=true verbatim path
// ---------------------------------------------------------------------------

// WriteOriginal forwards each raw upstream line unchanged, followed by a
// blank line. The upstream client hands over every line the Framer yields
// (data, event and blank separator lines alike), unparsed — the whole point
// of origin_output is that the gateway never touches the payload.
func WriteOriginal(w http.ResponseWriter, items <-chan upstream.OriginalItem) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("response writer does not support flushing (http.Flusher)")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for item := range items {
		if item.Err != nil {
			log.Printf("origin stream error: %v", item.Err)
			return item.Err
		}
		if _, err := fmt.Fprintf(w, "%s\n\n", item.Line); err != nil {
			return fmt.Errorf("writing origin SSE line: %w", err)
		}
		flusher.Flush()
	}

	return nil
}
