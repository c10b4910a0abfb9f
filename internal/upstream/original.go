package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/deepgate/deepgate/internal/apierr"
)

// originalStreamChat and originalChat implement the origin_output=true
// verbatim pass-through path (spec.md §4.2): headers/body are already
// formatted by the caller, and the upstream's raw SSE lines (or raw JSON
// body) are handed back without normalization. Shared by every Client
// implementation since the verbatim path doesn't differ per family.
func originalStreamChat(ctx context.Context, cfg Config, headers map[string]string, body map[string]any) (<-chan OriginalItem, error) {
	resp, err := doPost(ctx, cfg, headers, body)
	if err != nil {
		return nil, err
	}
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	ch := make(chan OriginalItem)
	go func() {
		defer close(ch)
		framer := NewFramer(resp.Body, DefaultWindowSize)
		defer framer.Close()

		for {
			line, err := framer.Next(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
					return
				}
				sendOriginalItem(ctx, ch, OriginalItem{Err: apierr.New(502, "reading upstream stream: "+err.Error())})
				return
			}
			if !sendOriginalItem(ctx, ch, OriginalItem{Line: line}) {
				return
			}
		}
	}()
	return ch, nil
}

func originalChat(ctx context.Context, cfg Config, headers map[string]string, body map[string]any) (map[string]any, error) {
	resp, err := doPost(ctx, cfg, headers, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if !isSuccess(resp.StatusCode) {
		return nil, errorFromResponse(resp)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apierr.New(502, "decoding upstream response: "+err.Error())
	}
	return out, nil
}
