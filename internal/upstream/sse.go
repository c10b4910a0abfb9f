package upstream

import (
	"context"
	"strings"
)

// sseReader drains a Framer for the line-oriented SSE wire format spec.md
// §4.2 describes: data lines prefixed "data: ", other lines (including
// "event: " and blank separators) ignored, "[DONE]" as the terminal
// sentinel.
type sseReader struct {
	framer *Framer
}

func newSSEReader(framer *Framer) *sseReader {
	return &sseReader{framer: framer}
}

// next returns the next data payload. done=true means the stream's [DONE]
// sentinel was seen (a clean, expected end). err is io.EOF when the upstream
// closed the connection without a [DONE] line, or the Framer's cancellation
// error when ctx fired mid-read.
func (r *sseReader) next(ctx context.Context) (payload string, done bool, err error) {
	for {
		line, err := r.framer.Next(ctx)
		if err != nil {
			return "", false, err
		}
		data, ok := cutDataLine(line)
		if !ok {
			continue
		}
		if data == "[DONE]" {
			return "", true, nil
		}
		if data == "" {
			continue
		}
		return data, false, nil
	}
}

func cutDataLine(line string) (string, bool) {
	const prefix = "data:"
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
}
