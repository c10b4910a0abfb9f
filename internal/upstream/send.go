package upstream

import "context"

// sendStreamItem writes item to ch, or gives up if ctx is cancelled first.
// Every streaming client uses this same select so a caller-cancelled context
// never leaves the goroutine blocked on a channel nobody is reading anymore.
func sendStreamItem(ctx context.Context, ch chan<- StreamItem, item StreamItem) bool {
	select {
	case ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}

// Send is the exported form of sendStreamItem, used by internal/composite to
// forward chunks from a stage's upstream Client onto the orchestrator's own
// output channel under the same cancellation discipline.
func Send(ctx context.Context, ch chan<- StreamItem, item StreamItem) bool {
	return sendStreamItem(ctx, ch, item)
}

// SendError wraps err (if any) as a terminal StreamItem and sends it.
func SendError(ctx context.Context, ch chan<- StreamItem, err error) bool {
	if err == nil {
		return true
	}
	return sendStreamItem(ctx, ch, StreamItem{Err: err})
}

func sendOriginalItem(ctx context.Context, ch chan<- OriginalItem, item OriginalItem) bool {
	select {
	case ch <- item:
		return true
	case <-ctx.Done():
		return false
	}
}
