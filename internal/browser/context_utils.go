// internal/browser/context_utils.go
package browser

import (
	"context"
	"time"
)

// CombineContext derives a context from primary (keeping its values, such as the
// chromedp target) that is also canceled when op is canceled. If op carries a
// deadline, the combined context inherits it too, so per-action timeouts set by
// callers reach the driver.
func CombineContext(primary, op context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(primary)
	if deadline, ok := op.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		combinedCtx, cancelDeadline = context.WithDeadline(combinedCtx, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}

	go func() {
		select {
		case <-op.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the parent's values but drops its deadline and
// cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled when
// ctx is. Session release runs on a detached context so an interrupted run still
// closes its browser.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}

// RemainingOr returns the time left before ctx's deadline, or fallback when ctx
// has none. Never negative.
func RemainingOr(ctx context.Context, fallback time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return fallback
	}
	if d := time.Until(deadline); d > 0 {
		return d
	}
	return 0
}
