// internal/browser/cdp/netidle.go
package cdp

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// idleTracker counts in-flight requests of a tab from network events.
type idleTracker struct {
	logger *zap.Logger

	tabCtx         context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

func newIdleTracker(tabCtx context.Context, logger *zap.Logger) *idleTracker {
	return &idleTracker{
		logger:       logger.Named("netidle"),
		tabCtx:       tabCtx,
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

// Start subscribes to network events and enables the network domain.
func (t *idleTracker) Start() error {
	t.listenerCtx, t.cancelListener = context.WithCancel(t.tabCtx)
	chromedp.ListenTarget(t.listenerCtx, t.handle)
	if err := chromedp.Run(t.tabCtx, network.Enable()); err != nil {
		t.cancelListener()
		return err
	}
	return nil
}

// Stop detaches the listener.
func (t *idleTracker) Stop() {
	if t.cancelListener != nil {
		t.cancelListener()
	}
}

func (t *idleTracker) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		// Redirects reuse the request ID, so the entry is simply refreshed.
		t.touch(func() { t.inflight[e.RequestID] = struct{}{} })
	case *network.EventLoadingFinished:
		t.touch(func() { delete(t.inflight, e.RequestID) })
	case *network.EventLoadingFailed:
		t.touch(func() { delete(t.inflight, e.RequestID) })
	}
}

func (t *idleTracker) touch(update func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	update()
	t.lastActivity = time.Now()
}

func (t *idleTracker) snapshot() (int, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), t.lastActivity
}

// WaitNetworkIdle polls until no request has been in flight for quiet.
func (t *idleTracker) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	if quiet <= 0 {
		quiet = 500 * time.Millisecond
	}
	ticker := time.NewTicker(quiet / 5)
	defer ticker.Stop()

	for {
		inflight, last := t.snapshot()
		if inflight == 0 && time.Since(last) >= quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			t.logger.Debug("WaitNetworkIdle aborted.", zap.Int("inflight_requests", inflight), zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
