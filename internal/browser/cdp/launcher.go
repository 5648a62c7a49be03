// internal/browser/cdp/launcher.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/config"
)

const defaultLaunchTimeout = 60 * time.Second

// Launcher starts Chrome through chromedp. Only the chromium engine is
// supported.
type Launcher struct {
	logger *zap.Logger
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher returns a chromedp launcher.
func NewLauncher(logger *zap.Logger) *Launcher {
	return &Launcher{logger: logger.Named("cdp")}
}

// allocatorOptions maps launch options onto chromedp's allocator flags.
func allocatorOptions(opts browser.LaunchOptions) []chromedp.ExecAllocatorOption {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless, chromedp.DisableGPU)
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	for _, arg := range opts.Args {
		arg = strings.TrimLeft(arg, "-")
		if arg == "" {
			continue
		}
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			allocOpts = append(allocOpts, chromedp.Flag(key, true))
			continue
		}
		allocOpts = append(allocOpts, chromedp.Flag(key, value))
	}
	return allocOpts
}

// Launch starts a browser process. The process outlives ctx; ctx only bounds
// the start-up.
func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Process, error) {
	if opts.Engine != "" && opts.Engine != config.EngineChromium {
		return nil, fmt.Errorf("%w: chromedp drives chromium only, not %q", browser.ErrUnsupported, opts.Engine)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(browser.Detach(ctx), allocatorOptions(opts)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(l.logger.Sugar().Debugf),
		chromedp.WithErrorf(l.logger.Sugar().Debugf),
	)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	if err := start(ctx, browserCtx, timeout); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	l.logger.Info("Browser started.", zap.Bool("headless", opts.Headless))
	return &process{
		logger:      l.logger,
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
	}, nil
}

// start performs the first Run on a chromedp context, which allocates its
// browser or target. That Run must not carry a deadline, since chromedp ties
// the target's lifetime to it, so the wait is bounded here instead.
func start(ctx, chromedpCtx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(chromedpCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: not ready after %s", browser.ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// process is a running Chrome.
type process struct {
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

func (p *process) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.BrowsingContext, error) {
	if p.ctx.Err() != nil {
		return nil, browser.ErrClosed
	}
	tabCtx, cancel := chromedp.NewContext(p.ctx, chromedp.WithNewBrowserContext())
	timeout := browser.RemainingOr(ctx, defaultLaunchTimeout)
	if err := start(ctx, tabCtx, timeout); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(opts.Viewport.Width), int64(opts.Viewport.Height))); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	return &browsingContext{logger: p.logger, ctx: tabCtx, cancel: cancel, opts: opts}, nil
}

// Close shuts Chrome down gracefully, then kills whatever remains of the
// process and its temporary profile.
func (p *process) Close() error {
	p.closeOnce.Do(func() {
		if p.ctx.Err() != nil {
			p.allocCancel()
			return
		}
		if err := chromedp.Cancel(p.ctx); err != nil && !errors.Is(err, context.Canceled) {
			p.closeErr = err
		}
		p.cancel()
		p.allocCancel()
		p.logger.Info("Browser closed.")
	})
	return p.closeErr
}

// browsingContext is an incognito-like Chrome browser context. Its first tab is
// created along with it.
type browsingContext struct {
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	opts   browser.ContextOptions

	mu        sync.Mutex
	firstUsed bool
	closeOnce sync.Once
	closeErr  error
}

func (c *browsingContext) NewPage(ctx context.Context) (browser.Page, error) {
	if c.ctx.Err() != nil {
		return nil, browser.ErrClosed
	}
	c.mu.Lock()
	first := !c.firstUsed
	c.firstUsed = true
	c.mu.Unlock()

	downloads := ""
	if c.opts.AcceptDownloads {
		downloads = c.opts.DownloadsDir
	}
	if first {
		return newPage(c.ctx, c.cancel, false, downloads, c.logger)
	}

	tabCtx, cancel := chromedp.NewContext(c.ctx)
	if err := start(ctx, tabCtx, browser.RemainingOr(ctx, defaultLaunchTimeout)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	if c.opts.Viewport.Width > 0 && c.opts.Viewport.Height > 0 {
		if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(c.opts.Viewport.Width), int64(c.opts.Viewport.Height))); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}
	page, err := newPage(tabCtx, cancel, true, downloads, c.logger)
	if err != nil {
		cancel()
		return nil, err
	}
	return page, nil
}

// Close closes every tab of the context and disposes it.
func (c *browsingContext) Close() error {
	c.closeOnce.Do(func() {
		if c.ctx.Err() != nil {
			return
		}
		if err := chromedp.Cancel(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.closeErr = err
		}
		c.cancel()
	})
	return c.closeErr
}
