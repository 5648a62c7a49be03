// internal/browser/cdp/page.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/geometry"
)

// handle is an element registered in the page's handle registry.
type handle struct {
	id   int
	desc string
}

func (h *handle) Describe() string { return fmt.Sprintf("cdp#%d(%s)", h.id, h.desc) }

// Page drives one chromedp tab.
type Page struct {
	ctx       context.Context
	cancel    context.CancelFunc
	ownsTab   bool
	logger    *zap.Logger
	idle      *idleTracker
	downloads *downloadTracker

	closeOnce sync.Once
	closed    chan struct{}
}

var _ browser.Page = (*Page)(nil)

func newPage(tabCtx context.Context, cancel context.CancelFunc, ownsTab bool, downloadsDir string, logger *zap.Logger) (*Page, error) {
	p := &Page{
		ctx:     tabCtx,
		cancel:  cancel,
		ownsTab: ownsTab,
		logger:  logger.Named("cdp_page"),
		closed:  make(chan struct{}),
	}
	p.idle = newIdleTracker(tabCtx, p.logger)
	if err := p.idle.Start(); err != nil {
		return nil, fmt.Errorf("failed to enable network tracking: %w", err)
	}
	if downloadsDir != "" {
		p.downloads = newDownloadTracker(tabCtx, downloadsDir, p.logger)
		if err := p.downloads.Start(); err != nil {
			p.idle.Stop()
			return nil, fmt.Errorf("failed to enable downloads: %w", err)
		}
	}
	return p, nil
}

// run executes actions on the tab, bounded by ctx.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	select {
	case <-p.closed:
		return browser.ErrClosed
	default:
	}
	if p.ctx.Err() != nil {
		return browser.ErrClosed
	}
	runCtx, cancel := browser.CombineContext(p.ctx, ctx)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if p.ctx.Err() != nil {
		return browser.ErrClosed
	}
	return mapError(err)
}

// mapError folds protocol errors raised while a document is being replaced
// into ErrNoMatch, so callers poll instead of failing.
func mapError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Execution context was destroyed"),
		strings.Contains(msg, "Cannot find context with specified id"),
		strings.Contains(msg, "Inspected target navigated or closed"):
		return fmt.Errorf("%w: %v", browser.ErrNoMatch, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", browser.ErrTimeout, err)
	}
	return err
}

// eval runs one engine operation and converts in-band failures to errors.
func (p *Page) eval(ctx context.Context, loc browser.Locator, op string, arg any) (engineResult, error) {
	var res engineResult
	expr, err := expression(loc, op, arg)
	if err != nil {
		return res, err
	}
	if err := p.run(ctx, chromedp.Evaluate(expr, &res)); err != nil {
		return res, err
	}
	if res.OK {
		return res, nil
	}
	switch res.Code {
	case codeNoMatch:
		return res, fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	case codeStale:
		return res, fmt.Errorf("%w: %s: %s", browser.ErrStale, loc, res.Message)
	case codeNotInteractable:
		return res, fmt.Errorf("%w: %s: %s", browser.ErrNotInteractable, loc, res.Message)
	case codeInvalid:
		return res, fmt.Errorf("invalid locator %s: %s", loc, res.Message)
	default:
		return res, fmt.Errorf("query engine failed for %s: %s %s", loc, res.Code, res.Message)
	}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var u string
	if err := p.run(ctx, chromedp.Location(&u)); err != nil {
		return "", err
	}
	return u, nil
}

func (p *Page) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	return p.idle.WaitNetworkIdle(ctx, quiet)
}

func (p *Page) Count(ctx context.Context, loc browser.Locator) (int, error) {
	res, err := p.eval(ctx, loc, "count", nil)
	return res.Count, err
}

func (p *Page) Resolve(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	res, err := p.eval(ctx, loc, "handle", nil)
	if err != nil {
		return nil, err
	}
	return &handle{id: res.IDs[0], desc: loc.String()}, nil
}

func (p *Page) ScrollIntoView(ctx context.Context, loc browser.Locator) error {
	_, err := p.eval(ctx, loc, "scroll", nil)
	return err
}

// Click presses and releases the left button over the element's center, so
// the page receives trusted events.
func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	res, err := p.eval(ctx, loc, "point", nil)
	if err != nil {
		return err
	}
	return p.run(ctx, chromedp.MouseClickXY(res.X, res.Y))
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, value string) error {
	if _, err := p.eval(ctx, loc, "clear", nil); err != nil {
		return err
	}
	if value != "" {
		if err := p.run(ctx, input.InsertText(value)); err != nil {
			return err
		}
	}
	_, err := p.eval(ctx, loc, "commit", nil)
	return err
}

var namedKeys = map[string]string{
	"Enter":      kb.Enter,
	"Tab":        kb.Tab,
	"Escape":     kb.Escape,
	"Backspace":  kb.Backspace,
	"Delete":     kb.Delete,
	"ArrowDown":  kb.ArrowDown,
	"ArrowUp":    kb.ArrowUp,
	"ArrowLeft":  kb.ArrowLeft,
	"ArrowRight": kb.ArrowRight,
}

func (p *Page) Press(ctx context.Context, loc browser.Locator, key string) error {
	if _, err := p.eval(ctx, loc, "focus", nil); err != nil {
		return err
	}
	if k, ok := namedKeys[key]; ok {
		key = k
	}
	return p.run(ctx, chromedp.KeyEvent(key))
}

func (p *Page) SetInputFiles(ctx context.Context, loc browser.Locator, paths ...string) error {
	expr, err := expression(loc, "element", nil)
	if err != nil {
		return err
	}
	var obj *runtime.RemoteObject
	if err := p.run(ctx, chromedp.Evaluate(expr, &obj)); err != nil {
		return err
	}
	if obj == nil || obj.ObjectID == "" {
		return fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	defer func() {
		if err := p.run(browser.Detach(ctx), runtime.ReleaseObject(obj.ObjectID)); err != nil {
			p.logger.Debug("Failed to release remote object.", zap.Error(err))
		}
	}()
	return p.run(ctx, dom.SetFileInputFiles(paths).WithObjectID(obj.ObjectID))
}

func (p *Page) TextContent(ctx context.Context, loc browser.Locator) (string, error) {
	res, err := p.eval(ctx, loc, "text", nil)
	return res.Text, err
}

func (p *Page) InnerText(ctx context.Context, loc browser.Locator) (string, error) {
	res, err := p.eval(ctx, loc, "inner", nil)
	return res.Text, err
}

func (p *Page) IsVisible(ctx context.Context, loc browser.Locator) (bool, error) {
	res, err := p.eval(ctx, loc, "visible", nil)
	return res.Bool, err
}

func (p *Page) IsEnabled(ctx context.Context, loc browser.Locator) (bool, error) {
	res, err := p.eval(ctx, loc, "enabled", nil)
	return res.Bool, err
}

func (p *Page) BoundingBox(ctx context.Context, loc browser.Locator) (geometry.Rect, error) {
	res, err := p.eval(ctx, loc, "box", nil)
	if err != nil {
		return geometry.Rect{}, err
	}
	return geometry.Rect{X: res.X, Y: res.Y, Width: res.Width, Height: res.Height}, nil
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	return p.run(ctx, chromedp.MouseClickXY(x, y))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *Page) Download(ctx context.Context, trigger func(context.Context) error) (browser.Download, error) {
	if p.downloads == nil {
		return nil, fmt.Errorf("%w: downloads are disabled for this context", browser.ErrUnsupported)
	}
	return p.downloads.Expect(ctx, trigger)
}

// Close stops the page's listeners and, for tabs it opened itself, closes the
// tab. It is idempotent.
func (p *Page) Close() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)
		p.idle.Stop()
		if p.downloads != nil {
			p.downloads.Stop()
		}
		if p.ownsTab {
			if cerr := chromedp.Cancel(p.ctx); cerr != nil && !errors.Is(cerr, context.Canceled) {
				err = cerr
			}
			p.cancel()
		}
	})
	return err
}
