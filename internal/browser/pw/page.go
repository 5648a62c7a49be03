// internal/browser/pw/page.go
package pw

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/geometry"
)

// defaultOpTimeout bounds a Playwright call when ctx has no deadline.
const defaultOpTimeout = 30 * time.Second

// Page adapts a Playwright page to browser.Page.
type Page struct {
	page   playwright.Page
	logger *zap.Logger
}

var _ browser.Page = (*Page)(nil)

// handle wraps an element handle resolved from a locator.
type handle struct {
	el   playwright.ElementHandle
	desc string
}

func (h *handle) Describe() string { return "pw(" + h.desc + ")" }

// selector renders the Playwright selector for loc without its filters.
func selector(loc browser.Locator) (string, error) {
	switch loc.Strategy() {
	case browser.StrategyCSS:
		return "css=" + loc.Query(), nil
	case browser.StrategyXPath:
		return "xpath=" + loc.Query(), nil
	case browser.StrategyRole:
		role, name := loc.Role()
		if name == "" {
			return "role=" + role, nil
		}
		return fmt.Sprintf("role=%s[name=%q]", role, name), nil
	case browser.StrategyText:
		return "text=" + loc.Query(), nil
	default:
		return "", fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
}

func (p *Page) locator(loc browser.Locator) (playwright.Locator, error) {
	sel, err := selector(loc)
	if err != nil {
		return nil, err
	}
	var opts []playwright.PageLocatorOptions
	if loc.HasText() != "" {
		opts = append(opts, playwright.PageLocatorOptions{HasText: loc.HasText()})
	}
	return p.page.Locator(sel, opts...), nil
}

// timeout converts the time left on ctx into Playwright milliseconds.
func timeout(ctx context.Context) *float64 {
	ms := millis(browser.RemainingOr(ctx, defaultOpTimeout))
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

// node is the operation set shared by locators and element handles.
type node interface {
	scroll(t *float64) error
	click(t *float64) error
	fill(value string, t *float64) error
	press(key string, t *float64) error
	setFiles(paths []string, t *float64) error
	text(t *float64) (string, error)
	inner(t *float64) (string, error)
	visible() (bool, error)
	enabled(t *float64) (bool, error)
	box(t *float64) (*playwright.Rect, error)
}

type locNode struct{ l playwright.Locator }

func (n locNode) scroll(t *float64) error {
	return n.l.ScrollIntoViewIfNeeded(playwright.LocatorScrollIntoViewIfNeededOptions{Timeout: t})
}
func (n locNode) click(t *float64) error {
	return n.l.Click(playwright.LocatorClickOptions{Timeout: t})
}
func (n locNode) fill(v string, t *float64) error {
	return n.l.Fill(v, playwright.LocatorFillOptions{Timeout: t})
}
func (n locNode) press(k string, t *float64) error {
	return n.l.Press(k, playwright.LocatorPressOptions{Timeout: t})
}
func (n locNode) setFiles(paths []string, t *float64) error {
	return n.l.SetInputFiles(paths, playwright.LocatorSetInputFilesOptions{Timeout: t})
}
func (n locNode) text(t *float64) (string, error) {
	return n.l.TextContent(playwright.LocatorTextContentOptions{Timeout: t})
}
func (n locNode) inner(t *float64) (string, error) {
	return n.l.InnerText(playwright.LocatorInnerTextOptions{Timeout: t})
}
func (n locNode) visible() (bool, error) { return n.l.IsVisible() }
func (n locNode) enabled(t *float64) (bool, error) {
	return n.l.IsEnabled(playwright.LocatorIsEnabledOptions{Timeout: t})
}
func (n locNode) box(t *float64) (*playwright.Rect, error) {
	return n.l.BoundingBox(playwright.LocatorBoundingBoxOptions{Timeout: t})
}

type handleNode struct{ h playwright.ElementHandle }

func (n handleNode) scroll(t *float64) error {
	return n.h.ScrollIntoViewIfNeeded(playwright.ElementHandleScrollIntoViewIfNeededOptions{Timeout: t})
}
func (n handleNode) click(t *float64) error {
	return n.h.Click(playwright.ElementHandleClickOptions{Timeout: t})
}
func (n handleNode) fill(v string, t *float64) error {
	return n.h.Fill(v, playwright.ElementHandleFillOptions{Timeout: t})
}
func (n handleNode) press(k string, t *float64) error {
	return n.h.Press(k, playwright.ElementHandlePressOptions{Timeout: t})
}
func (n handleNode) setFiles(paths []string, t *float64) error {
	return n.h.SetInputFiles(paths, playwright.ElementHandleSetInputFilesOptions{Timeout: t})
}
func (n handleNode) text(*float64) (string, error)          { return n.h.TextContent() }
func (n handleNode) inner(*float64) (string, error)         { return n.h.InnerText() }
func (n handleNode) visible() (bool, error)                 { return n.h.IsVisible() }
func (n handleNode) enabled(*float64) (bool, error)         { return n.h.IsEnabled() }
func (n handleNode) box(*float64) (*playwright.Rect, error) { return n.h.BoundingBox() }

// resolve returns the node loc designates right now, failing with ErrNoMatch
// when a selector matches nothing.
func (p *Page) resolve(ctx context.Context, loc browser.Locator) (node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loc.IsHandle() {
		h, ok := loc.Element().(*handle)
		if !ok {
			return nil, fmt.Errorf("%w: handle %s was not resolved by playwright", browser.ErrUnsupported, loc)
		}
		return handleNode{h.el}, nil
	}
	l, err := p.locator(loc)
	if err != nil {
		return nil, err
	}
	n, err := l.Count()
	if err != nil {
		return nil, mapError(err)
	}
	if loc.Index() >= n {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	return locNode{l.Nth(loc.Index())}, nil
}

// mapError translates Playwright failures into browser errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", browser.ErrTimeout, err)
	case errors.Is(err, playwright.ErrTargetClosed),
		strings.Contains(msg, "has been closed"):
		return fmt.Errorf("%w: %v", browser.ErrClosed, err)
	case strings.Contains(msg, "not attached to the DOM"),
		strings.Contains(msg, "Element is detached"):
		return fmt.Errorf("%w: %v", browser.ErrStale, err)
	case strings.Contains(msg, "Execution context was destroyed"):
		return fmt.Errorf("%w: %v", browser.ErrNoMatch, err)
	}
	return err
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.logger.Debug("Navigating.", zap.String("url", url))
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeout(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	return mapError(err)
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.page.URL(), nil
}

// WaitNetworkIdle waits for Playwright's networkidle load state, which has a
// fixed quiet window, so quiet is not used.
func (p *Page) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeout(ctx),
	})
	return mapError(err)
}

func (p *Page) Count(ctx context.Context, loc browser.Locator) (int, error) {
	if loc.IsHandle() {
		if _, err := p.resolve(ctx, loc); err != nil {
			return 0, err
		}
		return 1, nil
	}
	l, err := p.locator(loc)
	if err != nil {
		return 0, err
	}
	n, err := l.Count()
	return n, mapError(err)
}

func (p *Page) Resolve(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	if loc.IsHandle() {
		return loc.Element(), nil
	}
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return nil, err
	}
	el, err := n.(locNode).l.ElementHandle(playwright.LocatorElementHandleOptions{Timeout: timeout(ctx)})
	if err != nil {
		return nil, mapError(err)
	}
	return &handle{el: el, desc: loc.String()}, nil
}

func (p *Page) ScrollIntoView(ctx context.Context, loc browser.Locator) error {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return err
	}
	return mapError(n.scroll(timeout(ctx)))
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return err
	}
	return mapError(n.click(timeout(ctx)))
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, value string) error {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return err
	}
	return mapError(n.fill(value, timeout(ctx)))
}

func (p *Page) Press(ctx context.Context, loc browser.Locator, key string) error {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return err
	}
	return mapError(n.press(key, timeout(ctx)))
}

func (p *Page) SetInputFiles(ctx context.Context, loc browser.Locator, paths ...string) error {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return err
	}
	return mapError(n.setFiles(paths, timeout(ctx)))
}

func (p *Page) TextContent(ctx context.Context, loc browser.Locator) (string, error) {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return "", err
	}
	s, err := n.text(timeout(ctx))
	return s, mapError(err)
}

func (p *Page) InnerText(ctx context.Context, loc browser.Locator) (string, error) {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return "", err
	}
	s, err := n.inner(timeout(ctx))
	return s, mapError(err)
}

func (p *Page) IsVisible(ctx context.Context, loc browser.Locator) (bool, error) {
	n, err := p.resolve(ctx, loc)
	if errors.Is(err, browser.ErrNoMatch) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	v, err := n.visible()
	return v, mapError(err)
}

func (p *Page) IsEnabled(ctx context.Context, loc browser.Locator) (bool, error) {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return false, err
	}
	v, err := n.enabled(timeout(ctx))
	return v, mapError(err)
}

func (p *Page) BoundingBox(ctx context.Context, loc browser.Locator) (geometry.Rect, error) {
	n, err := p.resolve(ctx, loc)
	if err != nil {
		return geometry.Rect{}, err
	}
	r, err := n.box(timeout(ctx))
	if err != nil {
		return geometry.Rect{}, mapError(err)
	}
	if r == nil {
		return geometry.Rect{}, fmt.Errorf("%w: %s has no layout box", browser.ErrNotInteractable, loc)
	}
	return geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}, nil
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(p.page.Mouse().Click(x, y))
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	buf, err := p.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeout(ctx)})
	return buf, mapError(err)
}

func (p *Page) Download(ctx context.Context, trigger func(context.Context) error) (browser.Download, error) {
	d, err := p.page.ExpectDownload(func() error {
		return trigger(ctx)
	}, playwright.PageExpectDownloadOptions{Timeout: timeout(ctx)})
	if err != nil {
		return nil, mapError(err)
	}
	return d, nil
}

func (p *Page) Close() error {
	if p.page.IsClosed() {
		return nil
	}
	return mapError(p.page.Close())
}
