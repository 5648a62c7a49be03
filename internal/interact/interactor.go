// internal/interact/interactor.go
package interact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/geometry"
)

// State is an element state WaitFor can block on.
type State string

const (
	StateVisible  State = "visible"
	StateHidden   State = "hidden"
	StateAttached State = "attached"
	StateDetached State = "detached"
)

// Interactor executes actions against locators on one page, with the implicit
// settle wait, bounded polling and timeout policy every screen relies on. It
// never retries a failed action; a timeout fails the calling step.
type Interactor struct {
	page    browser.Page
	logger  *zap.Logger
	timing  config.InteractionConfig
	paths   config.PathsConfig
	limiter *rate.Limiter
	now     func() time.Time
}

// Option customizes an Interactor.
type Option func(*Interactor)

// WithPacing spaces browser actions at least interval apart, like a slow-motion
// setting. Zero disables pacing.
func WithPacing(interval time.Duration) Option {
	return func(i *Interactor) {
		if interval > 0 {
			i.limiter = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithClock replaces time.Now, for deterministic artifact names in tests.
func WithClock(now func() time.Time) Option {
	return func(i *Interactor) { i.now = now }
}

// New returns an Interactor over page. The page is borrowed, not owned.
func New(page browser.Page, timing config.InteractionConfig, paths config.PathsConfig, logger *zap.Logger, opts ...Option) *Interactor {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Interactor{
		page:    page,
		logger:  logger.Named("interact"),
		timing:  timing,
		paths:   paths,
		limiter: rate.NewLimiter(rate.Inf, 1),
		now:     time.Now,
	}
	if i.timing.PollInterval <= 0 {
		i.timing.PollInterval = 100 * time.Millisecond
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Page exposes the underlying page surface.
func (i *Interactor) Page() browser.Page { return i.page }

// Timing returns the configured timeouts.
func (i *Interactor) Timing() config.InteractionConfig { return i.timing }

func (i *Interactor) orAction(timeout time.Duration) time.Duration {
	if timeout > 0 {
		return timeout
	}
	return i.timing.ActionTimeout
}

// Navigate loads url and waits for the network to settle.
func (i *Interactor) Navigate(ctx context.Context, url string) error {
	navCtx := ctx
	if i.timing.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, i.timing.NavigationTimeout)
		defer cancel()
	}
	i.logger.Debug("Navigating.", zap.String("url", url))
	if err := i.page.Navigate(navCtx, url); err != nil {
		if ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return Wrap(ActionTimeout, "navigate", browser.Locator{}, fmt.Sprintf("%s did not load within %s", url, i.timing.NavigationTimeout), err)
		}
		return classify("navigate", browser.Locator{}, err)
	}
	i.Settle(ctx)
	return nil
}

// CurrentURL returns the page URL.
func (i *Interactor) CurrentURL(ctx context.Context) (string, error) {
	u, err := i.page.URL(ctx)
	if err != nil {
		return "", classify("url", browser.Locator{}, err)
	}
	return u, nil
}

// Settle waits for network idle, then the fixed settle delay. Both are bounded;
// a settle that does not finish is logged and the action proceeds, since the
// action's own timeout decides whether the step fails.
func (i *Interactor) Settle(ctx context.Context) {
	if i.timing.NetworkIdleTimeout > 0 {
		idleCtx, cancel := context.WithTimeout(ctx, i.timing.NetworkIdleTimeout)
		err := i.page.WaitNetworkIdle(idleCtx, i.timing.NetworkIdleQuiet)
		cancel()
		if err != nil && ctx.Err() == nil {
			i.logger.Debug("Network did not go idle before the action.", zap.Error(err))
		}
	}
	if i.timing.SettleDelay > 0 {
		t := time.NewTimer(i.timing.SettleDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
}

func (i *Interactor) pace(ctx context.Context) error {
	if err := i.limiter.Wait(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Resolve translates loc into a live element as of now. It does not wait.
func (i *Interactor) Resolve(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	el, err := i.page.Resolve(ctx, loc)
	if err != nil {
		return nil, classify("resolve", loc, err)
	}
	return el, nil
}

// Count returns the number of current matches of loc.
func (i *Interactor) Count(ctx context.Context, loc browser.Locator) (int, error) {
	n, err := i.page.Count(ctx, loc)
	if err != nil {
		return 0, classify("count", loc, err)
	}
	return n, nil
}

// Click settles the page, then clicks loc once it is interactable. It fails with
// ActionTimeout when that does not happen within timeout (zero means the
// configured action timeout). The timeout window opens after the settle, which
// is bounded on its own by NetworkIdleTimeout plus SettleDelay.
func (i *Interactor) Click(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	i.Settle(ctx)
	return i.act(ctx, "click", loc, i.orAction(timeout), func(ctx context.Context) error {
		return i.page.Click(ctx, loc)
	})
}

// Fill settles the page, then replaces the value of loc with text.
func (i *Interactor) Fill(ctx context.Context, loc browser.Locator, text string, timeout time.Duration) error {
	i.Settle(ctx)
	return i.act(ctx, "fill", loc, i.orAction(timeout), func(ctx context.Context) error {
		return i.page.Fill(ctx, loc, text)
	})
}

// Press sends key to loc, e.g. "Enter" to submit a search box.
func (i *Interactor) Press(ctx context.Context, loc browser.Locator, key string, timeout time.Duration) error {
	return i.act(ctx, "press", loc, i.orAction(timeout), func(ctx context.Context) error {
		return i.page.Press(ctx, loc, key)
	})
}

// UploadFile attaches the local file at path to the file input loc.
func (i *Interactor) UploadFile(ctx context.Context, loc browser.Locator, path string, timeout time.Duration) error {
	info, err := os.Stat(path)
	if err != nil {
		return Wrap(InvalidArgument, "upload", loc, fmt.Sprintf("cannot read %s", path), err)
	}
	if info.IsDir() {
		return NewError(InvalidArgument, "upload", loc, fmt.Sprintf("%s is a directory", path))
	}
	return i.attached(ctx, "upload", loc, i.orAction(timeout), func(ctx context.Context) error {
		return i.page.SetInputFiles(ctx, loc, path)
	})
}

// ClickAt clicks the viewport at (x, y).
func (i *Interactor) ClickAt(ctx context.Context, p geometry.Point) error {
	if err := i.pace(ctx); err != nil {
		return err
	}
	if err := i.page.MouseClick(ctx, p.X, p.Y); err != nil {
		return classify("mouse_click", browser.Locator{}, err)
	}
	return nil
}

// BoundingBox returns the viewport box of loc, waiting for it to be attached.
func (i *Interactor) BoundingBox(ctx context.Context, loc browser.Locator, timeout time.Duration) (geometry.Rect, error) {
	var box geometry.Rect
	err := i.attached(ctx, "bounding_box", loc, i.orAction(timeout), func(ctx context.Context) error {
		var err error
		box, err = i.page.BoundingBox(ctx, loc)
		return err
	})
	return box, err
}

// act runs one interaction against loc inside its own timeout window: wait for
// a match, scroll it into view, perform do. Missing or not yet actionable
// elements are polled until the window closes.
func (i *Interactor) act(ctx context.Context, op string, loc browser.Locator, timeout time.Duration, do func(context.Context) error) error {
	if err := i.pace(ctx); err != nil {
		return err
	}
	return i.poll(ctx, op, loc, timeout, func(actx context.Context) error {
		if err := i.page.ScrollIntoView(actx, loc); err != nil {
			return err
		}
		return do(actx)
	})
}

// attached is act without scrolling, for operations on possibly hidden
// elements such as file inputs.
func (i *Interactor) attached(ctx context.Context, op string, loc browser.Locator, timeout time.Duration, do func(context.Context) error) error {
	if err := i.pace(ctx); err != nil {
		return err
	}
	return i.poll(ctx, op, loc, timeout, do)
}

func (i *Interactor) poll(ctx context.Context, op string, loc browser.Locator, timeout time.Duration, attempt func(context.Context) error) error {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		err := attempt(actx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return classify(op, loc, err)
		}
		lastErr = err
		if actx.Err() != nil {
			break
		}
		if !i.sleep(actx) {
			break
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	i.logger.Debug("Action timed out.", zap.String("op", op), zap.Stringer("locator", loc), zap.Duration("timeout", timeout), zap.Error(lastErr))
	return Wrap(ActionTimeout, op, loc, fmt.Sprintf("element not interactable within %s", timeout), lastErr)
}

// sleep waits one poll interval. It reports false when ctx ended first.
func (i *Interactor) sleep(ctx context.Context) bool {
	t := time.NewTimer(i.timing.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// WaitFor blocks until loc reaches state, or fails with WaitTimeout after
// timeout (zero means the configured visibility timeout).
func (i *Interactor) WaitFor(ctx context.Context, loc browser.Locator, state State, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = i.timing.VisibilityTimeout
	}
	check, err := i.stateCheck(loc, state)
	if err != nil {
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var lastErr error
	for {
		ok, err := check(wctx)
		if err == nil && ok {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !retryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			return classify("wait_for", loc, err)
		}
		lastErr = err
		if wctx.Err() != nil || !i.sleep(wctx) {
			break
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return Wrap(WaitTimeout, "wait_for", loc, fmt.Sprintf("element not %s within %s", state, timeout), lastErr)
}

func (i *Interactor) stateCheck(loc browser.Locator, state State) (func(context.Context) (bool, error), error) {
	gone := func(err error) bool {
		return errors.Is(err, browser.ErrNoMatch) || errors.Is(err, browser.ErrStale)
	}
	switch state {
	case StateVisible:
		return func(ctx context.Context) (bool, error) {
			return i.page.IsVisible(ctx, loc)
		}, nil
	case StateHidden:
		return func(ctx context.Context) (bool, error) {
			v, err := i.page.IsVisible(ctx, loc)
			if gone(err) {
				return true, nil
			}
			return !v, err
		}, nil
	case StateAttached:
		return func(ctx context.Context) (bool, error) {
			_, err := i.page.Resolve(ctx, loc)
			return err == nil, err
		}, nil
	case StateDetached:
		return func(ctx context.Context) (bool, error) {
			_, err := i.page.Resolve(ctx, loc)
			if gone(err) {
				return true, nil
			}
			return false, err
		}, nil
	default:
		return nil, NewError(InvalidArgument, "wait_for", loc, fmt.Sprintf("unknown state %q", state))
	}
}

// ReadText returns the trimmed text content of loc, or "" when it has none.
func (i *Interactor) ReadText(ctx context.Context, loc browser.Locator) (string, error) {
	text, err := i.page.TextContent(ctx, loc)
	if err != nil {
		return "", classify("read_text", loc, err)
	}
	return strings.TrimSpace(text), nil
}

// ReadInnerText returns the rendered text of loc with its line structure.
func (i *Interactor) ReadInnerText(ctx context.Context, loc browser.Locator) (string, error) {
	text, err := i.page.InnerText(ctx, loc)
	if err != nil {
		return "", classify("read_inner_text", loc, err)
	}
	return text, nil
}

// IsVisible reports whether loc becomes visible within timeout (zero means the
// configured visibility timeout).
//
// This is a best-effort check: resolution failures, driver errors and timeouts
// all yield false and are only logged. Use WaitFor or AssertVisible when absence
// must fail the step.
func (i *Interactor) IsVisible(ctx context.Context, loc browser.Locator, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = i.timing.VisibilityTimeout
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		visible, err := i.page.IsVisible(vctx, loc)
		if err == nil && visible {
			return true
		}
		if err != nil && !retryable(err) && !errors.Is(err, context.DeadlineExceeded) {
			i.logger.Debug("Visibility check failed.", zap.Stringer("locator", loc), zap.Error(err))
			return false
		}
		if vctx.Err() != nil || !i.sleep(vctx) {
			return false
		}
	}
}

// IsEnabled reports whether loc is enabled right now.
func (i *Interactor) IsEnabled(ctx context.Context, loc browser.Locator) (bool, error) {
	enabled, err := i.page.IsEnabled(ctx, loc)
	if err != nil {
		return false, classify("is_enabled", loc, err)
	}
	return enabled, nil
}

// AssertVisible fails with AssertionFailure when loc is not visible within the
// visibility timeout.
func (i *Interactor) AssertVisible(ctx context.Context, loc browser.Locator) error {
	if i.IsVisible(ctx, loc, 0) {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return NewError(AssertionFailure, "assert_visible", loc, fmt.Sprintf("expected element to be visible within %s", i.timing.VisibilityTimeout))
}

// AssertContainsText fails with AssertionFailure when the text of loc does not
// contain text within the visibility timeout.
func (i *Interactor) AssertContainsText(ctx context.Context, loc browser.Locator, text string) error {
	actx, cancel := context.WithTimeout(ctx, i.timing.VisibilityTimeout)
	defer cancel()

	var actual string
	var lastErr error
	for {
		got, err := i.page.TextContent(actx, loc)
		if err == nil {
			actual = got
			if strings.Contains(got, text) {
				return nil
			}
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if actx.Err() != nil || !i.sleep(actx) {
			break
		}
	}
	if lastErr != nil {
		return Wrap(AssertionFailure, "assert_contains_text", loc, fmt.Sprintf("expected text containing %q, element unreadable", text), lastErr)
	}
	return NewError(AssertionFailure, "assert_contains_text", loc, fmt.Sprintf("expected text containing %q, got %q", text, strings.TrimSpace(actual)))
}

// AssertTrue fails with AssertionFailure carrying a formatted description when
// cond is false.
func AssertTrue(cond bool, op, format string, args ...any) error {
	if cond {
		return nil
	}
	return Errorf(AssertionFailure, op, fmt.Sprintf(format, args...))
}

// Pause blocks for d, or until ctx is done.
func (i *Interactor) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Eventually polls cond until it holds or timeout elapses (zero means the
// configured visibility timeout). Like IsVisible it never fails.
func (i *Interactor) Eventually(ctx context.Context, timeout time.Duration, cond func(context.Context) bool) bool {
	if timeout <= 0 {
		timeout = i.timing.VisibilityTimeout
	}
	ectx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for {
		if cond(ectx) {
			return true
		}
		if ectx.Err() != nil || !i.sleep(ectx) {
			return false
		}
	}
}
