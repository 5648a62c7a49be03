// Package browsertest provides an in-memory browser.Page for tests. Tests
// script it as a tiny application: they register elements under locators and
// attach hooks that mutate the page when elements are clicked or filled.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/geometry"
)

// Element is one scripted node. Fields may be changed by hooks at any time.
type Element struct {
	Text    string
	Inner   string
	Value   string
	Visible bool
	Enabled bool
	Box     geometry.Rect
	Files   []string

	// AvailableAt delays the element's appearance in the document.
	AvailableAt time.Time

	OnClick func()
	OnFill  func(value string)
	OnPress func(key string)
	OnFiles func(paths []string)

	id      int
	removed bool
}

// Call is one recorded page operation.
type Call struct {
	Op      string
	Locator string
	Arg     string
}

// Page is a scripted browser.Page. The zero value is not usable; call NewPage.
type Page struct {
	mu         sync.Mutex
	url        string
	generation int
	nextID     int
	elements   map[string][]*Element
	calls      []Call
	mouse      []geometry.Point
	download   *Download
	closed     bool

	// NetworkIdleDelay makes WaitNetworkIdle block this long.
	NetworkIdleDelay time.Duration
	NetworkIdleErr   error
	ScreenshotErr    error
	// OnNavigate runs after the URL changes.
	OnNavigate func(url string)
	// OnMouseClick runs for every raw mouse click.
	OnMouseClick func(p geometry.Point)
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{url: "about:blank", elements: make(map[string][]*Element)}
}

// NewElement returns a visible, enabled element with the given text.
func NewElement(text string) *Element {
	return &Element{Text: text, Visible: true, Enabled: true, Box: geometry.Rect{Width: 100, Height: 20}}
}

func key(loc browser.Locator) string {
	return loc.Nth(0).String()
}

// Add appends elements to the matches of loc and returns the first one added.
func (p *Page) Add(loc browser.Locator, els ...*Element) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(loc)
	for _, el := range els {
		p.nextID++
		el.id = p.nextID
		el.removed = false
		p.elements[k] = append(p.elements[k], el)
	}
	if len(els) == 0 {
		return nil
	}
	return els[0]
}

// Remove detaches every element matching loc.
func (p *Page) Remove(loc browser.Locator) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := key(loc)
	for _, el := range p.elements[k] {
		el.removed = true
	}
	delete(p.elements, k)
}

// Lookup returns the registered elements for loc, present or not.
func (p *Page) Lookup(loc browser.Locator) []*Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Element(nil), p.elements[key(loc)]...)
}

// SetURL changes the URL without navigation hooks.
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// EmitDownload makes data available to a pending Download call.
func (p *Page) EmitDownload(name string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.download = &Download{name: name, data: data}
}

// Calls returns a copy of the recorded operations.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// CallsFor returns recorded operations with the given name.
func (p *Page) CallsFor(op string) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// MouseClicks returns the raw mouse clicks in order.
func (p *Page) MouseClicks() []geometry.Point {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]geometry.Point(nil), p.mouse...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type handle struct {
	el         *Element
	generation int
	desc       string
}

func (h *handle) Describe() string { return h.desc }

func (p *Page) record(op string, loc browser.Locator, arg string) {
	p.calls = append(p.calls, Call{Op: op, Locator: loc.String(), Arg: arg})
}

func (p *Page) present(k string) []*Element {
	now := time.Now()
	var out []*Element
	for _, el := range p.elements[k] {
		if !el.removed && !now.Before(el.AvailableAt) {
			out = append(out, el)
		}
	}
	return out
}

// find resolves loc under the lock.
func (p *Page) find(loc browser.Locator) (*Element, error) {
	if p.closed {
		return nil, browser.ErrClosed
	}
	if loc.IsHandle() {
		h, ok := loc.Element().(*handle)
		if !ok {
			return nil, fmt.Errorf("%w: foreign handle %s", browser.ErrUnsupported, loc)
		}
		if h.el.removed || h.generation != p.generation {
			return nil, fmt.Errorf("%w: %s", browser.ErrStale, loc)
		}
		return h.el, nil
	}
	matches := p.present(key(loc))
	if loc.Index() >= len(matches) || loc.Index() < 0 {
		return nil, fmt.Errorf("%w: %s", browser.ErrNoMatch, loc)
	}
	return matches[loc.Index()], nil
}

func (p *Page) actionable(loc browser.Locator) (*Element, error) {
	el, err := p.find(loc)
	if err != nil {
		return nil, err
	}
	if !el.Visible || !el.Enabled {
		return nil, fmt.Errorf("%w: %s", browser.ErrNotInteractable, loc)
	}
	return el, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrClosed
	}
	p.url = url
	p.generation++
	p.record("navigate", browser.Locator{}, url)
	hook := p.OnNavigate
	p.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", browser.ErrClosed
	}
	return p.url, nil
}

func (p *Page) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	p.mu.Lock()
	delay, err := p.NetworkIdleDelay, p.NetworkIdleErr
	p.record("network_idle", browser.Locator{}, "")
	p.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (p *Page) Count(ctx context.Context, loc browser.Locator) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, browser.ErrClosed
	}
	return len(p.present(key(loc))), nil
}

func (p *Page) Resolve(ctx context.Context, loc browser.Locator) (browser.Element, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(loc)
	if err != nil {
		return nil, err
	}
	return &handle{el: el, generation: p.generation, desc: fmt.Sprintf("fake#%d", el.id)}, nil
}

func (p *Page) ScrollIntoView(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.find(loc); err != nil {
		return err
	}
	p.record("scroll", loc, "")
	return nil
}

func (p *Page) Click(ctx context.Context, loc browser.Locator) error {
	p.mu.Lock()
	el, err := p.actionable(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.record("click", loc, "")
	hook := el.OnClick
	p.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, loc browser.Locator, value string) error {
	p.mu.Lock()
	el, err := p.actionable(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	el.Value = value
	p.record("fill", loc, value)
	hook := el.OnFill
	p.mu.Unlock()
	if hook != nil {
		hook(value)
	}
	return nil
}

func (p *Page) Press(ctx context.Context, loc browser.Locator, key string) error {
	p.mu.Lock()
	el, err := p.actionable(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.record("press", loc, key)
	hook := el.OnPress
	p.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return nil
}

func (p *Page) SetInputFiles(ctx context.Context, loc browser.Locator, paths ...string) error {
	p.mu.Lock()
	el, err := p.find(loc)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	el.Files = append([]string(nil), paths...)
	p.record("set_files", loc, fmt.Sprint(paths))
	hook := el.OnFiles
	p.mu.Unlock()
	if hook != nil {
		hook(paths)
	}
	return nil
}

func (p *Page) TextContent(ctx context.Context, loc browser.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(loc)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (p *Page) InnerText(ctx context.Context, loc browser.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(loc)
	if err != nil {
		return "", err
	}
	if el.Inner != "" {
		return el.Inner, nil
	}
	return el.Text, nil
}

func (p *Page) IsVisible(ctx context.Context, loc browser.Locator) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(loc)
	if err != nil {
		if p.closed {
			return false, browser.ErrClosed
		}
		if loc.IsHandle() {
			return false, err
		}
		return false, nil
	}
	return el.Visible, nil
}

func (p *Page) IsEnabled(ctx context.Context, loc browser.Locator) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(loc)
	if err != nil {
		return false, err
	}
	return el.Enabled, nil
}

func (p *Page) BoundingBox(ctx context.Context, loc browser.Locator) (geometry.Rect, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	el, err := p.find(loc)
	if err != nil {
		return geometry.Rect{}, err
	}
	return el.Box, nil
}

func (p *Page) MouseClick(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return browser.ErrClosed
	}
	pt := geometry.Point{X: x, Y: y}
	p.mouse = append(p.mouse, pt)
	p.record("mouse_click", browser.Locator{}, fmt.Sprintf("%.2f,%.2f", x, y))
	hook := p.OnMouseClick
	p.mu.Unlock()
	if hook != nil {
		hook(pt)
	}
	return nil
}

func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, browser.ErrClosed
	}
	if p.ScreenshotErr != nil {
		return nil, p.ScreenshotErr
	}
	p.record("screenshot", browser.Locator{}, "")
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

// Download runs trigger and returns the download emitted through EmitDownload,
// waiting for it until ctx is done.
func (p *Page) Download(ctx context.Context, trigger func(context.Context) error) (browser.Download, error) {
	p.mu.Lock()
	p.download = nil
	p.mu.Unlock()

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	for {
		p.mu.Lock()
		d := p.download
		p.download = nil
		p.mu.Unlock()
		if d != nil {
			return d, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: no download started: %v", browser.ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return browser.ErrClosed
	}
	p.closed = true
	return nil
}

// Download is an in-memory download.
type Download struct {
	name string
	data []byte
}

func (d *Download) SuggestedFilename() string { return d.name }

func (d *Download) SaveAs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, d.data, 0o644)
}

var _ browser.Page = (*Page)(nil)
