// internal/browser/page.go
package browser

import (
	"context"
	"time"

	"github.com/xkilldash9x/zonecheck/internal/geometry"
)

// Page is the page surface a driver hands to the interaction layer.
//
// Element operations are single-shot: they resolve the locator once, act, and
// return. A locator that matches nothing yields an error wrapping ErrNoMatch
// straight away; waiting policy belongs to the caller. Blocking operations
// honor ctx cancellation and deadline. A Page is driven by one goroutine.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	// WaitNetworkIdle returns once no request has been in flight for quiet.
	WaitNetworkIdle(ctx context.Context, quiet time.Duration) error

	Count(ctx context.Context, loc Locator) (int, error)
	Resolve(ctx context.Context, loc Locator) (Element, error)

	ScrollIntoView(ctx context.Context, loc Locator) error
	Click(ctx context.Context, loc Locator) error
	// Fill replaces the value of an input, textarea or editable element.
	Fill(ctx context.Context, loc Locator, value string) error
	Press(ctx context.Context, loc Locator, key string) error
	SetInputFiles(ctx context.Context, loc Locator, paths ...string) error

	TextContent(ctx context.Context, loc Locator) (string, error)
	InnerText(ctx context.Context, loc Locator) (string, error)
	// IsVisible reports false, not ErrNoMatch, when nothing matches.
	IsVisible(ctx context.Context, loc Locator) (bool, error)
	IsEnabled(ctx context.Context, loc Locator) (bool, error)
	BoundingBox(ctx context.Context, loc Locator) (geometry.Rect, error)

	MouseClick(ctx context.Context, x, y float64) error
	Screenshot(ctx context.Context) ([]byte, error)
	// Download runs trigger and waits for the download it starts.
	Download(ctx context.Context, trigger func(context.Context) error) (Download, error)

	Close() error
}

// Download is a finished browser download that has not been moved yet.
type Download interface {
	SuggestedFilename() string
	SaveAs(path string) error
}

// Viewport is the fixed page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// LaunchOptions configure the browser process.
type LaunchOptions struct {
	Engine   string
	Headless bool
	SlowMo   time.Duration
	Args     []string
	ExecPath string
	// Install lets the driver fetch browser binaries it needs.
	Install bool
	Timeout time.Duration
}

// ContextOptions configure the isolated browsing context.
type ContextOptions struct {
	Viewport        Viewport
	AcceptDownloads bool
	// DownloadsDir is where the driver stages downloads before SaveAs.
	DownloadsDir   string
	DefaultTimeout time.Duration
}

// Options bundle everything needed to acquire a Session.
type Options struct {
	Launch  LaunchOptions
	Context ContextOptions
}

// Launcher starts browser processes. One implementation per driver.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Process, error)
}

// Process is a running browser. It owns the contexts it creates.
type Process interface {
	NewContext(ctx context.Context, opts ContextOptions) (BrowsingContext, error)
	Close() error
}

// BrowsingContext is an isolated cookie and storage jar. It owns its pages.
type BrowsingContext interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}
