// internal/browser/cdp/downloads.go
package cdp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
)

// downloadTracker lets Chrome save downloads into a staging directory under
// their GUID and reports the one a trigger starts.
type downloadTracker struct {
	logger *zap.Logger
	dir    string

	tabCtx         context.Context
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu      sync.Mutex
	names   map[string]string
	waiting chan<- downloadEvent
}

type downloadEvent struct {
	guid  string
	name  string
	begun bool
	state cdpbrowser.DownloadProgressState
}

func newDownloadTracker(tabCtx context.Context, dir string, logger *zap.Logger) *downloadTracker {
	return &downloadTracker{
		logger: logger.Named("downloads"),
		dir:    dir,
		tabCtx: tabCtx,
		names:  make(map[string]string),
	}
}

// Start allows downloads for the tab's browser context and subscribes to their
// progress events.
func (d *downloadTracker) Start() error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	d.listenerCtx, d.cancelListener = context.WithCancel(d.tabCtx)
	chromedp.ListenTarget(d.listenerCtx, d.handle)

	params := cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllowAndName).
		WithDownloadPath(d.dir).
		WithEventsEnabled(true)
	if c := chromedp.FromContext(d.tabCtx); c != nil && c.BrowserContextID != "" {
		params = params.WithBrowserContextID(c.BrowserContextID)
	}
	if err := chromedp.Run(d.tabCtx, params); err != nil {
		d.cancelListener()
		return err
	}
	return nil
}

func (d *downloadTracker) Stop() {
	if d.cancelListener != nil {
		d.cancelListener()
	}
}

func (d *downloadTracker) handle(ev any) {
	var out downloadEvent
	switch e := ev.(type) {
	case *cdpbrowser.EventDownloadWillBegin:
		out = downloadEvent{guid: e.GUID, name: e.SuggestedFilename, begun: true}
	case *cdpbrowser.EventDownloadProgress:
		if e.State != cdpbrowser.DownloadProgressStateCompleted && e.State != cdpbrowser.DownloadProgressStateCanceled {
			return
		}
		out = downloadEvent{guid: e.GUID, state: e.State}
	default:
		return
	}

	d.mu.Lock()
	if out.begun {
		d.names[out.guid] = out.name
	}
	ch := d.waiting
	d.mu.Unlock()
	if ch != nil {
		// The listener must never block; Expect buffers generously.
		select {
		case ch <- out:
		default:
			d.logger.Warn("Dropped download event.", zap.String("guid", out.guid))
		}
	}
}

// Expect runs trigger and waits for the first download that begins afterwards
// to complete.
func (d *downloadTracker) Expect(ctx context.Context, trigger func(context.Context) error) (browser.Download, error) {
	events := make(chan downloadEvent, 64)
	d.mu.Lock()
	if d.waiting != nil {
		d.mu.Unlock()
		return nil, errors.New("another download is already awaited")
	}
	d.waiting = events
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.waiting = nil
		d.mu.Unlock()
	}()

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	var guid string
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: waiting for download: %v", browser.ErrTimeout, ctx.Err())
		case ev := <-events:
			switch {
			case ev.begun && guid == "":
				guid = ev.guid
				d.logger.Debug("Download started.", zap.String("guid", guid), zap.String("name", ev.name))
			case ev.guid != guid:
			case ev.state == cdpbrowser.DownloadProgressStateCanceled:
				return nil, fmt.Errorf("download %s was canceled", ev.guid)
			case ev.state == cdpbrowser.DownloadProgressStateCompleted:
				d.mu.Lock()
				name := d.names[guid]
				delete(d.names, guid)
				d.mu.Unlock()
				return &download{path: filepath.Join(d.dir, guid), name: name}, nil
			}
		}
	}
}

// download is a completed file in the staging directory.
type download struct {
	path string
	name string
}

func (d *download) SuggestedFilename() string { return d.name }

// SaveAs moves the staged file to path, copying when a rename cannot cross
// file systems.
func (d *download) SaveAs(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.Rename(d.path, path); err == nil {
		return nil
	}
	src, err := os.Open(d.path)
	if err != nil {
		return err
	}
	defer src.Close()
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	return os.Remove(d.path)
}
