// internal/browser/pw/launcher.go
package pw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/config"
)

const (
	installTimeout       = 5 * time.Minute
	defaultLaunchTimeout = 60 * time.Second
)

// Launcher starts browsers through the Playwright driver.
type Launcher struct {
	logger *zap.Logger
}

var _ browser.Launcher = (*Launcher)(nil)

// NewLauncher returns a Playwright launcher.
func NewLauncher(logger *zap.Logger) *Launcher {
	return &Launcher{logger: logger.Named("playwright")}
}

// Launch starts the Playwright driver and one browser of the requested engine.
func (l *Launcher) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Process, error) {
	engine := opts.Engine
	if engine == "" {
		engine = config.EngineChromium
	}
	if opts.Install {
		if err := l.ensureInstallation(ctx, engine); err != nil {
			return nil, err
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	var bt playwright.BrowserType
	switch engine {
	case config.EngineChromium:
		bt = pw.Chromium
	case config.EngineFirefox:
		bt = pw.Firefox
	case config.EngineWebKit:
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("%w: engine %q", browser.ErrUnsupported, engine)
	}

	b, err := bt.Launch(launchOptions(opts))
	if err != nil {
		// Clean up the driver if the browser does not come up.
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch %s: %w", engine, err)
	}
	l.logger.Info("Browser launched.", zap.String("engine", engine), zap.String("version", b.Version()))
	return &process{logger: l.logger, pw: pw, browser: b}, nil
}

func launchOptions(opts browser.LaunchOptions) playwright.BrowserTypeLaunchOptions {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultLaunchTimeout
	}
	lo := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Timeout:  playwright.Float(millis(timeout)),
		Args:     opts.Args,
	}
	if opts.SlowMo > 0 {
		lo.SlowMo = playwright.Float(millis(opts.SlowMo))
	}
	if opts.ExecPath != "" {
		lo.ExecutablePath = playwright.String(opts.ExecPath)
	}
	return lo
}

// ensureInstallation downloads the driver and the engine's browser if they are
// missing. Install blocks, so it runs in a goroutine bounded by ctx.
func (l *Launcher) ensureInstallation(ctx context.Context, engine string) error {
	l.logger.Info("Verifying Playwright browser installation...", zap.String("engine", engine))
	installCtx, cancel := context.WithTimeout(ctx, installTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- playwright.Install(&playwright.RunOptions{Browsers: []string{engine}})
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to install playwright browsers: %w", err)
		}
		return nil
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// process owns the Playwright driver and its browser.
type process struct {
	logger  *zap.Logger
	pw      *playwright.Playwright
	browser playwright.Browser

	closeOnce sync.Once
	closeErr  error
}

func (p *process) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.BrowsingContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	co := playwright.BrowserNewContextOptions{
		AcceptDownloads: playwright.Bool(opts.AcceptDownloads),
	}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		co.Viewport = &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height}
	}
	bc, err := p.browser.NewContext(co)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", mapError(err))
	}
	if opts.DefaultTimeout > 0 {
		bc.SetDefaultTimeout(millis(opts.DefaultTimeout))
	}
	return &browsingContext{logger: p.logger, bc: bc}, nil
}

// Close closes the browser, then stops the driver.
func (p *process) Close() error {
	p.closeOnce.Do(func() {
		var errs []error
		if err := p.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
		if err := p.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright driver: %w", err))
		}
		p.closeErr = errors.Join(errs...)
		p.logger.Info("Playwright shut down.")
	})
	return p.closeErr
}

type browsingContext struct {
	logger *zap.Logger
	bc     playwright.BrowserContext

	closeOnce sync.Once
	closeErr  error
}

func (c *browsingContext) NewPage(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pg, err := c.bc.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", mapError(err))
	}
	return &Page{page: pg, logger: c.logger.Named("page")}, nil
}

func (c *browsingContext) Close() error {
	c.closeOnce.Do(func() {
		if err := c.bc.Close(); err != nil {
			c.closeErr = mapError(err)
		}
	})
	return c.closeErr
}
