// internal/runner/runner.go

// Package runner wires one scenario run: it opens a browser session for the
// configured driver, builds the screens over it, runs the orchestrator and
// releases the session on every exit path.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/browser/cdp"
	"github.com/xkilldash9x/zonecheck/internal/browser/pw"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/interact"
	"github.com/xkilldash9x/zonecheck/internal/scenario"
	"github.com/xkilldash9x/zonecheck/internal/screens"
)

// Runner executes the scenario against a real browser.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	launcher browser.Launcher
	now      func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithLauncher replaces the driver selected by configuration.
func WithLauncher(l browser.Launcher) Option {
	return func(r *Runner) { r.launcher = l }
}

// WithClock replaces time.Now for polygon and report names.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New returns a Runner for cfg.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) (*Runner, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("cannot initialize runner with nil dependencies")
	}
	r := &Runner{cfg: cfg, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.launcher == nil {
		l, err := NewLauncher(cfg.Browser.Driver, logger)
		if err != nil {
			return nil, err
		}
		r.launcher = l
	}
	return r, nil
}

// NewLauncher returns the launcher of the named driver.
func NewLauncher(driver string, logger *zap.Logger) (browser.Launcher, error) {
	switch driver {
	case config.DriverChromedp:
		return cdp.NewLauncher(logger), nil
	case config.DriverPlaywright:
		return pw.NewLauncher(logger), nil
	}
	return nil, fmt.Errorf("unknown browser driver %q", driver)
}

// SessionOptions maps browser configuration onto session options.
func SessionOptions(cfg *config.Config) browser.Options {
	b := cfg.Browser
	return browser.Options{
		Launch: browser.LaunchOptions{
			Engine:   b.Engine,
			Headless: b.Headless,
			SlowMo:   b.SlowMo,
			Args:     b.Args,
			ExecPath: b.ExecPath,
			Install:  b.Install,
			Timeout:  b.DefaultTimeout,
		},
		Context: browser.ContextOptions{
			Viewport:        browser.Viewport{Width: b.Viewport.Width, Height: b.Viewport.Height},
			AcceptDownloads: true,
			DownloadsDir:    cfg.Paths.Downloads,
			DefaultTimeout:  b.DefaultTimeout,
		},
	}
}

// Run executes the scenario once. The error reports failures outside the
// scenario itself, such as a browser that would not start; scenario failures
// are in the verdict.
func (r *Runner) Run(ctx context.Context) (scenario.Verdict, error) {
	runID := uuid.NewString()
	logger := r.logger.Named("runner").With(zap.String("run_id", runID))

	jsonl, reportPath, err := scenario.CreateJSONLReporter(r.cfg.Paths.Reports, runID, r.now())
	if err != nil {
		return scenario.Verdict{}, err
	}
	defer func() {
		if err := jsonl.Close(); err != nil {
			logger.Warn("Failed to write run report.", zap.String("path", reportPath), zap.Error(err))
		}
	}()
	reporter := scenario.MultiReporter{scenario.NewLogReporter(r.logger), jsonl}

	var verdict scenario.Verdict
	err = browser.WithSession(ctx, r.launcher, SessionOptions(r.cfg), r.logger, func(ctx context.Context, s *browser.Session) error {
		orch, err := r.orchestrator(s.Page(), reporter, runID)
		if err != nil {
			return err
		}
		verdict = orch.Run(ctx)
		return nil
	})
	if err != nil {
		if verdict.RunID != "" {
			// The scenario ran; only the release failed.
			logger.Warn("Browser session did not close cleanly.", zap.Error(err))
			return verdict, nil
		}
		return scenario.Verdict{}, fmt.Errorf("browser session: %w", err)
	}
	logger.Info("Run report written.", zap.String("path", reportPath))
	return verdict, nil
}

func (r *Runner) orchestrator(page browser.Page, reporter scenario.Reporter, runID string) (*scenario.Orchestrator, error) {
	cfg := r.cfg
	var opts []interact.Option
	// Playwright paces itself through its own slow-mo launch option.
	if cfg.Browser.Driver == config.DriverChromedp {
		opts = append(opts, interact.WithPacing(cfg.Browser.SlowMo))
	}
	in := interact.New(page, cfg.Interaction, cfg.Paths, r.logger, opts...)

	return scenario.New(scenario.Screens{
		SignIn:  screens.NewSignIn(in, cfg.App, r.logger),
		Home:    screens.NewHome(in, r.logger),
		Stores:  screens.NewStoreList(in, r.logger),
		Details: screens.NewStoreDetails(in, r.logger),
		Form:    screens.NewPolygonForm(in, cfg.Scenario, r.logger),
	}, in, reporter, scenario.Options{
		RunID:           runID,
		Credentials:     cfg.Credentials,
		Scenario:        cfg.Scenario,
		CoordinatesPath: cfg.CoordinatesPath(),
		Now:             r.now,
	}, r.logger)
}
