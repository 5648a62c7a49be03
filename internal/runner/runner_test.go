package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/browser/browsertest"
	"github.com/xkilldash9x/zonecheck/internal/browser/cdp"
	"github.com/xkilldash9x/zonecheck/internal/browser/pw"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/interact"
	"github.com/xkilldash9x/zonecheck/internal/screens/screenstest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const baseURL = "https://admin.example.test"

// fakeLauncher hands out one scripted page and records the options it saw.
type fakeLauncher struct {
	page      *browsertest.Page
	launchErr error
	launch    browser.LaunchOptions
	context   browser.ContextOptions
	closed    bool
}

func (l *fakeLauncher) Launch(_ context.Context, opts browser.LaunchOptions) (browser.Process, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	l.launch = opts
	return l, nil
}

func (l *fakeLauncher) NewContext(_ context.Context, opts browser.ContextOptions) (browser.BrowsingContext, error) {
	l.context = opts
	return fakeContext{page: l.page}, nil
}

func (l *fakeLauncher) Close() error {
	l.closed = true
	return nil
}

type fakeContext struct{ page *browsertest.Page }

func (c fakeContext) NewPage(context.Context) (browser.Page, error) { return c.page, nil }
func (c fakeContext) Close() error                                  { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	coords := filepath.Join(dir, "data", "coords.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(coords), 0o755))
	require.NoError(t, os.WriteFile(coords, []byte("latitude,longitude\n19.07,72.87\n19.08,72.88\n19.06,72.89\n"), 0o644))

	return &config.Config{
		App:         config.AppConfig{BaseURL: baseURL, LoginPath: "/login"},
		Credentials: config.CredentialsConfig{Username: screenstest.User, Password: screenstest.Password},
		Browser: config.BrowserConfig{
			Driver:         config.DriverPlaywright,
			Engine:         config.EngineChromium,
			Headless:       true,
			Viewport:       config.ViewportConfig{Width: 1280, Height: 800},
			DefaultTimeout: 5 * time.Second,
		},
		Interaction: config.InteractionConfig{
			ActionTimeout:      200 * time.Millisecond,
			LongActionTimeout:  300 * time.Millisecond,
			VisibilityTimeout:  150 * time.Millisecond,
			NetworkIdleQuiet:   time.Millisecond,
			NetworkIdleTimeout: 20 * time.Millisecond,
			PollInterval:       5 * time.Millisecond,
			DownloadTimeout:    300 * time.Millisecond,
			NavigationTimeout:  200 * time.Millisecond,
		},
		Paths: config.PathsConfig{
			Downloads:   filepath.Join(dir, "downloads"),
			Screenshots: filepath.Join(dir, "screenshots"),
			TestData:    filepath.Join(dir, "data"),
			Reports:     filepath.Join(dir, "reports"),
		},
		Scenario: config.ScenarioConfig{
			TravelTime:      30,
			MaxPromiseTime:  15,
			TravelDistance:  5000,
			FlatDeliveryFee: 40,
			StoreType:       "grocery",
			EditedDistance:  200,
			CoordinatesFile: "coords.csv",
			DrawRadius:      50,
			DrawVertices:    6,
			DrawPause:       time.Millisecond,
			FormSettle:      time.Millisecond,
		},
	}
}

func newScripted(t *testing.T, stores ...*screenstest.Store) (*fakeLauncher, *screenstest.App) {
	t.Helper()
	page := browsertest.NewPage()
	app := screenstest.New(page, baseURL, stores...)
	return &fakeLauncher{page: page}, app
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	launcher, app := newScripted(t,
		&screenstest.Store{Code: "S001", Name: "Andheri Fresh", Status: "Inactive"},
		&screenstest.Store{Code: "S002", Name: "Bandra Mart", Status: "Active"},
	)
	r, err := New(cfg, zaptest.NewLogger(t), WithLauncher(launcher))
	require.NoError(t, err)

	v, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, v.Passed, v.String())
	assert.NotEmpty(t, v.RunID)
	assert.Len(t, app.Stores()[1].Polygons, 4)

	t.Run("session options follow config", func(t *testing.T) {
		assert.True(t, launcher.launch.Headless)
		assert.Equal(t, config.EngineChromium, launcher.launch.Engine)
		assert.Equal(t, 5*time.Second, launcher.launch.Timeout)
		assert.True(t, launcher.context.AcceptDownloads)
		assert.Equal(t, cfg.Paths.Downloads, launcher.context.DownloadsDir)
		assert.Equal(t, browser.Viewport{Width: 1280, Height: 800}, launcher.context.Viewport)
	})

	t.Run("session released", func(t *testing.T) {
		assert.True(t, launcher.page.Closed())
		assert.True(t, launcher.closed)
	})

	t.Run("run report written", func(t *testing.T) {
		entries, err := os.ReadDir(cfg.Paths.Reports)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, strings.HasSuffix(entries[0].Name(), "_"+v.RunID+".jsonl"))

		data, err := os.ReadFile(filepath.Join(cfg.Paths.Reports, entries[0].Name()))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		// Started and passed per step, one attachment, one finish.
		assert.Len(t, lines, 22*2+2)
		assert.Contains(t, lines[len(lines)-1], `"passed":true`)
	})
}

func TestRunScenarioFailure(t *testing.T) {
	cfg := testConfig(t)
	launcher, _ := newScripted(t, &screenstest.Store{Code: "S001", Name: "Andheri Fresh", Status: "Inactive"})
	r, err := New(cfg, zaptest.NewLogger(t), WithLauncher(launcher))
	require.NoError(t, err)

	v, err := r.Run(context.Background())
	require.NoError(t, err, "scenario failures belong to the verdict")
	assert.False(t, v.Passed)
	assert.Equal(t, "select_first_active_store", v.FailedStep)
	assert.Equal(t, interact.PreconditionFailed, v.Kind)
	assert.True(t, launcher.page.Closed())
}

func TestRunLaunchFailure(t *testing.T) {
	cfg := testConfig(t)
	launcher := &fakeLauncher{launchErr: errors.New("no browser binary")}
	r, err := New(cfg, zaptest.NewLogger(t), WithLauncher(launcher))
	require.NoError(t, err)

	v, err := r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "no browser binary")
	assert.Empty(t, v.RunID)
}

func TestRunReportDirUnwritable(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.Paths.Reports = filepath.Join(blocker, "reports")

	launcher, _ := newScripted(t)
	r, err := New(cfg, zaptest.NewLogger(t), WithLauncher(launcher))
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, launcher.page.Calls(), "browser must not start without a report sink")
}

func TestNew(t *testing.T) {
	logger := zap.NewNop()

	_, err := New(nil, logger)
	assert.Error(t, err)

	cfg := testConfig(t)
	_, err = New(cfg, nil)
	assert.Error(t, err)

	cfg.Browser.Driver = "selenium"
	_, err = New(cfg, logger)
	assert.ErrorContains(t, err, `unknown browser driver "selenium"`)

	cfg.Browser.Driver = config.DriverPlaywright
	r, err := New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &pw.Launcher{}, r.launcher)

	cfg.Browser.Driver = config.DriverChromedp
	r, err = New(cfg, logger)
	require.NoError(t, err)
	assert.IsType(t, &cdp.Launcher{}, r.launcher)
}
