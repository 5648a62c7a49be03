package pw

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/zonecheck/internal/browser"
)

func TestSelector(t *testing.T) {
	tests := []struct {
		loc  browser.Locator
		want string
	}{
		{browser.CSS("[data-testid='Auth_Login_index_Button']"), "css=[data-testid='Auth_Login_index_Button']"},
		{browser.XPath("//div[@id='avatarContainer']"), "xpath=//div[@id='avatarContainer']"},
		{browser.Role("textbox", "Enter Password"), `role=textbox[name="Enter Password"]`},
		{browser.Role("button", ""), "role=button"},
		{browser.Text("Log Out"), "text=Log Out"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, err := selector(tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := selector(browser.Locator{})
	assert.ErrorIs(t, err, browser.ErrNoMatch)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(fmt.Errorf("click: %w", playwright.ErrTimeout)), browser.ErrTimeout)
	assert.ErrorIs(t, mapError(errors.New("Element is not attached to the DOM")), browser.ErrStale)
	assert.ErrorIs(t, mapError(errors.New("Target page, context or browser has been closed")), browser.ErrClosed)
	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
}

func TestTimeoutFromContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ms := *timeout(ctx)
	assert.InDelta(t, 2000, ms, 100)
	assert.Equal(t, millis(defaultOpTimeout), *timeout(context.Background()))
}

func TestLaunchOptions(t *testing.T) {
	lo := launchOptions(browser.LaunchOptions{Headless: true, SlowMo: 100 * time.Millisecond, ExecPath: "/opt/chrome"})
	assert.True(t, *lo.Headless)
	assert.Equal(t, 100.0, *lo.SlowMo)
	assert.Equal(t, "/opt/chrome", *lo.ExecutablePath)
	assert.Equal(t, millis(defaultLaunchTimeout), *lo.Timeout)
}

// The browser test needs Playwright's driver and browsers installed; it runs
// only when ZONECHECK_PLAYWRIGHT_TEST is set.
func TestPageAgainstPlaywright(t *testing.T) {
	if testing.Short() || os.Getenv("ZONECHECK_PLAYWRIGHT_TEST") == "" {
		t.Skip("set ZONECHECK_PLAYWRIGHT_TEST=1 to run against a real browser")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<!doctype html><body>
<input placeholder="Search by Store Code">
<span class="badge">Active</span><span class="badge">Active</span>
<button onclick="this.textContent='done'">Go</button></body>`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()
	logger := zaptest.NewLogger(t)

	err := browser.WithSession(ctx, NewLauncher(logger), browser.Options{
		Launch:  browser.LaunchOptions{Headless: true},
		Context: browser.ContextOptions{Viewport: browser.Viewport{Width: 1024, Height: 768}},
	}, logger, func(ctx context.Context, s *browser.Session) error {
		page := s.Page()
		require.NoError(t, page.Navigate(ctx, srv.URL))

		n, err := page.Count(ctx, browser.CSS("span.badge").WithText("active"))
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		require.NoError(t, page.Fill(ctx, browser.Role("textbox", "Search by Store Code"), "S1"))
		require.NoError(t, page.Click(ctx, browser.Role("button", "Go")))
		text, err := page.TextContent(ctx, browser.CSS("button"))
		require.NoError(t, err)
		assert.Equal(t, "done", text)

		visible, err := page.IsVisible(ctx, browser.Text("missing"))
		require.NoError(t, err)
		assert.False(t, visible)
		return nil
	})
	require.NoError(t, err)
}
