package screens

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/zonecheck/internal/browser/browsertest"
	"github.com/xkilldash9x/zonecheck/internal/config"
	"github.com/xkilldash9x/zonecheck/internal/interact"
	"github.com/xkilldash9x/zonecheck/internal/screens/screenstest"
)

const baseURL = "https://admin.example.test"

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	app     *screenstest.App
	page    *browsertest.Page
	in      *interact.Interactor
	dir     string
	signIn  *SignIn
	home    *Home
	stores  *StoreList
	details *StoreDetails
	form    *PolygonForm
}

func defaultStores() []*screenstest.Store {
	return []*screenstest.Store{
		{Code: "S001", Name: "Andheri Fresh", Status: "Inactive"},
		{Code: "S002", Name: "Bandra Mart", Status: "Active"},
		{Code: "S003", Name: "Colaba Express", Status: "Active"},
	}
}

func newHarness(t *testing.T, stores ...*screenstest.Store) *harness {
	t.Helper()
	dir := t.TempDir()
	timing := config.InteractionConfig{
		ActionTimeout:      200 * time.Millisecond,
		LongActionTimeout:  300 * time.Millisecond,
		VisibilityTimeout:  150 * time.Millisecond,
		NetworkIdleQuiet:   time.Millisecond,
		NetworkIdleTimeout: 20 * time.Millisecond,
		PollInterval:       5 * time.Millisecond,
		DownloadTimeout:    300 * time.Millisecond,
		NavigationTimeout:  200 * time.Millisecond,
	}
	paths := config.PathsConfig{
		Downloads:   filepath.Join(dir, "downloads"),
		Screenshots: filepath.Join(dir, "screenshots"),
	}
	logger := zaptest.NewLogger(t)
	page := browsertest.NewPage()
	app := screenstest.New(page, baseURL, stores...)
	in := interact.New(page, timing, paths, logger)
	sc := config.ScenarioConfig{DrawPause: time.Millisecond, FormSettle: time.Millisecond}
	return &harness{
		app:     app,
		page:    page,
		in:      in,
		dir:     dir,
		signIn:  NewSignIn(in, config.AppConfig{BaseURL: baseURL, LoginPath: "/login"}, logger),
		home:    NewHome(in, logger),
		stores:  NewStoreList(in, logger),
		details: NewStoreDetails(in, logger),
		form:    NewPolygonForm(in, sc, logger),
	}
}

// atStores signs in and opens the store list.
func (h *harness) atStores(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, h.signIn.Open(ctx))
	require.NoError(t, h.signIn.SignIn(ctx, screenstest.User, screenstest.Password))
	require.True(t, h.home.IsDisplayed(ctx))
	require.NoError(t, h.home.NavigateToStores(ctx))
	require.True(t, h.stores.IsDisplayed(ctx))
}

// atDetails opens the first active store.
func (h *harness) atDetails(t *testing.T, ctx context.Context) string {
	t.Helper()
	h.atStores(t, ctx)
	name, err := h.stores.SelectFirstActiveStore(ctx)
	require.NoError(t, err)
	require.True(t, h.details.IsDisplayed(ctx))
	return name
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"Active", "Inactive"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), got)
	}
	for _, s := range []string{"", "active", "Pending", "Active "} {
		_, err := ParseStatus(s)
		assert.True(t, interact.IsKind(err, interact.InvalidArgument), "status %q", s)
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("signs in and out", func(t *testing.T) {
		h := newHarness(t, defaultStores()...)
		require.NoError(t, h.signIn.Open(ctx))
		assert.True(t, h.signIn.IsDisplayed(ctx))
		assert.False(t, h.home.IsDisplayed(ctx))

		require.NoError(t, h.signIn.SignIn(ctx, screenstest.User, screenstest.Password))
		assert.True(t, h.home.IsDisplayed(ctx))
		assert.False(t, h.signIn.IsDisplayed(ctx))

		require.NoError(t, h.home.Logout(ctx))
		assert.True(t, h.signIn.IsDisplayed(ctx))
	})

	t.Run("wrong password stays on sign-in", func(t *testing.T) {
		h := newHarness(t, defaultStores()...)
		require.NoError(t, h.signIn.Open(ctx))
		require.NoError(t, h.signIn.SignIn(ctx, screenstest.User, "nope"))
		assert.False(t, h.home.IsDisplayed(ctx))
		assert.True(t, h.signIn.IsDisplayed(ctx))
	})

	t.Run("requires both url and logo", func(t *testing.T) {
		h := newHarness(t, defaultStores()...)
		require.NoError(t, h.signIn.Open(ctx))

		h.page.SetURL(baseURL + "/home")
		assert.False(t, h.signIn.IsDisplayed(ctx), "logo alone")

		h.page.SetURL(baseURL + "/login")
		h.page.Remove(signInLogo)
		assert.False(t, h.signIn.IsDisplayed(ctx), "url alone")
	})

	t.Run("open fails when the form never shows", func(t *testing.T) {
		h := newHarness(t)
		h.page.OnNavigate = nil
		err := h.signIn.Open(ctx)
		assert.True(t, interact.IsKind(err, interact.WaitTimeout), "got %v", err)
	})
}

func TestStoreList(t *testing.T) {
	ctx := context.Background()

	t.Run("selects the first active store", func(t *testing.T) {
		h := newHarness(t, defaultStores()...)
		name := h.atDetails(t, ctx)
		assert.Equal(t, "Bandra Mart", name)
		assert.Equal(t, "S002", h.app.Current().Code)
	})

	t.Run("empty filter restores the full list", func(t *testing.T) {
		h := newHarness(t, defaultStores()...)
		h.atStores(t, ctx)

		all, err := h.stores.ActiveStoreCount(ctx)
		require.NoError(t, err)
		require.Equal(t, 2, all)

		for _, q := range []string{"S003", "nothing-matches", "S00"} {
			require.NoError(t, h.stores.Search(ctx, q))
			require.NoError(t, h.stores.Search(ctx, ""))
			n, err := h.stores.ActiveStoreCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, all, n, "after filtering by %q", q)
		}
	})

	t.Run("search narrows the list", func(t *testing.T) {
		h := newHarness(t, defaultStores()...)
		h.atStores(t, ctx)
		require.NoError(t, h.stores.Search(ctx, "S003"))
		n, err := h.stores.ActiveStoreCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		name, err := h.stores.SelectFirstActiveStore(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Colaba Express", name)
	})

	t.Run("no active store is a failed precondition", func(t *testing.T) {
		h := newHarness(t, &screenstest.Store{Code: "S001", Name: "Andheri Fresh", Status: "Inactive"})
		h.atStores(t, ctx)
		clicks := len(h.page.CallsFor("click"))
		_, err := h.stores.SelectFirstActiveStore(ctx)
		assert.True(t, interact.IsKind(err, interact.PreconditionFailed), "got %v", err)
		assert.Len(t, h.page.CallsFor("click"), clicks, "nothing is clicked")
		assert.True(t, h.stores.IsDisplayed(ctx))
	})
}

func TestStoreName(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Bandra Mart\nS002\nActive", "Bandra Mart"},
		{"Active\n  Bandra Mart  \n", "Bandra Mart"},
		{"\n\nActive\n", "Active"},
		{"Single", "Single"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, storeName(tt.text), "text %q", tt.text)
	}
}
