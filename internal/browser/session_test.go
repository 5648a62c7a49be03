// internal/browser/session_test.go
package browser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// closeLog records the order in which levels were closed.
type closeLog struct{ order []string }

type mockLauncher struct {
	mock.Mock
}

func (m *mockLauncher) Launch(ctx context.Context, opts LaunchOptions) (Process, error) {
	args := m.Called(ctx, opts)
	p, _ := args.Get(0).(Process)
	return p, args.Error(1)
}

type mockProcess struct {
	mock.Mock
	log *closeLog
}

func (m *mockProcess) NewContext(ctx context.Context, opts ContextOptions) (BrowsingContext, error) {
	args := m.Called(ctx, opts)
	c, _ := args.Get(0).(BrowsingContext)
	return c, args.Error(1)
}

func (m *mockProcess) Close() error {
	m.log.order = append(m.log.order, "process")
	return m.Called().Error(0)
}

type mockBrowsingContext struct {
	mock.Mock
	log *closeLog
}

func (m *mockBrowsingContext) NewPage(ctx context.Context) (Page, error) {
	args := m.Called(ctx)
	p, _ := args.Get(0).(Page)
	return p, args.Error(1)
}

func (m *mockBrowsingContext) Close() error {
	m.log.order = append(m.log.order, "context")
	return m.Called().Error(0)
}

// closingPage satisfies Page for lifecycle tests; only Close is exercised.
type closingPage struct {
	Page
	log      *closeLog
	closeErr error
}

func (p *closingPage) Close() error {
	p.log.order = append(p.log.order, "page")
	return p.closeErr
}

type sessionFixture struct {
	log      *closeLog
	launcher *mockLauncher
	process  *mockProcess
	bctx     *mockBrowsingContext
	page     *closingPage
}

func newSessionFixture() *sessionFixture {
	log := &closeLog{}
	f := &sessionFixture{
		log:      log,
		launcher: &mockLauncher{},
		process:  &mockProcess{log: log},
		bctx:     &mockBrowsingContext{log: log},
		page:     &closingPage{log: log},
	}
	f.launcher.On("Launch", mock.Anything, mock.Anything).Return(f.process, nil)
	f.process.On("NewContext", mock.Anything, mock.Anything).Return(f.bctx, nil)
	f.process.On("Close").Return(nil)
	f.bctx.On("NewPage", mock.Anything).Return(f.page, nil)
	f.bctx.On("Close").Return(nil)
	return f
}

func testOptions() Options {
	return Options{
		Launch:  LaunchOptions{Engine: "chromium", Headless: true},
		Context: ContextOptions{Viewport: Viewport{Width: 1366, Height: 768}, AcceptDownloads: true},
	}
}

func TestAcquireAndRelease(t *testing.T) {
	f := newSessionFixture()
	s, err := Acquire(context.Background(), f.launcher, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Same(t, f.page, s.Page())

	require.NoError(t, s.Release())
	assert.Equal(t, []string{"page", "context", "process"}, f.log.order)

	// Releasing twice does not close anything twice.
	require.NoError(t, s.Release())
	assert.Len(t, f.log.order, 3)

	f.launcher.AssertCalled(t, "Launch", mock.Anything, testOptions().Launch)
	f.process.AssertCalled(t, "NewContext", mock.Anything, testOptions().Context)
}

func TestAcquire_PartialFailureReleasesAcquiredLevels(t *testing.T) {
	log := &closeLog{}
	launcher := &mockLauncher{}
	process := &mockProcess{log: log}
	bctx := &mockBrowsingContext{log: log}

	launcher.On("Launch", mock.Anything, mock.Anything).Return(process, nil)
	process.On("NewContext", mock.Anything, mock.Anything).Return(bctx, nil)
	process.On("Close").Return(nil)
	bctx.On("NewPage", mock.Anything).Return(nil, errors.New("tab crashed"))
	bctx.On("Close").Return(nil)

	s, err := Acquire(context.Background(), launcher, testOptions(), zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Contains(t, err.Error(), "opening page: tab crashed")
	assert.Equal(t, []string{"context", "process"}, log.order)
}

func TestAcquire_LaunchFailure(t *testing.T) {
	launcher := &mockLauncher{}
	launcher.On("Launch", mock.Anything, mock.Anything).Return(nil, errors.New("no chrome"))

	_, err := Acquire(context.Background(), launcher, testOptions(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launching browser: no chrome")
}

func TestRelease_ClosesEveryLevelDespiteErrors(t *testing.T) {
	f := newSessionFixture()
	f.page.closeErr = errors.New("page gone")
	f.bctx.ExpectedCalls = nil
	f.bctx.On("NewPage", mock.Anything).Return(f.page, nil)
	f.bctx.On("Close").Return(ErrClosed)

	s, err := Acquire(context.Background(), f.launcher, testOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)

	err = s.Release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closing page: page gone")
	assert.NotContains(t, err.Error(), "browsing context", "already-closed levels are not errors")
	assert.Equal(t, []string{"page", "context", "process"}, f.log.order)
}

func TestWithSession(t *testing.T) {
	t.Run("releases after success", func(t *testing.T) {
		f := newSessionFixture()
		err := WithSession(context.Background(), f.launcher, testOptions(), zaptest.NewLogger(t), func(ctx context.Context, s *Session) error {
			assert.NotNil(t, s.Page())
			assert.Empty(t, f.log.order, "nothing is closed while fn runs")
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"page", "context", "process"}, f.log.order)
	})

	t.Run("releases after failure and keeps the original error", func(t *testing.T) {
		f := newSessionFixture()
		f.process.ExpectedCalls = nil
		f.process.On("NewContext", mock.Anything, mock.Anything).Return(f.bctx, nil)
		f.process.On("Close").Return(errors.New("kill failed"))

		boom := errors.New("step failed")
		err := WithSession(context.Background(), f.launcher, testOptions(), zaptest.NewLogger(t), func(ctx context.Context, s *Session) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NotContains(t, err.Error(), "kill failed")
		assert.Len(t, f.log.order, 3)
	})

	t.Run("releases after panic", func(t *testing.T) {
		f := newSessionFixture()
		assert.Panics(t, func() {
			_ = WithSession(context.Background(), f.launcher, testOptions(), zaptest.NewLogger(t), func(ctx context.Context, s *Session) error {
				panic("driver bug")
			})
		})
		assert.Equal(t, []string{"page", "context", "process"}, f.log.order)
	})
}
