package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/zonecheck/internal/interact"
	"github.com/xkilldash9x/zonecheck/internal/screens"
)

// screenMock is embedded by every screen mock.
type screenMock struct {
	mock.Mock
	name string
}

func (m *screenMock) Name() string { return m.name }

func (m *screenMock) IsDisplayed(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

type mockSignIn struct{ screenMock }

func (m *mockSignIn) Open(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockSignIn) SignIn(ctx context.Context, user, secret string) error {
	return m.Called(ctx, user, secret).Error(0)
}

type mockHome struct{ screenMock }

func (m *mockHome) NavigateToStores(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockHome) Logout(ctx context.Context) error           { return m.Called(ctx).Error(0) }

type mockStores struct{ screenMock }

func (m *mockStores) SelectFirstActiveStore(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type mockDetails struct{ screenMock }

func (m *mockDetails) ClickCreatePolygon(ctx context.Context) error { return m.Called(ctx).Error(0) }

func (m *mockDetails) SearchPolygon(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockDetails) IsPolygonVisible(ctx context.Context, name string) bool {
	return m.Called(ctx, name).Bool(0)
}

func (m *mockDetails) VerifyPolygonStatus(ctx context.Context, name string, status screens.Status) error {
	return m.Called(ctx, name, status).Error(0)
}

func (m *mockDetails) SetStoreStatus(ctx context.Context, status screens.Status) error {
	return m.Called(ctx, status).Error(0)
}

func (m *mockDetails) VerifyStoreStatus(ctx context.Context, status screens.Status) error {
	return m.Called(ctx, status).Error(0)
}

func (m *mockDetails) EditPolygon(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockDetails) SetPolygonInactive(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func (m *mockDetails) VerifyPolygonTravelDistance(ctx context.Context, name string, metres int) error {
	return m.Called(ctx, name, metres).Error(0)
}

func (m *mockDetails) ExportData(ctx context.Context) (interact.Artifact, error) {
	args := m.Called(ctx)
	return args.Get(0).(interact.Artifact), args.Error(1)
}

type mockForm struct{ screenMock }

func (m *mockForm) Mode(ctx context.Context) (screens.FormMode, error) {
	args := m.Called(ctx)
	return args.Get(0).(screens.FormMode), args.Error(1)
}

func (m *mockForm) CreateQuickCommerceTravelTime(ctx context.Context, name string, minutes, maxPromise int) error {
	return m.Called(ctx, name, minutes, maxPromise).Error(0)
}

func (m *mockForm) CreateSlottedTravelDistance(ctx context.Context, name string, metres, fee int, storeType string) error {
	return m.Called(ctx, name, metres, fee, storeType).Error(0)
}

func (m *mockForm) CreateQuickCommerceFromCSV(ctx context.Context, name, csvPath string) error {
	return m.Called(ctx, name, csvPath).Error(0)
}

func (m *mockForm) CreateSlottedManualDrawing(ctx context.Context, name string, radius float64, vertices int) error {
	return m.Called(ctx, name, radius, vertices).Error(0)
}

func (m *mockForm) UpdateTravelDistance(ctx context.Context, metres int) error {
	return m.Called(ctx, metres).Error(0)
}

type mockCapturer struct{ mock.Mock }

func (m *mockCapturer) CaptureArtifact(ctx context.Context, name string) string {
	return m.Called(ctx, name).String(0)
}

// recorder is a Reporter that keeps every event in memory.
type recorder struct {
	mu          sync.Mutex
	started     []string
	passed      []string
	failed      []string
	attachments map[string]string
	verdict     *Verdict
}

func newRecorder() *recorder {
	return &recorder{attachments: make(map[string]string)}
}

func (r *recorder) StepStarted(step StepInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, step.Name)
}

func (r *recorder) StepPassed(step StepInfo, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passed = append(r.passed, step.Name)
}

func (r *recorder) StepFailed(step StepInfo, _ error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, step.Name)
}

func (r *recorder) Attachment(name, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments[name] = path
}

func (r *recorder) Finished(v Verdict) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verdict = &v
}
