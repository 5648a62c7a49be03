package scenario

import (
	"bufio"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/zonecheck/internal/browser"
	"github.com/xkilldash9x/zonecheck/internal/interact"
)

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func emitRun(r Reporter) {
	step := StepInfo{Index: 1, Name: "sign_in", Description: "Sign in"}
	r.StepStarted(step)
	r.StepPassed(step, 1500*time.Millisecond)
	step = StepInfo{Index: 2, Name: "home_displayed", Description: "Home screen is shown"}
	r.StepStarted(step)
	r.StepFailed(step, interact.NewError(interact.AssertionFailure, "checkpoint", browser.Locator{}, "home is not displayed"), 20*time.Millisecond)
	r.Attachment("failure_home_displayed", "/shots/failure.png")
	r.Finished(Verdict{RunID: "run-1", FailedStep: "home_displayed", Kind: interact.AssertionFailure, Message: "home is not displayed"})
}

func TestJSONLReporter(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewJSONLReporter(nopCloser{buf}, "run-1")
	r.now = func() time.Time { return testNow }
	emitRun(r)
	require.NoError(t, r.Close())

	var events []Event
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e), sc.Text())
		events = append(events, e)
	}
	require.Len(t, events, 6)

	types := make([]string, len(events))
	for i, e := range events {
		types[i] = e.Type
		assert.Equal(t, "run-1", e.RunID)
		assert.True(t, testNow.Equal(e.Time))
	}
	assert.Equal(t, []string{EventStepStarted, EventStepPassed, EventStepStarted, EventStepFailed, EventAttachment, EventFinished}, types)

	assert.Equal(t, int64(1500), events[1].ElapsedMS)
	assert.Equal(t, "home_displayed", events[3].Step.Name)
	assert.Equal(t, "assertion_failure", events[3].Kind)
	assert.Contains(t, events[3].Message, "home is not displayed")
	assert.Equal(t, "/shots/failure.png", events[4].Path)
	require.NotNil(t, events[5].Verdict)
	assert.Equal(t, "home_displayed", events[5].Verdict.FailedStep)
}

type failingWriter struct{ closed bool }

func (w *failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func (w *failingWriter) Close() error {
	w.closed = true
	return nil
}

func TestJSONLReporterKeepsFirstError(t *testing.T) {
	w := &failingWriter{}
	r := NewJSONLReporter(w, "run-1")
	emitRun(r)
	err := r.Close()
	assert.ErrorContains(t, err, "disk full")
	assert.True(t, w.closed)
}

func TestCreateJSONLReporter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	r, path, err := CreateJSONLReporter(dir, "run-1", testNow)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run_20240309_140507_run-1.jsonl"), path)

	emitRun(r)
	require.NoError(t, r.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, strings.Count(string(data), "\n"))
}

func TestLogReporter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	emitRun(NewLogReporter(zap.New(core)))

	entries := logs.All()
	require.Len(t, entries, 6)
	assert.Equal(t, "Step 1: Sign in", entries[0].Message)
	assert.Equal(t, "Step failed.", entries[3].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
	assert.Equal(t, "assertion_failure", entries[3].ContextMap()["kind"])
	assert.Equal(t, "Scenario failed.", entries[5].Message)
	assert.Equal(t, "home_displayed", entries[5].ContextMap()["failed_step"])
}

func TestMultiReporter(t *testing.T) {
	a, b := newRecorder(), newRecorder()
	emitRun(MultiReporter{a, b})
	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"sign_in", "home_displayed"}, r.started)
		assert.Equal(t, []string{"sign_in"}, r.passed)
		assert.Equal(t, []string{"home_displayed"}, r.failed)
		assert.Equal(t, "/shots/failure.png", r.attachments["failure_home_displayed"])
		require.NotNil(t, r.verdict)
	}
}
