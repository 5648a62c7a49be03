// internal/scenario/reporter.go
package scenario

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/zonecheck/internal/interact"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StepInfo identifies one step of the run.
type StepInfo struct {
	Index       int    `json:"index"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Reporter receives the run as a stream of events. Implementations must not
// fail the run; write errors are theirs to keep.
type Reporter interface {
	StepStarted(step StepInfo)
	StepPassed(step StepInfo, elapsed time.Duration)
	StepFailed(step StepInfo, err error, elapsed time.Duration)
	// Attachment announces a file produced by the run.
	Attachment(name, path string)
	Finished(v Verdict)
}

// LogReporter writes the event stream to a zap logger.
type LogReporter struct {
	logger *zap.Logger
}

var _ Reporter = (*LogReporter)(nil)

func NewLogReporter(logger *zap.Logger) *LogReporter {
	return &LogReporter{logger: logger.Named("report")}
}

func (r *LogReporter) StepStarted(step StepInfo) {
	r.logger.Info(fmt.Sprintf("Step %d: %s", step.Index, step.Description), zap.String("step", step.Name))
}

func (r *LogReporter) StepPassed(step StepInfo, elapsed time.Duration) {
	r.logger.Info("Step passed.", zap.String("step", step.Name), zap.Duration("elapsed", elapsed))
}

func (r *LogReporter) StepFailed(step StepInfo, err error, elapsed time.Duration) {
	r.logger.Error("Step failed.",
		zap.String("step", step.Name),
		zap.String("kind", string(interact.KindOf(err))),
		zap.Error(err),
		zap.Duration("elapsed", elapsed))
}

func (r *LogReporter) Attachment(name, path string) {
	r.logger.Info("Attachment.", zap.String("name", name), zap.String("path", path))
}

func (r *LogReporter) Finished(v Verdict) {
	fields := []zap.Field{
		zap.String("run_id", v.RunID),
		zap.Bool("passed", v.Passed),
		zap.Duration("duration", v.Duration),
		zap.Strings("artifacts", v.Artifacts),
	}
	if v.Passed {
		r.logger.Info("Scenario passed.", fields...)
		return
	}
	fields = append(fields, zap.String("failed_step", v.FailedStep), zap.String("kind", string(v.Kind)), zap.String("message", v.Message))
	r.logger.Error("Scenario failed.", fields...)
}

// Event types of the JSON-lines report.
const (
	EventStepStarted = "step_started"
	EventStepPassed  = "step_passed"
	EventStepFailed  = "step_failed"
	EventAttachment  = "attachment"
	EventFinished    = "finished"
)

// Event is one line of the JSON-lines report.
type Event struct {
	Time      time.Time `json:"time"`
	RunID     string    `json:"run_id"`
	Type      string    `json:"type"`
	Step      *StepInfo `json:"step,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Name      string    `json:"name,omitempty"`
	Path      string    `json:"path,omitempty"`
	Verdict   *Verdict  `json:"verdict,omitempty"`
}

// JSONLReporter writes one JSON event per line.
type JSONLReporter struct {
	mu    sync.Mutex
	w     io.WriteCloser
	enc   *jsoniter.Encoder
	runID string
	now   func() time.Time
	err   error
}

var _ Reporter = (*JSONLReporter)(nil)

// NewJSONLReporter takes ownership of w.
func NewJSONLReporter(w io.WriteCloser, runID string) *JSONLReporter {
	return &JSONLReporter{w: w, enc: json.NewEncoder(w), runID: runID, now: time.Now}
}

// CreateJSONLReporter creates <dir>/run_<timestamp>_<runID>.jsonl.
func CreateJSONLReporter(dir, runID string, t time.Time) (*JSONLReporter, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run_%s_%s.jsonl", t.Format(interact.TimestampLayout), runID))
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create report file %s: %w", path, err)
	}
	return NewJSONLReporter(f, runID), path, nil
}

func (r *JSONLReporter) emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	e.Time = r.now().UTC()
	e.RunID = r.runID
	r.err = r.enc.Encode(e)
}

func (r *JSONLReporter) StepStarted(step StepInfo) {
	r.emit(Event{Type: EventStepStarted, Step: &step})
}

func (r *JSONLReporter) StepPassed(step StepInfo, elapsed time.Duration) {
	r.emit(Event{Type: EventStepPassed, Step: &step, ElapsedMS: elapsed.Milliseconds()})
}

func (r *JSONLReporter) StepFailed(step StepInfo, err error, elapsed time.Duration) {
	r.emit(Event{
		Type:      EventStepFailed,
		Step:      &step,
		ElapsedMS: elapsed.Milliseconds(),
		Kind:      string(interact.KindOf(err)),
		Message:   err.Error(),
	})
}

func (r *JSONLReporter) Attachment(name, path string) {
	r.emit(Event{Type: EventAttachment, Name: name, Path: path})
}

func (r *JSONLReporter) Finished(v Verdict) {
	r.emit(Event{Type: EventFinished, Verdict: &v})
}

// Close closes the underlying writer and returns the first write error.
func (r *JSONLReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.w.Close(); err != nil && r.err == nil {
		r.err = err
	}
	return r.err
}

// MultiReporter fans every event out to each reporter in order.
type MultiReporter []Reporter

var _ Reporter = MultiReporter(nil)

func (m MultiReporter) StepStarted(step StepInfo) {
	for _, r := range m {
		r.StepStarted(step)
	}
}

func (m MultiReporter) StepPassed(step StepInfo, elapsed time.Duration) {
	for _, r := range m {
		r.StepPassed(step, elapsed)
	}
}

func (m MultiReporter) StepFailed(step StepInfo, err error, elapsed time.Duration) {
	for _, r := range m {
		r.StepFailed(step, err, elapsed)
	}
}

func (m MultiReporter) Attachment(name, path string) {
	for _, r := range m {
		r.Attachment(name, path)
	}
}

func (m MultiReporter) Finished(v Verdict) {
	for _, r := range m {
		r.Finished(v)
	}
}
