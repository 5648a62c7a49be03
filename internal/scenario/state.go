// internal/scenario/state.go
package scenario

import (
	"time"

	"github.com/xkilldash9x/zonecheck/internal/interact"
)

// Name prefixes of the polygons created by one run, one per creation path.
const (
	PrefixQuickCommerce = "qc_polygon"
	PrefixSlotted       = "slotted_polygon"
	PrefixCSV           = "manual_csv_polygon"
	PrefixDrawing       = "manual_drawing_polygon"
)

// NewName appends a second-resolution timestamp to prefix.
func NewName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(interact.TimestampLayout)
}

// WorkflowState is what one run has learned and created so far. Only the
// orchestrator touches it.
type WorkflowState struct {
	StoreName         string
	QuickCommerceName string
	SlottedName       string
	CSVName           string
	DrawingName       string
	ExportPath        string
	// Target is the polygon the edit and deactivation steps act on.
	Target string
}

func newState(now time.Time) *WorkflowState {
	qc := NewName(PrefixQuickCommerce, now)
	return &WorkflowState{
		QuickCommerceName: qc,
		SlottedName:       NewName(PrefixSlotted, now),
		CSVName:           NewName(PrefixCSV, now),
		DrawingName:       NewName(PrefixDrawing, now),
		Target:            qc,
	}
}
