package preview

import (
	"image"
	"math"
)

// Snapshot is an immutable view of a session. Preview is shared with the
// controller and must not be modified.
type Snapshot struct {
	// Seq orders snapshots of one controller. A higher Seq was taken later
	// and supersedes any lower one, whatever order they are delivered in.
	Seq       uint64
	Open      bool
	State     State
	Params    Params
	Zoom      float64
	Exporting bool
	Preview   image.Image
	Error     string
	HasAccess bool
	// Token is the number of the most recently started preview render.
	Token uint64
}

// ZoomPercent is the zoom as a whole percentage.
func (s Snapshot) ZoomPercent() int { return int(math.Round(s.Zoom * 100)) }

// Generating reports whether a preview render is in flight.
func (s Snapshot) Generating() bool { return s.State == StateRendering }

// CanShowPrintEditor reports whether the print controls are available.
func (s Snapshot) CanShowPrintEditor() bool {
	return s.HasAccess && s.Params.Mode == ModePrint
}

// PanelTitle is the heading of the preview panel.
func (s Snapshot) PanelTitle() string {
	if s.Params.Mode == ModeDownload {
		return "Download Preview"
	}
	return "Ready for print"
}
