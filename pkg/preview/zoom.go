package preview

import "math"

// Preview zoom bounds and step.
const (
	MinZoom     = 0.5
	MaxZoom     = 3.0
	ZoomStep    = 0.1
	DefaultZoom = 1.0

	// toggleThreshold is the zoom at or above which a double click resets.
	toggleThreshold = 1.9
	toggleZoom      = 2.0
)

func stepZoom(z float64, steps int) float64 {
	return roundZoom(clamp(z+float64(steps)*ZoomStep, MinZoom, MaxZoom))
}

// roundZoom keeps zoom on the 0.1 grid so repeated steps do not drift.
func roundZoom(z float64) float64 {
	return math.Round(z*10) / 10
}

// ZoomIn steps the preview zoom up.
func (c *Controller) ZoomIn() { c.setZoom(func(z float64) float64 { return stepZoom(z, 1) }) }

// ZoomOut steps the preview zoom down.
func (c *Controller) ZoomOut() { c.setZoom(func(z float64) float64 { return stepZoom(z, -1) }) }

// ZoomReset returns to 100%.
func (c *Controller) ZoomReset() { c.setZoom(func(float64) float64 { return DefaultZoom }) }

// Wheel applies one wheel event: a negative delta zooms in, anything else
// zooms out. It always reports the event as consumed so the host does not
// scroll.
func (c *Controller) Wheel(deltaY float64) bool {
	dir := -1
	if deltaY < 0 {
		dir = 1
	}
	c.setZoom(func(z float64) float64 { return stepZoom(z, dir) })
	return true
}

// ToggleZoom handles a double click: back to 100% from 190% and above,
// otherwise to 200%.
func (c *Controller) ToggleZoom() {
	c.setZoom(func(z float64) float64 {
		if z >= toggleThreshold {
			return DefaultZoom
		}
		return toggleZoom
	})
}

func (c *Controller) setZoom(next func(float64) float64) {
	c.mu.Lock()
	c.zoom = next(c.zoom)
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}
