package grid

import (
	"math"

	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/raster"
)

// DefaultScale is the device pixel ratio used when none is given.
const DefaultScale = 3

// rainbowRadiusRatio is the corner radius of a rainbow cell relative to its size.
const rainbowRadiusRatio = 0.22

// Cell is one painted cell, positioned relative to the grid origin.
type Cell struct {
	Index  int
	Row    int
	Col    int
	X      float64
	Y      float64
	Passed bool
	Color  string
}

// Cells lists every cell of the grid in paint order.
func Cells(spec Spec, pal palette.Palette) []Cell {
	if spec.PerRow <= 0 || spec.Total <= 0 {
		return nil
	}
	step := spec.CellSize + spec.Gap
	cells := make([]Cell, spec.Total)
	for i := range cells {
		row, col := i/spec.PerRow, i%spec.PerRow
		c := Cell{
			Index:  i,
			Row:    row,
			Col:    col,
			X:      float64(col) * step,
			Y:      float64(row) * step,
			Passed: spec.IsPassed(i),
		}
		switch {
		case !c.Passed:
			c.Color = pal.Empty
		case spec.Style == StyleRainbow:
			c.Color = pal.RainbowAt(i)
		default:
			c.Color = pal.Filled
		}
		cells[i] = c
	}
	return cells
}

// Draw paints the grid onto s with its top-left corner at (x, y).
// Colors that fail to parse are painted in the empty color.
func Draw(s *raster.Surface, spec Spec, pal palette.Palette, x, y float64) {
	if s == nil || s.Degraded() {
		return
	}
	empty := palette.ParseOr(pal.Empty, palette.MustParse(palette.ClassicEmpty))
	size := spec.CellSize
	radius := math.Max(1, size*rainbowRadiusRatio)

	for _, c := range Cells(spec, pal) {
		fill := palette.ParseOr(c.Color, empty)
		cx, cy := x+c.X, y+c.Y
		if spec.Style == StyleRainbow {
			s.FillRoundedRect(cx, cy, size, size, radius, fill)
			continue
		}
		s.FillCircle(cx+size/2, cy+size/2, size/2, fill)
	}
}

// RenderOption configures [Render].
type RenderOption func(*renderConfig)

type renderConfig struct {
	scale      float64
	scaleSet   bool
	background string
}

// WithScale sets the device pixel ratio. It must be at least 1.
func WithScale(scale float64) RenderOption {
	return func(c *renderConfig) {
		c.scale = scale
		c.scaleSet = true
	}
}

// WithBackground sets the fill behind the grid. The empty string leaves the
// surface transparent.
func WithBackground(hex string) RenderOption {
	return func(c *renderConfig) { c.background = hex }
}

// Render draws the grid onto a new surface sized to the grid. The surface
// background defaults to the palette background.
func Render(spec Spec, pal palette.Palette, opts ...RenderOption) (*raster.Surface, error) {
	pal = pal.OrClassic()
	cfg := renderConfig{scale: DefaultScale, background: pal.Background}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.scaleSet && !(cfg.scale >= 1) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "scale must be at least 1, got %g", cfg.scale)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := pal.Validate(); err != nil {
		return nil, err
	}

	w, h := spec.Size()
	s := raster.New(w, h, cfg.scale)
	if cfg.background != "" {
		bg, err := palette.Parse(cfg.background)
		if err != nil {
			return nil, err
		}
		s.Fill(bg)
	}
	Draw(s, spec, pal, 0, 0)
	return s, nil
}
