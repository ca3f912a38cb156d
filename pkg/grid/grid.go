// Package grid renders the dot grid: one cell per unit of a span, laid out
// row-major, with the first Filled cells marked as passed.
//
// [Spec] describes the grid and its geometry. [Draw] paints it onto an
// existing [raster.Surface] at a logical origin, which is how the card
// composer embeds it; [Render] produces a standalone surface sized to the
// grid alone.
//
// Two styles exist. Classic paints circles in the filled or empty color.
// Rainbow paints rounded squares and cycles passed cells through the
// palette's rainbow sequence by cell index.
package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dotspan/dotspan/pkg/errors"
)

// Style selects how cells are painted.
type Style string

const (
	StyleClassic Style = "classic"
	StyleRainbow Style = "rainbow"
)

// ParseStyle parses a style name case-insensitively. "rainbowbox" is
// accepted as an alias of rainbow.
func ParseStyle(s string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "classic":
		return StyleClassic, nil
	case "rainbow", "rainbowbox", "rainbow-box":
		return StyleRainbow, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidGrid, "unknown grid style %q", s)
	}
}

// UnmarshalJSON accepts any spelling [ParseStyle] accepts.
func (s *Style) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v, err := ParseStyle(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Spec describes a dot grid.
type Spec struct {
	Total    int     `json:"total"`
	Filled   int     `json:"filled"`
	PerRow   int     `json:"per_row"`
	Style    Style   `json:"style"`
	CellSize float64 `json:"cell_size"`
	Gap      float64 `json:"gap"`
}

// Validate checks the structural constraints of the grid.
func (s Spec) Validate() error {
	switch {
	case s.Total < 0:
		return errors.New(errors.ErrCodeInvalidGrid, "total must not be negative, got %d", s.Total)
	case s.Filled < 0 || s.Filled > s.Total:
		return errors.New(errors.ErrCodeInvalidGrid, "filled must be between 0 and %d, got %d", s.Total, s.Filled)
	case s.PerRow <= 0:
		return errors.New(errors.ErrCodeInvalidGrid, "per_row must be positive, got %d", s.PerRow)
	case !(s.CellSize > 0):
		return errors.New(errors.ErrCodeInvalidGrid, "cell_size must be positive, got %g", s.CellSize)
	case !(s.Gap >= 0):
		return errors.New(errors.ErrCodeInvalidGrid, "gap must not be negative, got %g", s.Gap)
	}
	switch s.Style {
	case "", StyleClassic, StyleRainbow:
	default:
		return errors.New(errors.ErrCodeInvalidGrid, "unknown grid style %q", s.Style)
	}
	return nil
}

// Rows returns ceil(Total / PerRow).
func (s Spec) Rows() int {
	if s.PerRow <= 0 {
		return 0
	}
	return (s.Total + s.PerRow - 1) / s.PerRow
}

// Size returns the logical width and height of the grid. The width always
// spans PerRow columns; a grid without rows has zero height.
func (s Spec) Size() (float64, float64) {
	rows := float64(s.Rows())
	cols := float64(s.PerRow)
	w := cols*s.CellSize + (cols-1)*s.Gap
	h := rows*s.CellSize + (rows-1)*s.Gap
	return math.Max(w, 0), math.Max(h, 0)
}

// IsPassed reports whether cell i is within the filled prefix.
func (s Spec) IsPassed(i int) bool { return i < s.Filled }

// String renders the spec for logs.
func (s Spec) String() string {
	return fmt.Sprintf("%d/%d %s %dx%.4g+%.4g", s.Filled, s.Total, s.Style, s.PerRow, s.CellSize, s.Gap)
}
