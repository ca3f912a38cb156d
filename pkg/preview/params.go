package preview

import (
	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/palette"
)

// Mode selects what the session exports.
type Mode string

const (
	ModeDownload Mode = "download"
	ModePrint    Mode = "print"
)

// Card size multipliers applied to the cell size and gap.
const (
	SizeSmall  = 0.85
	SizeMedium = 1.0
	SizeLarge  = 1.2
)

// Font family choices, as CSS font stacks.
const (
	FontSans  = card.DefaultFontFamily
	FontSerif = "Georgia, serif"
	FontMono  = "'Courier New', monospace"
)

// Render scales per purpose.
const (
	PreviewScale  = 2
	DownloadScale = 3
	PrintScale    = 4
)

// Cell geometry bounds after the size multiplier.
const (
	minCellSize = 2
	maxCellSize = 20
	minGap      = 0.5
	maxGap      = 12
)

// Choice is a labelled value for a control.
type Choice[T any] struct {
	Value T
	Label string
}

// SizeChoices lists the size multipliers in display order.
var SizeChoices = []Choice[float64]{
	{SizeSmall, "Small"},
	{SizeMedium, "Medium"},
	{SizeLarge, "Large"},
}

// FontChoices lists the font families in display order.
var FontChoices = []Choice[string]{
	{FontSans, "Sans"},
	{FontSerif, "Serif"},
	{FontMono, "Mono"},
}

// Params are the user-adjustable export controls.
type Params struct {
	SizeScale  float64
	Background string
	FontColor  string
	MutedColor string
	FontFamily string
	Paper      export.PaperSize
	Mode       Mode
}

// DefaultParams returns the controls a session opens with for theme t.
// Missing theme colors fall back to white, near-black and gray.
func DefaultParams(t palette.Theme) Params {
	return Params{
		SizeScale:  SizeMedium,
		Background: or(t.Surface, "#ffffff"),
		FontColor:  or(t.Text, "#111827"),
		MutedColor: or(t.Muted, "#6b7280"),
		FontFamily: FontSans,
		Paper:      export.PaperLetter,
		Mode:       ModeDownload,
	}
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
