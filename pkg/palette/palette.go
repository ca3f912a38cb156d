// Package palette defines the closed color set used to paint a DotSpan card.
//
// A [Palette] carries every color the exporter needs; none of its fields are
// optional. [Classic] is the fallback when the caller supplies no theme, and
// [Theme.Palette] maps a named app theme onto the export colors.
//
// Colors are stored as hex strings so palettes round-trip through JSON and
// TOML unchanged. [Parse] turns them into [color.Color] values at draw time.
package palette

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/dotspan/dotspan/pkg/errors"
)

// DefaultRainbow is the 16-color cycle used for passed cells in rainbow style.
var DefaultRainbow = []string{
	"#f87171",
	"#fb923c",
	"#fbbf24",
	"#facc15",
	"#a3e635",
	"#4ade80",
	"#34d399",
	"#2dd4bf",
	"#22d3ee",
	"#38bdf8",
	"#60a5fa",
	"#818cf8",
	"#a78bfa",
	"#e879f9",
	"#f472b6",
	"#fb7185",
}

// Classic palette colors, used when no theme is supplied.
const (
	ClassicFilled     = "#111827"
	ClassicEmpty      = "#e5e7eb"
	ClassicBorder     = "#e5e7eb"
	ClassicText       = "#374151"
	ClassicMuted      = "#6b7280"
	ClassicBackground = "#ffffff"
)

// Palette is the full set of colors for one export.
type Palette struct {
	Filled     string   `json:"filled" toml:"filled"`
	Empty      string   `json:"empty" toml:"empty"`
	Border     string   `json:"border" toml:"border"`
	Text       string   `json:"text" toml:"text"`
	Muted      string   `json:"muted" toml:"muted"`
	Background string   `json:"background" toml:"background"`
	Rainbow    []string `json:"rainbow" toml:"rainbow"`
}

// Classic returns the fallback palette.
func Classic() Palette {
	return Palette{
		Filled:     ClassicFilled,
		Empty:      ClassicEmpty,
		Border:     ClassicBorder,
		Text:       ClassicText,
		Muted:      ClassicMuted,
		Background: ClassicBackground,
		Rainbow:    append([]string(nil), DefaultRainbow...),
	}
}

// IsZero reports whether no field of p has been set.
func (p Palette) IsZero() bool {
	return p.Filled == "" && p.Empty == "" && p.Border == "" && p.Text == "" &&
		p.Muted == "" && p.Background == "" && len(p.Rainbow) == 0
}

// OrClassic returns p, or [Classic] when p is the zero palette.
func (p Palette) OrClassic() Palette {
	if p.IsZero() {
		return Classic()
	}
	return p
}

// Validate checks that every color parses and the rainbow cycle is non-empty.
func (p Palette) Validate() error {
	fields := []struct {
		name, value string
	}{
		{"filled", p.Filled},
		{"empty", p.Empty},
		{"border", p.Border},
		{"text", p.Text},
		{"muted", p.Muted},
		{"background", p.Background},
	}
	for _, f := range fields {
		if _, err := Parse(f.value); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPalette, err, "palette %s color", f.name)
		}
	}
	if len(p.Rainbow) == 0 {
		return errors.New(errors.ErrCodeInvalidPalette, "palette rainbow sequence is empty")
	}
	for i, c := range p.Rainbow {
		if _, err := Parse(c); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPalette, err, "palette rainbow[%d]", i)
		}
	}
	return nil
}

// RainbowAt returns the rainbow color for cell i, cycling through the sequence.
func (p Palette) RainbowAt(i int) string {
	return p.Rainbow[i%len(p.Rainbow)]
}

// Parse converts a "#rgb" or "#rrggbb" string to an opaque color.
func Parse(hex string) (color.Color, error) {
	s := strings.TrimSpace(hex)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	if len(s) != 4 && len(s) != 7 {
		return nil, errors.New(errors.ErrCodeInvalidColor, "invalid color %q", hex)
	}
	c, err := colorful.Hex(strings.ToLower(s))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidColor, err, "invalid color %q", hex)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// MustParse is like [Parse] but panics on invalid input.
// Use it only for colors known at compile time.
func MustParse(hex string) color.Color {
	c, err := Parse(hex)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseOr parses hex, falling back to def when hex is empty or invalid.
func ParseOr(hex string, def color.Color) color.Color {
	if hex == "" {
		return def
	}
	c, err := Parse(hex)
	if err != nil {
		return def
	}
	return c
}
