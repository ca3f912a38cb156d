package card

import (
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/grid"
	"github.com/dotspan/dotspan/pkg/palette"
)

// Card geometry and typography defaults, in logical pixels.
const (
	DefaultScale      = 3
	DefaultFontFamily = "Arial, sans-serif"
	DefaultPadding    = 24
	DefaultHeaderGap  = 16
	DefaultFooterGap  = 16
	DefaultRadius     = 16

	TitleFontSize   = 12
	StatsFontSize   = 12
	FooterFontSize  = 11
	NameFontSize    = 24
	MinNameFontSize = 14

	TitleWeight  = 600
	StatsWeight  = 600
	FooterWeight = 600
	NameWeight   = 800

	// statsGap separates the progress text from the percent text.
	statsGap = 12
	// nameGapAfterText replaces the footer gap above the name when a footer
	// text line sits between the grid and the name.
	nameGapAfterText = 10
	// flagGap separates the flag icon from the footer text.
	flagGap = 6
	// borderWidth is the card outline width.
	borderWidth = 1
)

// Request is everything needed to render one card. Zero values select the
// defaults above and colors from the palette.
type Request struct {
	Grid    grid.Spec       `json:"grid"`
	Palette palette.Palette `json:"palette"`

	Title        string `json:"title"`
	ProgressText string `json:"progress_text"`
	PercentText  string `json:"percent_text"`

	FooterText     string  `json:"footer_text,omitempty"`
	FooterName     string  `json:"footer_name,omitempty"`
	FooterFlagURL  string  `json:"footer_flag_url,omitempty"`
	FooterFlagSize float64 `json:"footer_flag_size,omitempty"`

	Scale      float64 `json:"scale,omitempty"`
	FontFamily string  `json:"font_family,omitempty"`

	TextColor       string `json:"text_color,omitempty"`
	MutedColor      string `json:"muted_color,omitempty"`
	BackgroundColor string `json:"background_color,omitempty"`
	BorderColor     string `json:"border_color,omitempty"`

	Padding   float64 `json:"padding,omitempty"`
	HeaderGap float64 `json:"header_gap,omitempty"`
	FooterGap float64 `json:"footer_gap,omitempty"`
	Radius    float64 `json:"radius,omitempty"`
}

// WithDefaults returns a copy of r with every zero field resolved.
func (r Request) WithDefaults() Request {
	r.Palette = r.Palette.OrClassic()
	if r.Scale == 0 {
		r.Scale = DefaultScale
	}
	if r.FontFamily == "" {
		r.FontFamily = DefaultFontFamily
	}
	if r.Padding == 0 {
		r.Padding = DefaultPadding
	}
	if r.HeaderGap == 0 {
		r.HeaderGap = DefaultHeaderGap
	}
	if r.FooterGap == 0 {
		r.FooterGap = DefaultFooterGap
	}
	if r.Radius == 0 {
		r.Radius = DefaultRadius
	}
	if r.FooterFlagSize == 0 {
		r.FooterFlagSize = FooterFontSize + 2
	}
	if r.TextColor == "" {
		r.TextColor = r.Palette.Text
	}
	if r.MutedColor == "" {
		r.MutedColor = r.Palette.Muted
	}
	if r.BackgroundColor == "" {
		r.BackgroundColor = r.Palette.Background
	}
	if r.BorderColor == "" {
		r.BorderColor = r.Palette.Border
	}
	return r
}

// Validate reports the first problem that would make r unrenderable.
func (r Request) Validate() error {
	if err := r.Grid.Validate(); err != nil {
		return err
	}
	if err := r.Palette.OrClassic().Validate(); err != nil {
		return err
	}
	if r.Scale != 0 && !(r.Scale >= 1) {
		return errors.New(errors.ErrCodeInvalidInput, "scale must be at least 1, got %g", r.Scale)
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"padding", r.Padding},
		{"header_gap", r.HeaderGap},
		{"footer_gap", r.FooterGap},
		{"radius", r.Radius},
		{"footer_flag_size", r.FooterFlagSize},
	} {
		if !(f.value >= 0) {
			return errors.New(errors.ErrCodeInvalidInput, "%s must not be negative, got %g", f.name, f.value)
		}
	}

	for _, f := range []struct{ name, value string }{
		{"title", r.Title},
		{"progress_text", r.ProgressText},
		{"percent_text", r.PercentText},
		{"footer_text", r.FooterText},
		{"footer_name", r.FooterName},
		{"font_family", r.FontFamily},
	} {
		if err := errors.ValidateText(f.name, f.value); err != nil {
			return err
		}
	}

	for _, f := range []struct{ name, value string }{
		{"text_color", r.TextColor},
		{"muted_color", r.MutedColor},
		{"background_color", r.BackgroundColor},
		{"border_color", r.BorderColor},
	} {
		if f.value == "" {
			continue
		}
		if _, err := palette.Parse(f.value); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidColor, err, "%s", f.name)
		}
	}

	if r.FooterFlagURL != "" {
		if err := errors.ValidateImageURL(r.FooterFlagURL); err != nil {
			return err
		}
	}
	return nil
}
