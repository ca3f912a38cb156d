// Package card composes the shareable progress card: a header with title and
// stats, the dot grid, and an optional footer with a flag icon and the
// owner's name.
//
// [ComputeLayout] derives the geometry and [Composer.Render] paints it onto a
// [raster.Surface] at the requested scale. The footer name shrinks from 24px
// toward 14px until it fits the card ([FitNameSize]).
//
// Rendering is best effort past validation: a flag icon that cannot be
// loaded is logged and skipped, and a surface that cannot be allocated is
// returned blank.
package card

import (
	"context"
	"image"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dotspan/dotspan/pkg/fonts"
	"github.com/dotspan/dotspan/pkg/grid"
	"github.com/dotspan/dotspan/pkg/palette"
	"github.com/dotspan/dotspan/pkg/raster"
)

// ImageLoader fetches the footer flag icon.
type ImageLoader interface {
	Load(ctx context.Context, url string) (image.Image, error)
}

// Option configures a [Composer].
type Option func(*Composer)

// WithFonts sets the font library. Sharing one library between composers
// shares its parsed fonts.
func WithFonts(lib *fonts.Library) Option {
	return func(c *Composer) { c.fonts = lib }
}

// WithImageLoader sets the loader for footer flag icons. Without one, flags
// are never drawn.
func WithImageLoader(l ImageLoader) Option {
	return func(c *Composer) { c.loader = l }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// WithLanguage sets the language used to upper-case the footer name.
func WithLanguage(tag language.Tag) Option {
	return func(c *Composer) { c.lang = tag }
}

// Composer renders cards. It is safe for concurrent use.
type Composer struct {
	fonts  *fonts.Library
	loader ImageLoader
	logger *log.Logger
	lang   language.Tag
}

// NewComposer creates a Composer. Without [WithFonts] it owns a library that
// prefers system fonts.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{lang: language.Und}
	for _, opt := range opts {
		opt(c)
	}
	if c.fonts == nil {
		c.fonts = fonts.New()
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// Fonts returns the composer's font library.
func (c *Composer) Fonts() *fonts.Library { return c.fonts }

// Render validates req and paints the card. The only errors are validation
// errors; the returned surface may be degraded.
func (c *Composer) Render(ctx context.Context, req Request) (*raster.Surface, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	r := req.WithDefaults()
	l := ComputeLayout(r)
	family := fonts.ResolveFamily(r.FontFamily)

	// The icon is resolved first so a slow fetch never holds a half-drawn surface.
	var flag image.Image
	if l.HasFooterText && r.FooterFlagURL != "" {
		flag = c.loadFlag(ctx, r.FooterFlagURL)
	}

	s := raster.New(l.Width, l.Height, r.Scale, raster.WithFonts(c.fonts))
	if s.Degraded() {
		c.logger.Warn("card surface unavailable, returning blank image",
			"width", l.Width, "height", l.Height, "scale", r.Scale)
		return s, nil
	}

	text := palette.ParseOr(r.TextColor, palette.MustParse(palette.ClassicText))
	muted := palette.ParseOr(r.MutedColor, palette.MustParse(palette.ClassicMuted))
	bg := palette.ParseOr(r.BackgroundColor, palette.MustParse(palette.ClassicBackground))
	border := palette.ParseOr(r.BorderColor, palette.MustParse(palette.ClassicBorder))

	s.FillRoundedRect(0, 0, l.Width, l.Height, r.Radius, bg)
	s.StrokeRoundedRect(0.5, 0.5, l.Width-1, l.Height-1, r.Radius, borderWidth, border)

	// Header.
	titleFont := fonts.Spec{Family: family, Weight: TitleWeight, Size: TitleFontSize}
	statsFont := fonts.Spec{Family: family, Weight: StatsWeight, Size: StatsFontSize}
	s.FillText(r.Title, r.Padding, r.Padding, titleFont, raster.AlignLeft, muted)
	right := l.Width - r.Padding
	percentWidth := s.MeasureText(r.PercentText, statsFont)
	s.FillText(r.PercentText, right, r.Padding, statsFont, raster.AlignRight, text)
	s.FillText(r.ProgressText, right-percentWidth-statsGap, r.Padding, statsFont, raster.AlignRight, text)

	grid.Draw(s, r.Grid, r.Palette, r.Padding, l.GridTop)

	// Footer.
	cursor := l.GridTop + l.GridHeight
	if l.HasFooterText {
		footerFont := fonts.Spec{Family: family, Weight: FooterWeight, Size: FooterFontSize}
		y := cursor + r.FooterGap
		total := s.MeasureText(r.FooterText, footerFont)
		if flag != nil {
			total += r.FooterFlagSize + flagGap
		}
		x := (l.Width - total) / 2
		if flag != nil {
			iconY := y + (FooterFontSize-r.FooterFlagSize)/2
			s.DrawImage(flag, x, iconY, r.FooterFlagSize, r.FooterFlagSize)
			x += r.FooterFlagSize + flagGap
		}
		s.FillText(r.FooterText, x, y, footerFont, raster.AlignLeft, muted)
		cursor = y + FooterFontSize
	}

	if l.HasFooterName {
		name := cases.Upper(c.lang).String(strings.TrimSpace(r.FooterName))
		size := FitNameSize(name, l.Width-2*r.Padding, func(t string, px float64) float64 {
			return c.fonts.Measure(t, fonts.Spec{Family: family, Weight: NameWeight, Size: px})
		})
		gap := r.FooterGap
		if l.HasFooterText {
			gap = nameGapAfterText
		}
		nameFont := fonts.Spec{Family: family, Weight: NameWeight, Size: size}
		s.FillText(name, l.Width/2, cursor+gap, nameFont, raster.AlignCenter, text)
	}

	c.logger.Debug("rendered card",
		"grid", r.Grid.String(),
		"width", s.Width(),
		"height", s.Height(),
		"scale", r.Scale,
		"duration", time.Since(start))
	return s, nil
}

func (c *Composer) loadFlag(ctx context.Context, url string) image.Image {
	if c.loader == nil {
		return nil
	}
	img, err := c.loader.Load(ctx, url)
	if err != nil {
		c.logger.Debug("footer flag unavailable, drawing footer without icon", "url", truncate(url, 80), "err", err)
		return nil
	}
	return img
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
