package card

import (
	"math"
	"strings"
)

// Layout is the card geometry derived from a request. It is recomputed on
// every render.
type Layout struct {
	Width  float64
	Height float64

	GridWidth  float64
	GridHeight float64
	GridTop    float64

	HeaderHeight     float64
	FooterTextHeight float64
	FooterNameHeight float64
	FooterHeight     float64

	HasFooterText bool
	HasFooterName bool
}

// ComputeLayout derives the card geometry. Zero fields of r take their
// defaults.
func ComputeLayout(r Request) Layout {
	r = r.WithDefaults()
	gw, gh := r.Grid.Size()

	l := Layout{
		GridWidth:     gw,
		GridHeight:    gh,
		HeaderHeight:  math.Max(TitleFontSize, StatsFontSize),
		HasFooterText: r.FooterText != "",
		HasFooterName: strings.TrimSpace(r.FooterName) != "",
	}
	if l.HasFooterText {
		l.FooterTextHeight = r.FooterGap + FooterFontSize
	}
	if l.HasFooterName {
		gap := r.FooterGap
		if l.HasFooterText {
			gap = nameGapAfterText
		}
		l.FooterNameHeight = gap + NameFontSize
	}
	l.FooterHeight = l.FooterTextHeight + l.FooterNameHeight

	l.GridTop = r.Padding + l.HeaderHeight + r.HeaderGap
	l.Width = gw + 2*r.Padding
	l.Height = 2*r.Padding + l.HeaderHeight + r.HeaderGap + gh + l.FooterHeight
	return l
}

// Measurer returns the rendered width of text at a font size.
type Measurer func(text string, size float64) float64

// FitNameSize picks the footer name size: start at [NameFontSize] and shrink
// by one pixel while the name is wider than maxWidth, stopping at
// [MinNameFontSize]. At the floor the name may overflow.
func FitNameSize(name string, maxWidth float64, measure Measurer) float64 {
	size := float64(NameFontSize)
	for size > MinNameFontSize && measure(name, size) > maxWidth {
		size--
	}
	return size
}
