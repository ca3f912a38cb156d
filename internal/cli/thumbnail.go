package cli

import (
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// halfBlock paints the top pixel as foreground and the bottom pixel as
// background, so one terminal cell shows two pixel rows.
const halfBlock = "▀"

// thumbnail draws img into at most cols x rows terminal cells. At zoom 1 the
// image fits the box; larger zooms magnify it and keep the center.
func thumbnail(img image.Image, cols, rows int, zoom float64, bg color.Color) string {
	if img == nil || cols <= 0 || rows <= 0 {
		return ""
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return ""
	}
	if zoom <= 0 {
		zoom = 1
	}

	boxW, boxH := cols, rows*2
	fitted := imaging.Fit(img, boxW, boxH, imaging.Box)
	w := int(math.Round(float64(fitted.Bounds().Dx()) * zoom))
	h := int(math.Round(float64(fitted.Bounds().Dy()) * zoom))
	scaled := imaging.Resize(img, max(w, 1), max(h, 1), imaging.Box)
	if w > boxW || h > boxH {
		scaled = imaging.CropCenter(scaled, min(w, boxW), min(h, boxH))
	}
	flat := imaging.New(scaled.Bounds().Dx(), scaled.Bounds().Dy()+scaled.Bounds().Dy()%2, bg)
	flat = imaging.Overlay(flat, scaled, image.Pt(0, 0), 1)

	fb := flat.Bounds()
	var sb strings.Builder
	for y := fb.Min.Y; y < fb.Max.Y; y += 2 {
		if y > fb.Min.Y {
			sb.WriteByte('\n')
		}
		for x := fb.Min.X; x < fb.Max.X; x++ {
			top := hexOf(flat.NRGBAAt(x, y))
			bottom := hexOf(flat.NRGBAAt(x, y+1))
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render(halfBlock))
		}
	}
	return sb.String()
}

// hexOf converts an opaque pixel to "#rrggbb".
func hexOf(c color.NRGBA) string {
	cc, _ := colorful.MakeColor(color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	return cc.Hex()
}
