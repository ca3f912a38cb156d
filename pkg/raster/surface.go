// Package raster provides the drawing surface cards are painted on.
//
// A [Surface] is addressed in logical units. It allocates
// ceil(width·scale) × ceil(height·scale) device pixels and applies the scale
// transform to every shape, so callers lay out in CSS-like pixels and get a
// sharp image at any density.
//
// Shapes go through gg's transform. Text and images are drawn at device
// resolution instead: glyphs are rasterised from a face of size·scale and
// images are resampled to their device size first, which keeps both crisp
// where a transformed blit would be blurred.
//
// A surface that cannot be allocated is degraded: it stays blank and every
// drawing call is a no-op. Callers check [Surface.Degraded] and log it; it is
// never an error.
package raster

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"

	"github.com/dotspan/dotspan/pkg/fonts"
)

// Device limits beyond which no drawing context is created.
const (
	MaxDimension = 16384
	MaxPixels    = 64 << 20
)

// Align is the horizontal text alignment relative to the anchor x.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Option configures a [Surface].
type Option func(*Surface)

// WithFonts sets the font library used for text. Without one, text calls are
// no-ops and measure as zero.
func WithFonts(lib *fonts.Library) Option {
	return func(s *Surface) { s.fonts = lib }
}

// Surface is a scaled RGBA drawing surface.
type Surface struct {
	dc       *gg.Context
	img      *image.RGBA
	scale    float64
	logicalW float64
	logicalH float64
	width    int
	height   int
	degraded bool

	fonts *fonts.Library
	faces map[fonts.Spec]font.Face
}

// DeviceSize returns the pixel dimensions for a logical size at scale.
func DeviceSize(w, h, scale float64) (int, int) {
	return int(math.Ceil(w * scale)), int(math.Ceil(h * scale))
}

// New allocates a surface for a logical size at scale. A non-positive scale
// is treated as 1.
func New(w, h, scale float64, opts ...Option) *Surface {
	if scale <= 0 {
		scale = 1
	}
	w, h = math.Max(w, 0), math.Max(h, 0)
	dw, dh := DeviceSize(w, h, scale)

	s := &Surface{
		scale:    scale,
		logicalW: w,
		logicalH: h,
		width:    dw,
		height:   dh,
		faces:    make(map[fonts.Spec]font.Face),
	}
	for _, opt := range opts {
		opt(s)
	}

	if dw <= 0 || dh <= 0 || dw > MaxDimension || dh > MaxDimension || dw*dh > MaxPixels {
		s.degraded = true
		s.img = image.NewRGBA(image.Rect(0, 0, 0, 0))
		return s
	}

	s.img = image.NewRGBA(image.Rect(0, 0, dw, dh))
	s.dc = gg.NewContextForRGBA(s.img)
	s.dc.Scale(scale, scale)
	return s
}

// Width returns the device width in pixels.
func (s *Surface) Width() int { return s.width }

// Height returns the device height in pixels.
func (s *Surface) Height() int { return s.height }

// LogicalSize returns the size the surface was requested at.
func (s *Surface) LogicalSize() (float64, float64) { return s.logicalW, s.logicalH }

// Scale returns the device pixel ratio.
func (s *Surface) Scale() float64 { return s.scale }

// Degraded reports whether the surface has no drawing context.
func (s *Surface) Degraded() bool { return s.degraded }

// Image returns the backing image. A degraded surface returns an empty image.
func (s *Surface) Image() *image.RGBA { return s.img }

// Close releases the faces created for this surface. The image stays valid
// and later text calls open faces again.
func (s *Surface) Close() error {
	for k, f := range s.faces {
		f.Close()
		delete(s.faces, k)
	}
	return nil
}

// Fill paints the whole surface.
func (s *Surface) Fill(c color.Color) {
	if s.degraded {
		return
	}
	s.FillRect(0, 0, s.logicalW, s.logicalH, c)
}

// FillRect fills an axis-aligned rectangle.
func (s *Surface) FillRect(x, y, w, h float64, c color.Color) {
	if s.degraded {
		return
	}
	s.dc.DrawRectangle(x, y, w, h)
	s.dc.SetColor(c)
	s.dc.Fill()
}

// FillCircle fills a circle centred on (cx, cy).
func (s *Surface) FillCircle(cx, cy, r float64, c color.Color) {
	if s.degraded {
		return
	}
	s.dc.DrawCircle(cx, cy, r)
	s.dc.SetColor(c)
	s.dc.Fill()
}

// FillRoundedRect fills a rectangle with rounded corners.
func (s *Surface) FillRoundedRect(x, y, w, h, r float64, c color.Color) {
	if s.degraded {
		return
	}
	s.dc.DrawRoundedRectangle(x, y, w, h, clampRadius(w, h, r))
	s.dc.SetColor(c)
	s.dc.Fill()
}

// StrokeRoundedRect strokes the outline of a rounded rectangle with a line
// of the given logical width.
func (s *Surface) StrokeRoundedRect(x, y, w, h, r, lineWidth float64, c color.Color) {
	if s.degraded {
		return
	}
	s.dc.DrawRoundedRectangle(x, y, w, h, clampRadius(w, h, r))
	s.dc.SetColor(c)
	// gg does not scale line widths with the transform.
	s.dc.SetLineWidth(lineWidth * s.scale)
	s.dc.Stroke()
}

// MeasureText returns the logical advance width of text.
func (s *Surface) MeasureText(text string, spec fonts.Spec) float64 {
	if s.fonts == nil {
		return 0
	}
	return s.fonts.Measure(text, spec)
}

// FillText draws one line of text with its top edge at y. The anchor x is
// the left edge, centre or right edge depending on align.
func (s *Surface) FillText(text string, x, y float64, spec fonts.Spec, align Align, c color.Color) {
	if s.degraded || s.fonts == nil || text == "" {
		return
	}
	face, err := s.face(spec.Scaled(s.scale))
	if err != nil {
		return
	}

	dx := x * s.scale
	switch align {
	case AlignCenter:
		dx -= float64(font.MeasureString(face, text)) / 64 / 2
	case AlignRight:
		dx -= float64(font.MeasureString(face, text)) / 64
	}
	baseline := y*s.scale + float64(face.Metrics().Ascent)/64

	s.dc.Push()
	defer s.dc.Pop()
	s.dc.Identity()
	s.dc.SetFontFace(face)
	s.dc.SetColor(c)
	s.dc.DrawString(text, dx, baseline)
}

// DrawImage draws img into the logical rectangle (x, y, w, h), resampling it
// to the device size of that rectangle.
func (s *Surface) DrawImage(img image.Image, x, y, w, h float64) {
	if s.degraded || img == nil {
		return
	}
	dw := int(math.Round(w * s.scale))
	dh := int(math.Round(h * s.scale))
	if dw <= 0 || dh <= 0 {
		return
	}
	resized := imaging.Resize(img, dw, dh, imaging.Lanczos)

	s.dc.Push()
	defer s.dc.Pop()
	s.dc.Identity()
	s.dc.DrawImage(resized, int(math.Round(x*s.scale)), int(math.Round(y*s.scale)))
}

func (s *Surface) face(spec fonts.Spec) (font.Face, error) {
	if f, ok := s.faces[spec]; ok {
		return f, nil
	}
	f, err := s.fonts.NewFace(spec)
	if err != nil {
		return nil, err
	}
	s.faces[spec] = f
	return f, nil
}

func clampRadius(w, h, r float64) float64 {
	return math.Max(0, math.Min(r, math.Min(w, h)/2))
}
