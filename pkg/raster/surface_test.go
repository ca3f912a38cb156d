package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/dotspan/dotspan/pkg/fonts"
)

var (
	red   = color.NRGBA{255, 0, 0, 255}
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

func rgbaAt(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestDeviceSize(t *testing.T) {
	tests := []struct {
		w, h, scale float64
		wantW       int
		wantH       int
	}{
		{360, 206, 1, 360, 206},
		{360, 206, 3, 1080, 618},
		{10.5, 10.2, 2, 21, 21},
		{0, 0, 3, 0, 0},
	}
	for _, tt := range tests {
		w, h := DeviceSize(tt.w, tt.h, tt.scale)
		if w != tt.wantW || h != tt.wantH {
			t.Errorf("DeviceSize(%v, %v, %v) = %dx%d, want %dx%d", tt.w, tt.h, tt.scale, w, h, tt.wantW, tt.wantH)
		}
	}
}

func TestNew(t *testing.T) {
	s := New(10, 8, 2)
	if s.Width() != 20 || s.Height() != 16 {
		t.Errorf("New(10, 8, 2) = %dx%d, want 20x16", s.Width(), s.Height())
	}
	if s.Degraded() {
		t.Error("surface should not be degraded")
	}
	if b := s.Image().Bounds(); b.Dx() != 20 || b.Dy() != 16 {
		t.Errorf("Image bounds = %v", b)
	}
	if lw, lh := s.LogicalSize(); lw != 10 || lh != 8 {
		t.Errorf("LogicalSize() = %v, %v", lw, lh)
	}

	if New(10, 10, 0).Scale() != 1 {
		t.Error("non-positive scale should default to 1")
	}
}

func TestDegraded(t *testing.T) {
	tests := []struct {
		name string
		w, h float64
	}{
		{"zero area", 0, 0},
		{"zero height", 100, 0},
		{"too wide", MaxDimension + 1, 1},
		{"too many pixels", 9000, 9000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.w, tt.h, 1)
			if !s.Degraded() {
				t.Fatal("surface should be degraded")
			}
			// Drawing on a degraded surface is a no-op.
			s.Fill(red)
			s.FillCircle(1, 1, 1, red)
			s.StrokeRoundedRect(0, 0, 1, 1, 1, 1, red)
			if !s.Image().Bounds().Empty() {
				t.Error("degraded surface should expose an empty image")
			}
		})
	}
}

func TestFillRectScales(t *testing.T) {
	s := New(10, 10, 2)
	s.FillRect(0, 0, 5, 5, red)

	if got := rgbaAt(s.Image(), 4, 4); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("pixel inside rect = %v, want red", got)
	}
	if got := rgbaAt(s.Image(), 9, 9); got.A != 255 {
		t.Errorf("pixel at device edge of rect = %v, want opaque", got)
	}
	if got := rgbaAt(s.Image(), 15, 15); got.A != 0 {
		t.Errorf("pixel outside rect = %v, want transparent", got)
	}
}

func TestFillCircle(t *testing.T) {
	s := New(10, 10, 3)
	s.Fill(white)
	s.FillCircle(5, 5, 5, black)

	if got := rgbaAt(s.Image(), 15, 15); got != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("circle centre = %v, want black", got)
	}
	if got := rgbaAt(s.Image(), 0, 0); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("corner outside circle = %v, want white", got)
	}
}

func TestRoundedRectClampsRadius(t *testing.T) {
	s := New(10, 10, 1)
	s.FillRoundedRect(0, 0, 10, 10, 100, red)
	// A radius clamped to half the side yields a circle.
	if got := rgbaAt(s.Image(), 5, 5); got.A != 255 {
		t.Errorf("centre = %v, want filled", got)
	}
	if got := rgbaAt(s.Image(), 0, 0); got.A != 0 {
		t.Errorf("corner = %v, want empty", got)
	}
}

func TestStrokeRoundedRect(t *testing.T) {
	s := New(20, 20, 2)
	s.StrokeRoundedRect(0.5, 0.5, 19, 19, 4, 1, black)

	if got := rgbaAt(s.Image(), 20, 1); got.A == 0 {
		t.Error("top edge should be stroked")
	}
	if got := rgbaAt(s.Image(), 20, 20); got.A != 0 {
		t.Errorf("interior = %v, want untouched", got)
	}
}

func countInk(img *image.RGBA, bg color.RGBA) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) != bg {
				n++
			}
		}
	}
	return n
}

func TestFillText(t *testing.T) {
	lib := fonts.New(fonts.WithSystemFonts(false))
	spec := fonts.Spec{Family: fonts.Sans, Weight: fonts.WeightSemiBold, Size: 12}

	s := New(120, 20, 2, WithFonts(lib))
	defer s.Close()
	s.Fill(white)
	s.FillText("DotSpan", 4, 4, spec, AlignLeft, black)

	if n := countInk(s.Image(), color.RGBA{255, 255, 255, 255}); n == 0 {
		t.Fatal("FillText drew nothing")
	}
	// Top baseline keeps glyphs below y.
	for x := 0; x < s.Width(); x++ {
		for y := 0; y < 6; y++ {
			if s.Image().RGBAAt(x, y) != (color.RGBA{255, 255, 255, 255}) {
				t.Fatalf("ink above the text top at (%d, %d)", x, y)
			}
		}
	}

	if w := s.MeasureText("DotSpan", spec); w <= 0 {
		t.Errorf("MeasureText = %v, want > 0", w)
	}
}

func TestFillTextRightAlign(t *testing.T) {
	lib := fonts.New(fonts.WithSystemFonts(false))
	spec := fonts.Spec{Family: fonts.Sans, Weight: fonts.WeightRegular, Size: 12}

	s := New(100, 20, 1, WithFonts(lib))
	s.Fill(white)
	s.FillText("99%", 50, 2, spec, AlignRight, black)

	for y := 0; y < s.Height(); y++ {
		for x := 52; x < s.Width(); x++ {
			if s.Image().RGBAAt(x, y) != (color.RGBA{255, 255, 255, 255}) {
				t.Fatalf("right-aligned text crosses its anchor at (%d, %d)", x, y)
			}
		}
	}
}

func TestFillTextWithoutFonts(t *testing.T) {
	s := New(50, 20, 1)
	s.Fill(white)
	s.FillText("hidden", 0, 0, fonts.Spec{Size: 12}, AlignLeft, black)
	if n := countInk(s.Image(), color.RGBA{255, 255, 255, 255}); n != 0 {
		t.Errorf("text drawn without a font library: %d pixels", n)
	}
	if s.MeasureText("hidden", fonts.Spec{Size: 12}) != 0 {
		t.Error("MeasureText without fonts should be 0")
	}
}

func TestDrawImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.SetNRGBA(x, y, red)
		}
	}

	s := New(20, 20, 2)
	s.DrawImage(src, 5, 5, 5, 5)

	if got := rgbaAt(s.Image(), 15, 15); got != (color.RGBA{255, 0, 0, 255}) {
		t.Errorf("image centre = %v, want red", got)
	}
	if got := rgbaAt(s.Image(), 5, 5); got.A != 0 {
		t.Errorf("outside image = %v, want transparent", got)
	}
	s.DrawImage(nil, 0, 0, 1, 1)
}

func TestCloseKeepsPixels(t *testing.T) {
	lib := fonts.New(fonts.WithSystemFonts(false))
	spec := fonts.Spec{Family: fonts.Sans, Weight: fonts.WeightRegular, Size: 12}

	s := New(120, 20, 2, WithFonts(lib))
	s.Fill(white)
	s.FillText("DotSpan", 4, 4, spec, AlignLeft, black)
	if len(s.faces) == 0 {
		t.Fatal("FillText cached no face")
	}
	ink := countInk(s.Image(), color.RGBA{255, 255, 255, 255})

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(s.faces) != 0 {
		t.Errorf("faces after Close = %d, want 0", len(s.faces))
	}
	if got := countInk(s.Image(), color.RGBA{255, 255, 255, 255}); got != ink {
		t.Errorf("ink after Close = %d, want %d", got, ink)
	}
	s.FillText("DotSpan", 4, 4, spec, AlignLeft, black)
	if len(s.faces) != 1 {
		t.Errorf("faces after drawing again = %d, want 1", len(s.faces))
	}
	s.Close()
}
