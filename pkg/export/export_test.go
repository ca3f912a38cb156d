package export

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/dotspan/dotspan/pkg/errors"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"png", FormatPNG, false},
		{"PNG", FormatPNG, false},
		{"jpg", FormatJPG, false},
		{"jpeg", FormatJPG, false},
		{"pdf", FormatPDF, false},
		{"print", FormatPDF, false},
		{" png ", FormatPNG, false},
		{"svg", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, errors.ErrCodeInvalidFormat) {
				t.Errorf("error code = %s, want %s", errors.GetCode(err), errors.ErrCodeInvalidFormat)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormatsDedupes(t *testing.T) {
	got, err := ParseFormats([]string{"png", "jpeg", "jpg", "png"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != FormatPNG || got[1] != FormatJPG {
		t.Errorf("ParseFormats() = %v, want [png jpg]", got)
	}
	if _, err := ParseFormats([]string{"png", "gif"}); err == nil {
		t.Error("ParseFormats() with gif should fail")
	}
}

func TestFormatProperties(t *testing.T) {
	if FormatPDF.FileExtension() != "html" || FormatPDF.Extension() != "pdf" {
		t.Errorf("pdf extensions = %q/%q", FormatPDF.Extension(), FormatPDF.FileExtension())
	}
	if FormatJPG.ContentType() != "image/jpeg" || FormatPNG.ContentType() != "image/png" {
		t.Error("unexpected image content types")
	}
	if !strings.HasPrefix(FormatPDF.ContentType(), "text/html") {
		t.Errorf("pdf content type = %q", FormatPDF.ContentType())
	}
	if FormatPDF.IsImage() || !FormatJPG.IsImage() {
		t.Error("IsImage mismatch")
	}
}

func testImage() image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, color.NRGBA{0, 128, 255, 255})
		}
	}
	// Transparent corner, as on a rounded card.
	img.SetNRGBA(0, 0, color.NRGBA{})
	return img
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(testImage())
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 6 {
		t.Errorf("bounds = %v", b)
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Errorf("corner alpha = %d, want 0", a)
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := EncodeJPEG(testImage(), 0)
	if err != nil {
		t.Fatal(err)
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 < 200 || g>>8 < 200 || b>>8 < 200 {
		t.Errorf("transparent corner = (%d,%d,%d), want near white", r>>8, g>>8, b>>8)
	}

	for _, q := range []int{-1, 101} {
		if _, err := EncodeJPEG(testImage(), q); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("EncodeJPEG(quality=%d) error = %v", q, err)
		}
	}
}

func TestEncodeRejectsPrint(t *testing.T) {
	if _, err := Encode(testImage(), FormatPDF, 0); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("Encode(pdf) error = %v", err)
	}
}

func TestDataURL(t *testing.T) {
	got := DataURL("image/png", []byte("hi"))
	if got != "data:image/png;base64,aGk=" {
		t.Errorf("DataURL() = %q", got)
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Jane Doe!!", "jane-doe"},
		{"  Ana  María  ", "ana-mar-a"},
		{"---", ""},
		{"", ""},
		{"李小龍", ""},
		{"R2-D2", "r2-d2"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilenames(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 12, 0, 0, 0, time.Local)
	f := Filenames{
		Now: func() time.Time { return fixed },
		Rand: func(b []byte) error {
			for i := range b {
				b[i] = byte(i + 36)
			}
			return nil
		},
	}

	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{"Jane Doe!!", FormatPNG, "dotspan-jane-doe-2024-03-09.png"},
		{"Jane Doe", FormatJPG, "dotspan-jane-doe-2024-03-09.jpg"},
		{"Jane Doe", FormatPDF, "dotspan-jane-doe-2024-03-09.pdf"},
		{"", FormatPNG, "dotspan-export-abcdef-2024-03-09.png"},
		{"!!!", FormatPNG, "dotspan-export-abcdef-2024-03-09.png"},
	}
	for _, tt := range tests {
		if got := f.Name(tt.name, tt.format); got != tt.want {
			t.Errorf("Name(%q, %s) = %q, want %q", tt.name, tt.format, got, tt.want)
		}
	}
}

func TestFilenamesRandomToken(t *testing.T) {
	got := Name("", FormatPNG)
	if !strings.HasPrefix(got, "dotspan-export-") || !strings.HasSuffix(got, ".png") {
		t.Fatalf("Name() = %q", got)
	}
	token := strings.TrimPrefix(got, "dotspan-export-")[:6]
	for _, r := range token {
		if !strings.ContainsRune(tokenAlphabet, r) {
			t.Errorf("token %q has %q outside the alphabet", token, r)
		}
	}
}

func TestParsePaperSize(t *testing.T) {
	tests := []struct {
		in      string
		want    PaperSize
		wantErr bool
	}{
		{"", PaperLetter, false},
		{"A4", PaperA4, false},
		{"letter", PaperLetter, false},
		{"Letter", PaperLetter, false},
		{"legal", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePaperSize(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePaperSize(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, errors.ErrCodeInvalidPaper) {
			t.Errorf("error code = %s", errors.GetCode(err))
		}
	}
}

func TestPrintDocument(t *testing.T) {
	src := DataURL("image/png", []byte{1, 2, 3})

	tests := []struct {
		name  string
		opts  PrintOptions
		wants []string
	}{
		{
			name:  "a4",
			opts:  PrintOptions{ImageURL: src, Title: "My life", Paper: PaperA4},
			wants: []string{"size: A4", "margin: 16mm", "<title>My life</title>", `alt="My life"`, src},
		},
		{
			name:  "letter",
			opts:  PrintOptions{ImageURL: src, Paper: PaperLetter},
			wants: []string{"size: Letter", "<title>" + DefaultPrintTitle + "</title>"},
		},
		{
			name:  "default paper",
			opts:  PrintOptions{ImageURL: src},
			wants: []string{"size: Letter"},
		},
		{
			name:  "escapes title",
			opts:  PrintOptions{ImageURL: src, Title: `<b>"x"</b>`},
			wants: []string{"&lt;b&gt;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := PrintDocument(&buf, tt.opts); err != nil {
				t.Fatal(err)
			}
			doc := buf.String()
			if !strings.HasPrefix(doc, "<!doctype html>") {
				t.Errorf("document does not start with doctype")
			}
			for _, w := range tt.wants {
				if !strings.Contains(doc, w) {
					t.Errorf("document missing %q", w)
				}
			}
			for _, w := range []string{"window.print()", "img.complete", "200", "500"} {
				if !strings.Contains(doc, w) {
					t.Errorf("script missing %q", w)
				}
			}
		})
	}
}

func TestPrintDocumentNeedsImage(t *testing.T) {
	if err := PrintDocument(&bytes.Buffer{}, PrintOptions{}); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("PrintDocument() error = %v", err)
	}
}

func TestOnDisk(t *testing.T) {
	tests := []struct {
		in     string
		format Format
		want   string
	}{
		{"dotspan-jane-2024-03-09.pdf", FormatPDF, "dotspan-jane-2024-03-09.html"},
		{"dotspan-jane-2024-03-09.png", FormatPNG, "dotspan-jane-2024-03-09.png"},
		{"custom.html", FormatPDF, "custom.html"},
	}
	for _, tt := range tests {
		if got := OnDisk(tt.in, tt.format); got != tt.want {
			t.Errorf("OnDisk(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
