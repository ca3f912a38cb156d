package pipeline

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/dotspan/dotspan/pkg/cache"
	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/fonts"
	"github.com/dotspan/dotspan/pkg/grid"
)

func yearRequest() card.Request {
	return card.Request{
		Grid:         grid.Spec{Total: 365, Filled: 120, PerRow: 26, Style: grid.StyleClassic, CellSize: 10, Gap: 4},
		Title:        "2024",
		ProgressText: "120 / 365 days",
		PercentText:  "33%",
	}
}

var fixedNames = export.Filenames{
	Now: func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local) },
}

func testRunner(c cache.Cache) *Runner {
	composer := card.NewComposer(card.WithFonts(fonts.New(fonts.WithSystemFonts(false))))
	return NewRunner(c, nil, composer, nil)
}

func TestValidateAndSetDefaults(t *testing.T) {
	opts := Options{Request: yearRequest()}
	opts.Request.FooterName = "Jane Doe"
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != export.FormatPNG {
		t.Errorf("Formats = %v, want [png]", opts.Formats)
	}
	if opts.Paper != export.PaperLetter {
		t.Errorf("Paper = %q, want letter", opts.Paper)
	}
	if opts.Quality != export.DefaultJPEGQuality {
		t.Errorf("Quality = %d", opts.Quality)
	}
	if opts.Name != "Jane Doe" {
		t.Errorf("Name = %q, want the footer name", opts.Name)
	}
	if opts.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestValidateAndSetDefaultsErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		code   errors.Code
	}{
		{"bad format", func(o *Options) { o.Formats = []export.Format{"svg"} }, errors.ErrCodeInvalidFormat},
		{"bad paper", func(o *Options) { o.Paper = "legal" }, errors.ErrCodeInvalidPaper},
		{"bad quality", func(o *Options) { o.Quality = 101 }, errors.ErrCodeInvalidInput},
		{"bad grid", func(o *Options) { o.Request.Grid.PerRow = 0 }, errors.ErrCodeInvalidGrid},
		{"bad scale", func(o *Options) { o.Request.Scale = 0.5 }, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := Options{Request: yearRequest()}
			tt.modify(&opts)
			err := opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestValidateAndSetDefaultsDedupesFormats(t *testing.T) {
	opts := Options{Request: yearRequest(), Formats: []export.Format{"png", "jpeg", "jpg", "print"}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	want := []export.Format{export.FormatPNG, export.FormatJPG, export.FormatPDF}
	if len(opts.Formats) != len(want) {
		t.Fatalf("Formats = %v, want %v", opts.Formats, want)
	}
	for i := range want {
		if opts.Formats[i] != want[i] {
			t.Errorf("Formats[%d] = %s, want %s", i, opts.Formats[i], want[i])
		}
	}
}

func TestScaleFor(t *testing.T) {
	opts := Options{Request: yearRequest()}
	if got := opts.ScaleFor(export.FormatPNG); got != ImageScale {
		t.Errorf("png scale = %v", got)
	}
	if got := opts.ScaleFor(export.FormatJPG); got != ImageScale {
		t.Errorf("jpg scale = %v", got)
	}
	if got := opts.ScaleFor(export.FormatPDF); got != PrintScale {
		t.Errorf("pdf scale = %v", got)
	}
	opts.Request.Scale = 1
	if got := opts.ScaleFor(export.FormatPDF); got != 1 {
		t.Errorf("override scale = %v", got)
	}
}

func TestArtifactKeyOptsDistinguishFormats(t *testing.T) {
	opts := Options{Request: yearRequest(), Quality: 80, Paper: export.PaperA4}
	k := cache.NewDefaultKeyer()
	png := k.ArtifactKey("h", opts.ArtifactKeyOpts(export.FormatPNG, "t"))
	jpg := k.ArtifactKey("h", opts.ArtifactKeyOpts(export.FormatJPG, "t"))
	pdf := k.ArtifactKey("h", opts.ArtifactKeyOpts(export.FormatPDF, "t"))
	pdf2 := k.ArtifactKey("h", opts.ArtifactKeyOpts(export.FormatPDF, "other"))
	if png == jpg || jpg == pdf || pdf == pdf2 {
		t.Error("artifact keys collide")
	}
	// Titles only matter for the print document.
	if png != k.ArtifactKey("h", opts.ArtifactKeyOpts(export.FormatPNG, "other")) {
		t.Error("png key depends on the title")
	}
}

func TestExecute(t *testing.T) {
	r := testRunner(nil)
	res, err := r.Execute(context.Background(), Options{
		Request:   yearRequest(),
		Formats:   []export.Format{export.FormatPNG, export.FormatJPG, export.FormatPDF},
		Name:      "Jane Doe!!",
		Filenames: fixedNames,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Artifacts) != 3 {
		t.Fatalf("artifacts = %d, want 3", len(res.Artifacts))
	}
	if res.Stats.Renders != 2 {
		t.Errorf("renders = %d, want 2 (scales 3 and 4)", res.Stats.Renders)
	}

	wantNames := []string{
		"dotspan-jane-doe-2024-05-01.png",
		"dotspan-jane-doe-2024-05-01.jpg",
		"dotspan-jane-doe-2024-05-01.html",
	}
	for i, a := range res.Artifacts {
		if a.Filename != wantNames[i] {
			t.Errorf("artifact %d filename = %q, want %q", i, a.Filename, wantNames[i])
		}
	}

	// 365 cells at 26 per row: grid 360x206, card 408x282, at scale 3.
	a, _ := res.Artifact(export.FormatPNG)
	img, err := png.Decode(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 1224 || b.Dy() != 846 {
		t.Errorf("png size = %dx%d, want 1224x846", b.Dx(), b.Dy())
	}

	a, _ = res.Artifact(export.FormatJPG)
	if _, err := jpeg.Decode(bytes.NewReader(a.Data)); err != nil {
		t.Errorf("jpg does not decode: %v", err)
	}

	a, _ = res.Artifact(export.FormatPDF)
	doc := string(a.Data)
	for _, want := range []string{"size: Letter", "<title>dotspan-jane-doe-2024-05-01.pdf</title>", "data:image/png;base64,"} {
		if !strings.Contains(doc, want) {
			t.Errorf("print document missing %q", want)
		}
	}
}

func TestExecuteUsesCache(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := testRunner(fc)
	opts := Options{
		Request:   yearRequest(),
		Formats:   []export.Format{export.FormatPNG, export.FormatPDF},
		Name:      "Jane",
		Filenames: fixedNames,
	}

	first, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheInfo.Hits != 0 || first.CacheInfo.RenderHit {
		t.Errorf("first run cache info = %+v", first.CacheInfo)
	}

	second, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheInfo.RenderHit || second.CacheInfo.Hits != 2 || second.Stats.Renders != 0 {
		t.Errorf("second run cache info = %+v renders = %d", second.CacheInfo, second.Stats.Renders)
	}
	for i := range first.Artifacts {
		if !bytes.Equal(first.Artifacts[i].Data, second.Artifacts[i].Data) {
			t.Errorf("artifact %d differs between runs", i)
		}
	}
	if first.RequestHash != second.RequestHash {
		t.Error("request hash is not stable")
	}

	opts.Refresh = true
	third, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if third.CacheInfo.Hits != 0 || third.Stats.Renders != 2 {
		t.Errorf("refresh run cache info = %+v renders = %d", third.CacheInfo, third.Stats.Renders)
	}

	// A different request misses.
	opts.Refresh = false
	opts.Request.Grid.Filled = 121
	fourth, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if fourth.CacheInfo.Hits != 0 {
		t.Errorf("changed request hit the cache: %+v", fourth.CacheInfo)
	}
}

func TestExecuteSkipsCacheForAnonymousPrint(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := testRunner(fc)
	opts := Options{
		Request:   yearRequest(),
		Formats:   []export.Format{export.FormatPNG, export.FormatPDF},
		Name:      "!!!",
		Filenames: fixedNames,
	}

	first, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Execute(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if second.CacheInfo.Hits != 1 || second.CacheInfo.RenderHit || second.Stats.Renders != 1 {
		t.Errorf("second run cache info = %+v renders = %d, want only the png cached",
			second.CacheInfo, second.Stats.Renders)
	}

	a1, _ := first.Artifact(export.FormatPDF)
	a2, _ := second.Artifact(export.FormatPDF)
	if a1.Filename == a2.Filename {
		t.Errorf("anonymous print documents share filename %q", a1.Filename)
	}
	if !strings.Contains(string(a2.Data), "<title>"+strings.TrimSuffix(a2.Filename, ".html")+".pdf</title>") {
		t.Errorf("print document title does not match %q", a2.Filename)
	}
}

func TestCacheable(t *testing.T) {
	tests := []struct {
		name   string
		format export.Format
		want   bool
	}{
		{"Jane", export.FormatPDF, true},
		{"", export.FormatPDF, false},
		{"***", export.FormatPDF, false},
		{"", export.FormatPNG, true},
		{"", export.FormatJPG, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.format)+"/"+tt.name, func(t *testing.T) {
			o := Options{Name: tt.name}
			if got := o.Cacheable(tt.format); got != tt.want {
				t.Errorf("Cacheable(%s) with name %q = %v, want %v", tt.format, tt.name, got, tt.want)
			}
		})
	}
}

func TestExecuteScaleOverride(t *testing.T) {
	req := yearRequest()
	req.Scale = 1
	res, err := testRunner(nil).Execute(context.Background(), Options{
		Request: req,
		Formats: []export.Format{export.FormatPNG, export.FormatPDF},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Renders != 1 {
		t.Errorf("renders = %d, want 1", res.Stats.Renders)
	}
	img, err := png.Decode(bytes.NewReader(res.Artifacts[0].Data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 408 || b.Dy() != 282 {
		t.Errorf("png size = %dx%d, want 408x282", b.Dx(), b.Dy())
	}
}

func TestExecuteRejectsOversizedCard(t *testing.T) {
	req := yearRequest()
	req.Grid.Total = 100000
	req.Grid.PerRow = 100000
	_, err := testRunner(nil).Execute(context.Background(), Options{Request: req})
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Execute() error = %v, want %s", err, errors.ErrCodeInvalidInput)
	}
}

func TestPreview(t *testing.T) {
	data, err := testRunner(nil).Preview(context.Background(), yearRequest())
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 816 || b.Dy() != 564 {
		t.Errorf("preview size = %dx%d, want 816x564", b.Dx(), b.Dy())
	}
}
