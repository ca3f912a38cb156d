package export

import (
	"html/template"
	"io"
	"strings"

	"github.com/dotspan/dotspan/pkg/errors"
)

// PaperSize is the page size of the print document.
type PaperSize string

const (
	PaperA4     PaperSize = "a4"
	PaperLetter PaperSize = "letter"
)

// DefaultPaper is the paper size of a fresh print session.
const DefaultPaper = PaperLetter

// ParsePaperSize parses "a4" or "letter" case-insensitively. Empty selects
// [DefaultPaper].
func ParsePaperSize(s string) (PaperSize, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return DefaultPaper, nil
	case "a4":
		return PaperA4, nil
	case "letter":
		return PaperLetter, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidPaper, "unsupported paper size %q (want a4 or letter)", s)
	}
}

// CSS returns the value for the @page size property.
func (p PaperSize) CSS() string {
	if p == PaperLetter {
		return "Letter"
	}
	return "A4"
}

// PrintOptions describes a print document.
type PrintOptions struct {
	// ImageURL is the card image, usually a PNG data URL. It is trusted.
	ImageURL string
	Title    string
	Paper    PaperSize
}

// DefaultPrintTitle is used when PrintOptions.Title is empty.
const DefaultPrintTitle = "DotSpan export"

var printTemplate = template.Must(template.New("print").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: {{.Page}}; margin: 16mm; }
body { margin: 0; font-family: sans-serif; color: #111827; background: #ffffff; }
.sheet { width: 100%; box-sizing: border-box; padding: 0; background: #ffffff; }
img { max-width: 100%; height: auto; display: block; margin: 0 auto; }
</style>
</head>
<body>
<div class="sheet"><img id="dotspan" src="{{.Src}}" alt="{{.Title}}"></div>
<script>
(function () {
  var img = document.getElementById("dotspan");
  function triggerPrint() {
    setTimeout(function () { window.print(); window.close(); }, 200);
  }
  if (img.complete) {
    triggerPrint();
  } else {
    img.onload = triggerPrint;
  }
  img.onerror = function () { setTimeout(function () { window.close(); }, 500); };
})();
</script>
</body>
</html>
`))

// PrintDocument writes a self-contained HTML page that shows the image on a
// single sheet, opens the print dialog once the image has loaded, and closes
// itself afterwards.
func PrintDocument(w io.Writer, opts PrintOptions) error {
	if opts.ImageURL == "" {
		return errors.New(errors.ErrCodeInvalidInput, "print document needs an image")
	}
	if opts.Paper == "" {
		opts.Paper = DefaultPaper
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = DefaultPrintTitle
	}
	err := printTemplate.Execute(w, struct {
		Title string
		Page  string
		Src   template.URL
	}{title, opts.Paper.CSS(), template.URL(opts.ImageURL)})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "write print document")
	}
	return nil
}
