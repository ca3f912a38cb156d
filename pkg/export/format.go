// Package export turns rendered cards into files: PNG and JPEG images, data
// URLs, and a self-printing HTML document for the print format.
//
// It also names those files. [Filenames] builds
// "dotspan-<slug>-<YYYY-MM-DD>.<ext>" from the owner's name, falling back to
// a random token when the name has nothing usable.
package export

import (
	"strings"

	"github.com/dotspan/dotspan/pkg/errors"
)

// Format is an output format.
type Format string

const (
	FormatPNG Format = "png"
	FormatJPG Format = "jpg"
	// FormatPDF is the print format. Its artifact is an HTML document that
	// opens the system print dialog, from which a PDF can be saved.
	FormatPDF Format = "pdf"
)

// Formats lists every format in display order.
var Formats = []Format{FormatPNG, FormatJPG, FormatPDF}

// ParseFormat parses a format name case-insensitively, accepting "jpeg" for
// jpg and "print" for pdf.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "pdf", "print":
		return FormatPDF, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q (want png, jpg or pdf)", s)
	}
}

// ParseFormats parses a list of format names, dropping duplicates.
func ParseFormats(names []string) ([]Format, error) {
	seen := make(map[Format]bool, len(names))
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out, nil
}

// Extension returns the filename extension, without the dot. The print
// format keeps the "pdf" extension in names built by [Filenames]; writers
// of the HTML document use [Format.FileExtension].
func (f Format) Extension() string { return string(f) }

// FileExtension is the extension of the bytes actually produced.
func (f Format) FileExtension() string {
	if f == FormatPDF {
		return "html"
	}
	return string(f)
}

// ContentType returns the MIME type of the produced bytes.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatJPG:
		return "image/jpeg"
	default:
		return "text/html; charset=utf-8"
	}
}

// IsImage reports whether the format is a raster image.
func (f Format) IsImage() bool { return f == FormatPNG || f == FormatJPG }

// Artifact is one encoded export.
type Artifact struct {
	Format      Format
	Filename    string
	ContentType string
	Data        []byte
}
