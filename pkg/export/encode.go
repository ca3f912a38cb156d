package export

import (
	"bytes"
	"encoding/base64"
	"image"

	"github.com/disintegration/imaging"

	"github.com/dotspan/dotspan/pkg/errors"
)

// DefaultJPEGQuality matches a 0.92 encoder quality.
const DefaultJPEGQuality = 92

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode png")
	}
	return buf.Bytes(), nil
}

// EncodeJPEG encodes img as JPEG at quality 1-100; 0 selects
// [DefaultJPEGQuality]. JPEG has no alpha, so transparent pixels (the
// rounded card corners) are flattened onto white first.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality == 0 {
		quality = DefaultJPEGQuality
	}
	if quality < 1 || quality > 100 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "jpeg quality must be between 1 and 100, got %d", quality)
	}
	b := img.Bounds()
	flat := imaging.New(b.Dx(), b.Dy(), image.White)
	flat = imaging.Paste(flat, img, image.Pt(0, 0))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, flat, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode jpeg")
	}
	return buf.Bytes(), nil
}

// Encode encodes img for an image format.
func Encode(img image.Image, f Format, quality int) ([]byte, error) {
	switch f {
	case FormatPNG:
		return EncodePNG(img)
	case FormatJPG:
		return EncodeJPEG(img, quality)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "%s is not an image format", f)
	}
}

// DataURL returns "data:<mime>;base64,<data>".
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
