// Package pipeline turns a card request into finished export files.
//
// This package is the single path from [card.Request] to encoded bytes, used
// by both the CLI and the HTTP service so they render, name and cache
// artifacts identically.
//
// # Stages
//
//  1. Validate: check the request and output options, apply defaults
//  2. Lookup: try every requested format in the cache
//  3. Render: draw each distinct scale once, concurrently
//  4. Encode: PNG, JPEG or the print document, then store in the cache
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, composer, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Request: req,
//	    Formats: []export.Format{export.FormatPNG, export.FormatPDF},
//	    Name:    "Jane Doe",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, a := range result.Artifacts {
//	    os.WriteFile(a.Filename, a.Data, 0o644)
//	}
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dotspan/dotspan/pkg/cache"
	"github.com/dotspan/dotspan/pkg/card"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// PreviewScale is the device pixel ratio of preview images.
	PreviewScale = 2.0
	// ImageScale is the device pixel ratio of PNG and JPEG downloads.
	ImageScale = 3.0
	// PrintScale is the device pixel ratio of the image inside a print document.
	PrintScale = 4.0
)

// DefaultFormat is rendered when no format is requested.
const DefaultFormat = export.FormatPNG

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one export run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Request is the card to render. A non-zero Request.Scale overrides the
	// per-format scales.
	Request card.Request `json:"request"`

	Formats []export.Format  `json:"formats,omitempty"`
	Name    string           `json:"name,omitempty"` // Owner name for filenames; defaults to the footer name
	Paper   export.PaperSize `json:"paper,omitempty"`
	Quality int              `json:"quality,omitempty"` // JPEG quality 1-100
	Refresh bool             `json:"refresh,omitempty"` // Skip cache reads

	// Runtime options (not serialized)
	Logger    *log.Logger      `json:"-"`
	Filenames export.Filenames `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Artifacts holds one entry per requested format, in request order.
	Artifacts []export.Artifact

	// RequestHash is the content hash of the request, shared by all
	// artifacts' cache keys.
	RequestHash string

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which artifacts came from the cache.
	CacheInfo CacheInfo
}

// Artifact returns the artifact for format, if present.
func (r *Result) Artifact(f export.Format) (export.Artifact, bool) {
	for _, a := range r.Artifacts {
		if a.Format == f {
			return a, true
		}
	}
	return export.Artifact{}, false
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Renders    int // Surfaces drawn (one per distinct scale)
	RenderTime time.Duration
	EncodeTime time.Duration
	Bytes      int
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	Hits      int  // Artifacts served from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the request and output options and applies
// defaults. It is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.Request.Validate(); err != nil {
		return err
	}

	if len(o.Formats) == 0 {
		o.Formats = []export.Format{DefaultFormat}
	}
	names := make([]string, len(o.Formats))
	for i, f := range o.Formats {
		names[i] = string(f)
	}
	formats, err := export.ParseFormats(names)
	if err != nil {
		return err
	}
	o.Formats = formats

	paper, err := export.ParsePaperSize(string(o.Paper))
	if err != nil {
		return err
	}
	o.Paper = paper

	if o.Quality == 0 {
		o.Quality = export.DefaultJPEGQuality
	}
	if o.Quality < 1 || o.Quality > 100 {
		return errors.New(errors.ErrCodeInvalidInput, "jpeg quality must be between 1 and 100, got %d", o.Quality)
	}

	if o.Name == "" {
		o.Name = o.Request.FooterName
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ScaleFor returns the render scale for a format.
func (o *Options) ScaleFor(f export.Format) float64 {
	if o.Request.Scale != 0 {
		return o.Request.Scale
	}
	if f == export.FormatPDF {
		return PrintScale
	}
	return ImageScale
}

// Cacheable reports whether the bytes for f depend only on the request, the
// options and the date. An owner without a usable name gets a random token
// in the print document title, so that document is never cached.
func (o *Options) Cacheable(f export.Format) bool {
	return f != export.FormatPDF || export.Slug(o.Name) != ""
}

// ArtifactKeyOpts returns cache key options for one format. The print
// document embeds its title, so the title is part of its key. A cacheable
// title depends only on the owner slug and the date.
func (o *Options) ArtifactKeyOpts(f export.Format, title string) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{
		Format: string(f),
		Scale:  o.ScaleFor(f),
	}
	switch f {
	case export.FormatJPG:
		opts.Quality = o.Quality
	case export.FormatPDF:
		opts.Paper = string(o.Paper)
		opts.Title = title
	}
	return opts
}
